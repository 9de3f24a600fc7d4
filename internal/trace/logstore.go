package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/safirlabs/safir-agent/internal/observability"
)

// Log entry types.
const (
	LogTypeRequest = "api_request"
	LogTypeTrace   = "trace"
	LogTypeEvent   = "conversation_event"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS service_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	log_type TEXT NOT NULL,
	session_id TEXT,
	agent_key TEXT,
	method TEXT,
	path TEXT,
	status_code INTEGER,
	request_body TEXT,
	response_summary TEXT,
	metadata TEXT,
	duration_ms REAL
);
CREATE INDEX IF NOT EXISTS idx_service_logs_session ON service_logs(session_id);
CREATE INDEX IF NOT EXISTS idx_service_logs_type ON service_logs(log_type);
CREATE INDEX IF NOT EXISTS idx_service_logs_created ON service_logs(created_at);
`

// LogEntry is one persisted log row.
type LogEntry struct {
	ID              int64          `json:"id"`
	CreatedAt       string         `json:"created_at"`
	LogType         string         `json:"log_type"`
	SessionID       string         `json:"session_id,omitempty"`
	AgentKey        string         `json:"agent_key,omitempty"`
	Method          string         `json:"method,omitempty"`
	Path            string         `json:"path,omitempty"`
	StatusCode      int            `json:"status_code,omitempty"`
	RequestBody     string         `json:"request_body,omitempty"`
	ResponseSummary string         `json:"response_summary,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	DurationMS      float64        `json:"duration_ms,omitempty"`
}

// LogFilter narrows a query.
type LogFilter struct {
	SessionID string
	AgentKey  string
	LogType   string
	Search    string
	Page      int
	Limit     int
	Ascending bool
}

// LogPage is a query result page.
type LogPage struct {
	Items []LogEntry `json:"items"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

// LogStats are the aggregate counters of the log store.
type LogStats struct {
	Total   int            `json:"total"`
	ByType  map[string]int `json:"by_type"`
	ByAgent map[string]int `json:"by_agent"`
}

// LogStore persists service logs to SQLite. Writes are best-effort:
// a failed insert is logged and swallowed, never surfaced to a turn.
type LogStore struct {
	db *sql.DB
}

// OpenLogStore opens (and migrates) the SQLite database at path. The
// special path ":memory:" keeps it in memory.
func OpenLogStore(path string) (*LogStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open log store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate log store: %w", err)
	}
	return &LogStore{db: db}, nil
}

func (s *LogStore) Close() error { return s.db.Close() }

// Append inserts one entry, truncating oversized payload fields.
func (s *LogStore) Append(ctx context.Context, e LogEntry) {
	meta, _ := json.Marshal(e.Metadata)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_logs (
			log_type, session_id, agent_key, method, path,
			status_code, request_body, response_summary, metadata, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.LogType, nullable(e.SessionID), nullable(e.AgentKey),
		nullable(e.Method), nullable(e.Path), e.StatusCode,
		clip(e.RequestBody, 2000), clip(e.ResponseSummary, 2000),
		string(meta), e.DurationMS,
	)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("log append failed", "error", err)
	}
}

// AppendTrace stores an execution trace as a log row.
func (s *LogStore) AppendTrace(ctx context.Context, t ExecutionTrace) {
	s.Append(ctx, LogEntry{
		LogType:         LogTypeTrace,
		SessionID:       string(t.SessionID),
		AgentKey:        string(t.Handler),
		RequestBody:     t.UserMessage,
		ResponseSummary: t.FinalOutput,
		Metadata: map[string]any{
			"trace_id":    t.ID,
			"steps":       t.Steps,
			"error_class": t.ErrorClass,
		},
		DurationMS: t.DurationMS,
	})
}

// Query returns a filtered, paginated page of log entries.
func (s *LogStore) Query(ctx context.Context, f LogFilter) (LogPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 200 {
		f.Limit = 50
	}

	where, args := buildWhere(f)

	page := LogPage{Items: []LogEntry{}, Page: f.Page, Limit: f.Limit}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM service_logs WHERE "+where, args...,
	).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count logs: %w", err)
	}

	order := "DESC"
	if f.Ascending {
		order = "ASC"
	}
	query := fmt.Sprintf(`
		SELECT id, created_at, log_type, session_id, agent_key, method, path,
		       status_code, request_body, response_summary, metadata, duration_ms
		FROM service_logs WHERE %s ORDER BY id %s LIMIT ? OFFSET ?`, where, order)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e LogEntry
		var sid, agent, method, path, body, summary, meta sql.NullString
		var status sql.NullInt64
		var duration sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.LogType, &sid, &agent,
			&method, &path, &status, &body, &summary, &meta, &duration); err != nil {
			return page, fmt.Errorf("scan log row: %w", err)
		}
		e.SessionID = sid.String
		e.AgentKey = agent.String
		e.Method = method.String
		e.Path = path.String
		e.StatusCode = int(status.Int64)
		e.RequestBody = body.String
		e.ResponseSummary = summary.String
		e.DurationMS = duration.Float64
		if meta.String != "" {
			json.Unmarshal([]byte(meta.String), &e.Metadata)
		}
		page.Items = append(page.Items, e)
	}
	return page, rows.Err()
}

// Stats returns aggregate counters, optionally bounded by time.
func (s *LogStore) Stats(ctx context.Context) (LogStats, error) {
	stats := LogStats{ByType: map[string]int{}, ByAgent: map[string]int{}}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM service_logs",
	).Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("log stats: %w", err)
	}

	if err := s.groupCount(ctx, "log_type", "1=1", stats.ByType); err != nil {
		return stats, err
	}
	if err := s.groupCount(ctx, "agent_key", "agent_key IS NOT NULL AND agent_key != ''", stats.ByAgent); err != nil {
		return stats, err
	}
	return stats, nil
}

// Clear deletes every entry.
func (s *LogStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM service_logs")
	return err
}

func (s *LogStore) groupCount(ctx context.Context, column, where string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s, COUNT(*) FROM service_logs WHERE %s GROUP BY %s", column, where, column))
	if err != nil {
		return fmt.Errorf("log stats by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key sql.NullString
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key.String] = n
	}
	return rows.Err()
}

func buildWhere(f LogFilter) (string, []any) {
	conditions := []string{"1=1"}
	var args []any
	if f.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.AgentKey != "" {
		conditions = append(conditions, "agent_key = ?")
		args = append(args, f.AgentKey)
	}
	if f.LogType != "" {
		conditions = append(conditions, "log_type = ?")
		args = append(args, f.LogType)
	}
	if f.Search != "" {
		conditions = append(conditions,
			"(request_body LIKE ? OR response_summary LIKE ? OR metadata LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	return strings.Join(conditions, " AND "), args
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

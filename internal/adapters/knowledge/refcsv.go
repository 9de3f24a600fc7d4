package knowledge

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/safirlabs/safir-agent/internal/domain"
)

// Column names of the actions reference CSV (semicolon-delimited).
const (
	colPlatform = "بستر انجام"
	colTitle    = "عنوان کنش"
	colLevel    = "سطح سختی"
	colActor    = "کنش‌گر"
	colAudience = "مخاطب"
	colOutline  = "شرح و الگوی اجرا"
	colHashtags = "هشتگ‌ها"
	colRelated  = "محتواهای مرتبط"
	colSpecial  = "ویژه"
)

// colloquialForms maps spoken variants to the canonical form used in
// the reference rows.
var colloquialForms = map[string]string{
	"خونه": "خانه",
}

// minWordLen guards keyword matching against single-character noise.
const minWordLen = 2

// ReferenceRow is one row of the actions reference.
type ReferenceRow struct {
	Title    string
	Platform string
	Level    string
	Actor    string
	Audience string
	Outline  string
	Hashtags string
	Related  string
	Special  bool
}

// ReferenceCSV serves the detailed actions reference sheet. Rows carry
// a related-content column whose terms seed follow-up knowledge-base
// lookups.
type ReferenceCSV struct {
	rows []ReferenceRow
}

// LoadReferenceCSV reads the semicolon-delimited sheet. A missing file
// yields an empty reference; a malformed one is an error.
func LoadReferenceCSV(path string) (*ReferenceCSV, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ReferenceCSV{}, nil
		}
		return nil, fmt.Errorf("read reference csv: %w", err)
	}
	return ParseReferenceCSV(string(data))
}

// ParseReferenceCSV parses CSV content with a semicolon delimiter and
// quoted multiline fields. A UTF-8 BOM on the first header is stripped.
func ParseReferenceCSV(content string) (*ReferenceCSV, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse reference csv: %w", err)
	}
	if len(records) == 0 {
		return &ReferenceCSV{}, nil
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))] = i
	}
	cell := func(rec []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	ref := &ReferenceCSV{}
	for _, rec := range records[1:] {
		row := ReferenceRow{
			Title:    cell(rec, colTitle),
			Platform: cell(rec, colPlatform),
			Level:    cell(rec, colLevel),
			Actor:    cell(rec, colActor),
			Audience: cell(rec, colAudience),
			Outline:  cell(rec, colOutline),
			Hashtags: cell(rec, colHashtags),
			Related:  cell(rec, colRelated),
			Special:  isAffirmative(cell(rec, colSpecial)),
		}
		if row.Title == "" && row.Platform == "" {
			continue
		}
		ref.rows = append(ref.rows, row)
	}
	return ref, nil
}

func isAffirmative(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "بله", "آری", "yes", "true", "1":
		return true
	}
	return false
}

func (r *ReferenceCSV) Name() string { return "actions_reference" }

func (r *ReferenceCSV) Len() int { return len(r.rows) }

// Query implements domain.KnowledgeSource over the reference rows.
func (r *ReferenceCSV) Query(ctx context.Context, q domain.KnowledgeQuery) (string, error) {
	return r.FormatRows(r.Search(q.Text, q.Limit)), nil
}

// FormatRows renders already-matched rows as the reference block, so a
// caller holding search results does not search twice.
func (r *ReferenceCSV) FormatRows(rows []ReferenceRow) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("مرجع کنش‌ها:\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "- %s (بستر: %s، سطح: %s)", row.Title, row.Platform, row.Level)
		if row.Special {
			b.WriteString(" [ویژه]")
		}
		if row.Outline != "" {
			fmt.Fprintf(&b, "\n  %s", row.Outline)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Search matches rows on any query word across title, platform, level,
// actor, audience and hashtags.
func (r *ReferenceCSV) Search(query string, limit int) []ReferenceRow {
	if limit <= 0 {
		limit = 5
	}
	words := queryWords(query)
	if len(words) == 0 {
		return nil
	}

	var out []ReferenceRow
	for _, row := range r.rows {
		haystack := strings.ToLower(strings.Join([]string{
			row.Title, row.Platform, row.Level, row.Actor, row.Audience, row.Hashtags,
		}, " "))
		for _, w := range words {
			if strings.Contains(haystack, w) {
				out = append(out, row)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

// RelatedTerms collects the related-content entries of the matched rows
// for the follow-up lookup stage.
func (r *ReferenceCSV) RelatedTerms(rows []ReferenceRow) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		for _, term := range strings.FieldsFunc(row.Related, func(c rune) bool {
			return c == '،' || c == ',' || c == '\n'
		}) {
			term = strings.TrimSpace(term)
			if term == "" || seen[term] {
				continue
			}
			seen[term] = true
			out = append(out, term)
		}
	}
	return out
}

// queryWords tokenizes a query, mapping colloquial forms to canonical
// ones and dropping words too short to match meaningfully.
func queryWords(query string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if canonical, ok := colloquialForms[w]; ok {
			w = canonical
		}
		if len([]rune(w)) < minWordLen {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Package knowledge holds the retrieval backends: the remote RAG
// server, the YAML actions catalog and the CSV actions reference.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/safirlabs/safir-agent/internal/domain"
)

// LightRAG queries a LightRAG-compatible knowledge server over HTTP.
// Auth is a static bearer token; the server is treated as best-effort
// and any failure surfaces as an error the pipeline absorbs.
type LightRAG struct {
	baseURL   string
	authToken string
	client    *http.Client
}

type LightRAGOptions struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

func NewLightRAG(opts LightRAGOptions) *LightRAG {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &LightRAG{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		authToken: opts.AuthToken,
		client:    &http.Client{Timeout: timeout},
	}
}

func (l *LightRAG) Name() string { return "knowledge_base" }

type ragRequest struct {
	Query               string       `json:"query"`
	Mode                string       `json:"mode"`
	IncludeReferences   bool         `json:"include_references"`
	IncludeChunkContent bool         `json:"include_chunk_content"`
	ResponseType        string       `json:"response_type"`
	TopK                int          `json:"top_k"`
	ChunkTopK           int          `json:"chunk_top_k"`
	MaxTotalTokens      int          `json:"max_total_tokens"`
	ConversationHistory []ragMessage `json:"conversation_history,omitempty"`
}

type ragMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ragResponse struct {
	Response   string `json:"response"`
	References []struct {
		FilePath string `json:"file_path"`
		Path     string `json:"path"`
	} `json:"references"`
}

// Query implements domain.KnowledgeSource.
func (l *LightRAG) Query(ctx context.Context, q domain.KnowledgeQuery) (string, error) {
	if l.baseURL == "" {
		return "", fmt.Errorf("knowledge base not configured")
	}
	text := strings.TrimSpace(q.Text)
	if len([]rune(text)) < 3 {
		return "", fmt.Errorf("query too short")
	}

	mode := q.Mode
	if mode == "" {
		mode = "mix"
	}
	topK := q.Limit
	if topK <= 0 {
		topK = 10
	}

	req := ragRequest{
		Query:             text,
		Mode:              mode,
		IncludeReferences: true,
		ResponseType:      "Multiple Paragraphs",
		TopK:              topK,
		ChunkTopK:         8,
		MaxTotalTokens:    6000,
	}
	for _, m := range q.History {
		req.ConversationHistory = append(req.ConversationHistory, ragMessage{
			Role:    string(m.Role),
			Content: m.Text,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if l.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+l.authToken)
	}

	res, err := l.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("knowledge base request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", fmt.Errorf("knowledge base HTTP %d: %s", res.StatusCode, snippet)
	}

	var decoded ragResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode knowledge response: %w", err)
	}

	out := decoded.Response
	if len(decoded.References) > 0 {
		parts := make([]string, 0, len(decoded.References))
		for i, ref := range decoded.References {
			path := ref.FilePath
			if path == "" {
				path = ref.Path
			}
			if path == "" {
				path = "unknown"
			}
			parts = append(parts, fmt.Sprintf("[%d] %s", i+1, path))
		}
		out += "\n\nSources: " + strings.Join(parts, ", ")
	}
	return out, nil
}

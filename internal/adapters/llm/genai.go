package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/safirlabs/safir-agent/internal/domain"
)

// Client implements domain.LLMClient on Google GenAI (Gemini), either
// through Vertex AI or the public API, depending on Options.
type Client struct {
	client    *genai.Client
	modelName string
}

type Options struct {
	// Vertex backend
	ProjectID string
	Location  string
	// Public API backend; used when ProjectID is empty
	APIKey string

	ModelName string
}

// NewClient creates the GenAI-backed LLM client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	modelName := opts.ModelName
	if modelName == "" {
		modelName = "gemini-2.5-flash-lite"
	}

	cc := &genai.ClientConfig{}
	switch {
	case opts.ProjectID != "":
		if opts.Location == "" {
			return nil, fmt.Errorf("location is required for the Vertex backend")
		}
		cc.Project = opts.ProjectID
		cc.Location = opts.Location
		cc.Backend = genai.BackendVertexAI
	case opts.APIKey != "":
		cc.APIKey = opts.APIKey
	default:
		return nil, fmt.Errorf("either ProjectID or APIKey must be set")
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}

	return &Client{client: client, modelName: modelName}, nil
}

// Generate implements domain.LLMClient.
func (c *Client) Generate(
	ctx context.Context,
	system, user string,
	history []domain.Message,
) (string, error) {
	contents := historyContents(history)
	contents = append(contents, genai.NewContentFromText(user, genai.RoleUser))

	temp := float32(0.7)
	topP := float32(0.9)
	outputTokens := int32(8192)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: outputTokens,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	res, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("genai generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("genai returned empty text")
	}
	return text, nil
}

// GenerateStructured asks for JSON output and unmarshals into out.
// Response-shape quirks (markdown fences, surrounding prose) are
// normalized here so core logic never sees them.
func (c *Client) GenerateStructured(
	ctx context.Context,
	system, user string,
	out any,
) error {
	contents := []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}

	temp := float32(0.0)
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	res, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, cfg)
	if err != nil {
		return fmt.Errorf("genai structured generate: %w", err)
	}

	raw := ExtractJSON(res.Text())
	if raw == "" {
		return fmt.Errorf("genai returned no JSON payload")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode structured response: %w", err)
	}
	return nil
}

func historyContents(history []domain.Message) []*genai.Content {
	var contents []*genai.Content
	for _, m := range history {
		var role genai.Role
		switch m.Role {
		case domain.RoleAssistant:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	return contents
}

// ExtractJSON strips markdown code fences and surrounding prose from a
// model response, returning the first JSON object or array found.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if fenced := strings.Index(s, "```"); fenced >= 0 {
		rest := s[fenced+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = strings.TrimSpace(rest[:end])
		} else {
			s = strings.TrimSpace(rest)
		}
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	var closer byte
	if s[start] == '{' {
		closer = '}'
	} else {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}

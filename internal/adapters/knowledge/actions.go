package knowledge

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/safirlabs/safir-agent/internal/domain"
)

// Action is one entry of the curated actions catalog.
type Action struct {
	Title       string   `yaml:"title"`
	Platform    string   `yaml:"platform,omitempty"`
	Level       string   `yaml:"level,omitempty"`
	Audience    string   `yaml:"audience,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Hashtags    []string `yaml:"hashtags,omitempty"`
	Special     bool     `yaml:"special,omitempty"`
}

type actionsFile struct {
	Actions []Action `yaml:"actions"`
}

// ActionsCatalog serves the curated YAML list of actions. It is loaded
// once at startup; a missing file yields an empty catalog.
type ActionsCatalog struct {
	actions []Action
}

func LoadActionsCatalog(path string) (*ActionsCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ActionsCatalog{}, nil
		}
		return nil, fmt.Errorf("read actions catalog: %w", err)
	}
	var file actionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse actions catalog: %w", err)
	}
	return &ActionsCatalog{actions: file.Actions}, nil
}

func NewActionsCatalog(actions []Action) *ActionsCatalog {
	return &ActionsCatalog{actions: actions}
}

func (c *ActionsCatalog) Name() string { return "actions_catalog" }

func (c *ActionsCatalog) Len() int { return len(c.actions) }

// Query implements domain.KnowledgeSource: a keyword match over title,
// platform, level, hashtags and description. An empty match set is an
// empty string, not an error.
func (c *ActionsCatalog) Query(ctx context.Context, q domain.KnowledgeQuery) (string, error) {
	matched := c.Search(q.Text, q.Limit)
	if len(matched) == 0 {
		return "", nil
	}
	return formatActions(matched), nil
}

// Search returns catalog entries matching any query word. An empty
// query returns the leading entries up to limit.
func (c *ActionsCatalog) Search(query string, limit int) []Action {
	if limit <= 0 {
		limit = 10
	}
	words := queryWords(query)

	out := make([]Action, 0, limit)
	for _, a := range c.actions {
		if len(words) == 0 || actionMatches(a, words) {
			out = append(out, a)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// Special returns the special-flagged actions.
func (c *ActionsCatalog) Special() []Action {
	var out []Action
	for _, a := range c.actions {
		if a.Special {
			out = append(out, a)
		}
	}
	return out
}

func actionMatches(a Action, words []string) bool {
	haystack := strings.ToLower(strings.Join([]string{
		a.Title, a.Platform, a.Level, a.Audience, a.Description,
		strings.Join(a.Hashtags, " "),
	}, " "))
	for _, w := range words {
		if strings.Contains(haystack, w) {
			return true
		}
	}
	return false
}

func formatActions(actions []Action) string {
	var b strings.Builder
	b.WriteString("کنش‌های مرتبط:\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "- %s", a.Title)
		var attrs []string
		if a.Platform != "" {
			attrs = append(attrs, "بستر: "+a.Platform)
		}
		if a.Level != "" {
			attrs = append(attrs, "سطح: "+a.Level)
		}
		if a.Special {
			attrs = append(attrs, "ویژه")
		}
		if len(attrs) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(attrs, "، "))
		}
		if a.Description != "" {
			fmt.Fprintf(&b, ": %s", a.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

package router

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/safirlabs/safir-agent/internal/domain"
)

// PathMapping binds one website path pattern to a handler. Patterns
// support exact matches and shell-style wildcards ("/konesh/*").
type PathMapping struct {
	Path        string `yaml:"path"`
	Handler     string `yaml:"handler"`
	Description string `yaml:"description,omitempty"`
}

func (m PathMapping) matches(p string) bool {
	if m.Path == p {
		return true
	}
	if strings.Contains(m.Path, "*") {
		ok, err := path.Match(m.Path, p)
		return err == nil && ok
	}
	return false
}

// specificity orders mappings so exact matches beat wildcards and longer
// prefixes beat shorter ones.
func (m PathMapping) specificity() int {
	if !strings.Contains(m.Path, "*") {
		return 1000 + len(m.Path)
	}
	return len(strings.SplitN(m.Path, "*", 2)[0])
}

// PathRouter resolves the entry-page path of a chat session to the
// handler that should answer first, before any LLM classification runs.
type PathRouter struct {
	mappings []PathMapping
}

type pathFile struct {
	Mappings []PathMapping `yaml:"mappings"`
}

// LoadPathRouter reads a mapping file. A missing file yields an empty
// router that always returns the default handler.
func LoadPathRouter(filePath string) (*PathRouter, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &PathRouter{}, nil
		}
		return nil, fmt.Errorf("read path mapping: %w", err)
	}

	var file pathFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse path mapping: %w", err)
	}
	return NewPathRouter(file.Mappings), nil
}

// NewPathRouter builds a router from explicit mappings.
func NewPathRouter(mappings []PathMapping) *PathRouter {
	sorted := make([]PathMapping, len(mappings))
	copy(sorted, mappings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].specificity() > sorted[j].specificity()
	})
	return &PathRouter{mappings: sorted}
}

// HandlerForPath returns the handler mapped to the given path, or the
// default when nothing matches.
func (r *PathRouter) HandlerForPath(p string) domain.HandlerKey {
	p = strings.TrimSpace(p)
	if p == "" {
		return domain.DefaultHandler
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for _, m := range r.mappings {
		if m.matches(p) {
			return domain.ParseHandlerKey(m.Handler)
		}
	}
	return domain.DefaultHandler
}

// Mappings returns the ordered mapping list.
func (r *PathRouter) Mappings() []PathMapping {
	out := make([]PathMapping, len(r.mappings))
	copy(out, r.mappings)
	return out
}

package schema

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/safirlabs/safir-agent/internal/domain"
)

// Registry is the explicit field-schema registry, built at startup and
// passed by reference into the services that need it. Safe for
// concurrent use; the admin API mutates it at runtime.
type Registry struct {
	mu     sync.RWMutex
	fields []Field
	path   string // source file for Reload/Save, may be empty
}

type fieldsFile struct {
	UserDataFields []Field `yaml:"user_data_fields"`
}

// NewRegistry builds a registry from the given fields. Normalized keys
// must be unique across enabled fields; aliases must resolve to exactly
// one key.
func NewRegistry(fields []Field) (*Registry, error) {
	if err := checkConsistency(fields); err != nil {
		return nil, err
	}
	return &Registry{fields: fields}, nil
}

// LoadRegistry reads fields from a YAML file. A missing file yields the
// compiled-in defaults.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			r, derr := NewRegistry(DefaultFields())
			if derr != nil {
				return nil, derr
			}
			r.path = path
			return r, nil
		}
		return nil, fmt.Errorf("read fields config: %w", err)
	}

	var file fieldsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse fields config: %w", err)
	}
	r, err := NewRegistry(file.UserDataFields)
	if err != nil {
		return nil, err
	}
	r.path = path
	return r, nil
}

func checkConsistency(fields []Field) error {
	seenKey := map[string]string{}
	seenAlias := map[string]string{}
	for _, f := range fields {
		if !f.Enabled {
			continue
		}
		if f.NormalizedKey == "" {
			return fmt.Errorf("field %q: normalized_key is required", f.FieldName)
		}
		if prev, dup := seenKey[f.NormalizedKey]; dup {
			return fmt.Errorf("normalized_key %q declared by both %q and %q", f.NormalizedKey, prev, f.FieldName)
		}
		seenKey[f.NormalizedKey] = f.FieldName

		for _, alias := range f.Aliases {
			a := strings.ToLower(alias)
			if prev, dup := seenAlias[a]; dup && prev != f.NormalizedKey {
				return fmt.Errorf("alias %q resolves to both %q and %q", alias, prev, f.NormalizedKey)
			}
			seenAlias[a] = f.NormalizedKey
		}
	}
	return nil
}

// Enabled returns a copy of the enabled fields.
func (r *Registry) Enabled() []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Field, 0, len(r.fields))
	for _, f := range r.fields {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

// All returns a copy of every field, enabled or not.
func (r *Registry) All() []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Resolve maps a field name or alias (case-insensitive) to its enabled
// schema. Returns domain.ErrUnknownField when nothing matches, so
// callers can surface the rejection instead of silently dropping it.
func (r *Registry) Resolve(name string) (Field, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lower := strings.ToLower(strings.TrimSpace(name))
	for _, f := range r.fields {
		if !f.Enabled {
			continue
		}
		if strings.ToLower(f.FieldName) == lower || strings.ToLower(f.NormalizedKey) == lower {
			return f, nil
		}
		for _, alias := range f.Aliases {
			if strings.ToLower(alias) == lower {
				return f, nil
			}
		}
	}
	return Field{}, fmt.Errorf("%w: %q", domain.ErrUnknownField, name)
}

// Get returns a field by field_name regardless of enabled state.
func (r *Registry) Get(fieldName string) (Field, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lower := strings.ToLower(fieldName)
	for _, f := range r.fields {
		if strings.ToLower(f.FieldName) == lower {
			return f, true
		}
	}
	return Field{}, false
}

// Add appends a new field definition.
func (r *Registry) Add(f Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lookupLocked(f.FieldName); exists {
		return fmt.Errorf("field %q already exists", f.FieldName)
	}
	next := append(append([]Field{}, r.fields...), f)
	if err := checkConsistency(next); err != nil {
		return err
	}
	r.fields = next
	return nil
}

// Update replaces the definition of an existing field.
func (r *Registry) Update(fieldName string, f Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, exists := r.lookupLocked(fieldName)
	if !exists {
		return fmt.Errorf("field %q not found", fieldName)
	}
	next := make([]Field, len(r.fields))
	copy(next, r.fields)
	next[idx] = f
	if err := checkConsistency(next); err != nil {
		return err
	}
	r.fields = next
	return nil
}

// SetEnabled toggles a field. Disabling never deletes the definition.
func (r *Registry) SetEnabled(fieldName string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, exists := r.lookupLocked(fieldName)
	if !exists {
		return fmt.Errorf("field %q not found", fieldName)
	}
	next := make([]Field, len(r.fields))
	copy(next, r.fields)
	next[idx].Enabled = enabled
	if err := checkConsistency(next); err != nil {
		return err
	}
	r.fields = next
	return nil
}

// Remove deletes a field definition permanently.
func (r *Registry) Remove(fieldName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, exists := r.lookupLocked(fieldName)
	if !exists {
		return fmt.Errorf("field %q not found", fieldName)
	}
	r.fields = append(r.fields[:idx], r.fields[idx+1:]...)
	return nil
}

func (r *Registry) lookupLocked(fieldName string) (int, bool) {
	lower := strings.ToLower(fieldName)
	for i, f := range r.fields {
		if strings.ToLower(f.FieldName) == lower {
			return i, true
		}
	}
	return 0, false
}

// Export renders the current registry as YAML.
func (r *Registry) Export() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return yaml.Marshal(fieldsFile{UserDataFields: r.fields})
}

// Reload re-reads the source file, replacing the in-memory set.
func (r *Registry) Reload() error {
	r.mu.RLock()
	path := r.path
	r.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("registry has no source file")
	}

	fresh, err := LoadRegistry(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.fields = fresh.fields
	r.mu.Unlock()
	return nil
}

// Save writes the current registry back to its source file.
func (r *Registry) Save() error {
	r.mu.RLock()
	path := r.path
	r.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("registry has no source file")
	}

	data, err := r.Export()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/safirlabs/safir-agent/internal/app/tools"
	"github.com/safirlabs/safir-agent/internal/domain"
	"github.com/safirlabs/safir-agent/internal/schema"
)

// SaveFieldTool is the tool-calling face of extraction: the model saves
// one fact at a time mid-generation instead of a batch pass afterwards.
// Validation and accumulate semantics are identical to the batch path
// because both go through the same registry and store.
type SaveFieldTool struct {
	registry *schema.Registry
	store    domain.ContextStore
	ttl      time.Duration
}

func NewSaveFieldTool(registry *schema.Registry, store domain.ContextStore, ttl time.Duration) *SaveFieldTool {
	return &SaveFieldTool{registry: registry, store: store, ttl: ttl}
}

func (t *SaveFieldTool) Name() string { return "save_user_field" }

func (t *SaveFieldTool) Description() string {
	return "Save one fact the user explicitly stated (name, age, city, ...) to their profile."
}

func (t *SaveFieldTool) ParameterSchema() map[string]any {
	names := make([]string, 0)
	for _, f := range t.registry.Enabled() {
		names = append(names, f.FieldName)
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field": map[string]any{
				"type":        "string",
				"enum":        names,
				"description": "Which fact is being saved.",
			},
			"value": map[string]any{
				"type":        "string",
				"description": "The raw value as the user said it.",
			},
		},
		"required": []string{"field", "value"},
	}
}

// Execute validates and persists a single fact under the session.
func (t *SaveFieldTool) Execute(ctx context.Context, cctx tools.CallContext, args map[string]any) (string, error) {
	name, _ := args["field"].(string)
	raw, _ := args["value"].(string)
	if name == "" || raw == "" {
		return "", fmt.Errorf("save_user_field: field and value are required")
	}

	field, err := t.registry.Resolve(name)
	if err != nil {
		return "", err
	}
	value, err := field.Convert(raw)
	if err != nil {
		return "", err
	}

	sid := domain.SessionID(cctx.SessionID)
	if field.Accumulate && value.Kind == domain.KindList {
		current, err := t.store.Get(ctx, sid)
		if err != nil {
			return "", err
		}
		merged := current[field.NormalizedKey]
		if merged.Kind != domain.KindList {
			merged = domain.ListValue()
		}
		for _, item := range value.List {
			merged = merged.AppendUnique(item)
		}
		value = merged
	}

	updates := map[string]domain.FieldValue{field.NormalizedKey: value}
	if err := t.store.Merge(ctx, sid, updates, t.ttl); err != nil {
		return "", err
	}
	return fmt.Sprintf("saved %s", field.NormalizedKey), nil
}

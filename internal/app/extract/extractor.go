// Package extract pulls structured facts out of user utterances and
// reconciles them with the facts already on record.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/safirlabs/safir-agent/internal/domain"
	"github.com/safirlabs/safir-agent/internal/observability"
	"github.com/safirlabs/safir-agent/internal/schema"
)

const systemPromptHeader = `You extract structured user facts from a Persian chat message.
Only report facts the user explicitly stated in this message. Never guess,
never infer, never repeat facts from earlier turns.

Known fields:
`

const systemPromptFooter = `
Respond with JSON: {"fields": [{"field": "<field_name>", "value": "<raw value>"}]}
Return an empty list when the message contains no new facts.`

type extractedField struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type extraction struct {
	Fields []extractedField `json:"fields"`
}

// Extractor runs one batch structured-output call per user turn and
// converts whatever comes back through the field registry. A field that
// fails validation is dropped on its own; the rest of the batch and the
// conversation are never affected.
type Extractor struct {
	llm      domain.LLMClient
	registry *schema.Registry
}

func New(llm domain.LLMClient, registry *schema.Registry) *Extractor {
	return &Extractor{llm: llm, registry: registry}
}

// Extract returns the validated facts found in the utterance, keyed by
// normalized key. Accumulating list fields are merged with current so
// the returned map is ready for a last-write-wins store.
func (e *Extractor) Extract(
	ctx context.Context,
	utterance string,
	current map[string]domain.FieldValue,
) (map[string]domain.FieldValue, error) {
	log := observability.LoggerFromContext(ctx)

	enabled := e.registry.Enabled()
	if len(enabled) == 0 {
		return nil, nil
	}

	var result extraction
	if err := e.llm.GenerateStructured(ctx, e.systemPrompt(enabled), utterance, &result); err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}

	updates := make(map[string]domain.FieldValue)
	for _, ef := range result.Fields {
		field, err := e.registry.Resolve(ef.Field)
		if err != nil {
			log.Warn("extractor returned unknown field, skipping", "field", ef.Field)
			continue
		}
		value, err := field.Convert(ef.Value)
		if err != nil {
			if errors.Is(err, domain.ErrFieldRejected) {
				log.Warn("extracted value rejected", "field", field.NormalizedKey, "error", err)
				continue
			}
			return nil, err
		}
		updates[field.NormalizedKey] = value
	}

	return e.reconcile(updates, current), nil
}

// reconcile folds accumulating list fields into their existing value so
// a per-key overwrite in the store preserves earlier items.
func (e *Extractor) reconcile(
	updates map[string]domain.FieldValue,
	current map[string]domain.FieldValue,
) map[string]domain.FieldValue {
	if len(updates) == 0 {
		return updates
	}
	out := make(map[string]domain.FieldValue, len(updates))
	for key, value := range updates {
		field, err := e.registry.Resolve(key)
		if err == nil && field.Accumulate && value.Kind == domain.KindList {
			merged := current[key]
			if merged.Kind != domain.KindList {
				merged = domain.ListValue()
			}
			for _, item := range value.List {
				merged = merged.AppendUnique(item)
			}
			out[key] = merged
			continue
		}
		out[key] = value
	}
	return out
}

func (e *Extractor) systemPrompt(fields []schema.Field) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	for _, f := range fields {
		fmt.Fprintf(&b, "- %s (%s): %s", f.FieldName, f.DataType, f.Description)
		if len(f.Examples) > 0 {
			fmt.Fprintf(&b, " — e.g. %s", strings.Join(f.Examples, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString(systemPromptFooter)
	return b.String()
}

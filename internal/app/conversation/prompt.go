package conversation

import (
	"fmt"
	"strings"

	"github.com/safirlabs/safir-agent/internal/domain"
	"github.com/safirlabs/safir-agent/internal/schema"
)

// buildSystemPrompt assembles the specialist system prompt: persona,
// known user facts, rolling summary, and entry-path hint.
func buildSystemPrompt(persona Persona, facts map[string]domain.FieldValue, registry *schema.Registry, summary, entryPath string) string {
	var parts []string
	parts = append(parts, persona.SystemPrompt)

	if block := userInfoBlock(facts, registry); block != "" {
		parts = append(parts, block)
	}
	if summary != "" {
		parts = append(parts, "خلاصه گفتگو تا اینجا:\n"+summary)
	}
	if entryPath != "" {
		parts = append(parts, fmt.Sprintf("📍 کاربر چت را از صفحه %s باز کرده است.", entryPath))
	}
	return strings.Join(parts, "\n\n")
}

// userInfoBlock renders the known facts, using the registry's field
// names as labels. Order follows the registry so prompts stay stable.
func userInfoBlock(facts map[string]domain.FieldValue, registry *schema.Registry) string {
	if len(facts) == 0 {
		return ""
	}
	lines := []string{"📋 اطلاعات کاربر:"}
	for _, field := range registry.Enabled() {
		value, ok := facts[field.NormalizedKey]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("  • %s: %s", field.FieldName, value.Display()))
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// buildUserPrompt pairs the retrieved knowledge context with the user
// message.
func buildUserPrompt(knowledgeContext, message string) string {
	var b strings.Builder
	if knowledgeContext != "" {
		fmt.Fprintf(&b, "اطلاعات بازیابی‌شده:\n%s\n\n", knowledgeContext)
	}
	fmt.Fprintf(&b, "پیام کاربر: %s", message)
	return b.String()
}

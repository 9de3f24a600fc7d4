// Package postprocess cleans specialist output before it reaches the
// user. Every step is a pure string transform and idempotent, so the
// pipeline can run twice without changing the result further.
package postprocess

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/safirlabs/safir-agent/internal/domain"
)

// SuggestionsHeader marks the suggestions block in assistant output.
const SuggestionsHeader = "پیشنهادهای بعدی:"

// scopeRedirect is returned verbatim when action_expert gets an
// out-of-scope question.
const scopeRedirect = `من متخصص کنش‌های قرآنی سفیران آیه‌ها هستم و فقط می‌تونم در مورد انتخاب، طراحی و اجرای کنش‌ها کمکت کنم.
اگه می‌خوای برای این موقعیت یه کنش یا محفل قرآنی برگزار کنی، خوشحال می‌شم راهنماییت کنم!
پیشنهادهای بعدی:
1) بگو چه بستری در اختیار داری (خانه، مدرسه، مسجد، فضای مجازی)
2) بگو نقشت چیه (معلم، دانش‌آموز، والد، مبلغ)`

// scopeKeywords keep action_expert on topic.
var scopeKeywords = []string{
	"کنش", "محفل", "صبحگاه", "فضاسازی", "مسجد", "مدرسه", "خانه",
}

// unwantedOpeners are boilerplate phrases models like to start with.
var unwantedOpeners = []*regexp.Regexp{
	regexp.MustCompile(`پرسش کلیدی و مهمی مطرح کردید[^\n]*`),
	regexp.MustCompile(`بر اساس تجربه نهضت[^\n]*`),
	regexp.MustCompile(`برای اینکه صحبت شما[^\n]*`),
	regexp.MustCompile(`بسیار عالی[^\n]*`),
	regexp.MustCompile(`سؤالی که مطرح کرده‌اید[^\n]*`),
	regexp.MustCompile(`یک دغدغه‌ی مهم[^\n]*`),
	regexp.MustCompile(`با توجه به نتایج جستجو[^\n]*`),
	regexp.MustCompile(`برای پاسخ به این سؤال[^\n]*`),
}

var (
	citationMarker = regexp.MustCompile(`\[\d+\]`)
	sourcesLine    = regexp.MustCompile(`(?m)^Sources:[^\n]*\n?`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
	spaceRuns      = regexp.MustCompile(`\s+`)
)

// perspectiveRewrites turn AI-voice suggestions ("میخوای درباره X
// بدونی؟") into user-voice ones ("درباره X بیشتر بدانم").
var perspectiveRewrites = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`میخوای\s+درباره\s+(.+?)\s+بیشتر\s+بدونی[؟?]?`), `درباره $1 بیشتر بدانم`},
	{regexp.MustCompile(`میخوای\s+درباره\s+(.+?)\s+بدونی[؟?]?`), `درباره $1 بیشتر بدانم`},
	{regexp.MustCompile(`آیا\s+می‌خوای\s+(.+?)\s+رو\s+ببینی[؟?]?`), `$1`},
	{regexp.MustCompile(`میخوای\s+(.+?)\s+رو\s+ببینی[؟?]?`), `$1`},
	{regexp.MustCompile(`چطور\s+می‌خوای\s+(.+?)\s+شروع\s+کنی[؟?]?`), `چطور $1 را شروع کنم؟`},
	{regexp.MustCompile(`چطور\s+می‌خوای\s+(.+?)\s+کنی[؟?]?`), `چطور $1 کنم؟`},
	{regexp.MustCompile(`^میخوای\s+(.+?)[؟?]`), `$1`},
}

// Processor runs the ordered cleanup steps for one turn.
type Processor struct{}

func New() *Processor {
	return &Processor{}
}

// Process cleans the output for the given handler and user message.
// showSuggestions carries the lifecycle decision: when false, no block
// is synthesized and one already present in the output is removed.
func (p *Processor) Process(handler domain.HandlerKey, output, userMessage string, showSuggestions bool) string {
	if handler == domain.HandlerActionExpert && !InScope(userMessage) {
		if !showSuggestions {
			return RemoveSuggestions(scopeRedirect)
		}
		return scopeRedirect
	}

	out := StripBoilerplate(output)
	if !showSuggestions {
		return RemoveSuggestions(out)
	}
	out = RewriteSuggestionPerspective(out)
	out = EnsureSuggestions(out, userMessage, handler)
	return out
}

// InScope reports whether an action_expert question touches its domain.
func InScope(userMessage string) bool {
	msg := strings.ToLower(userMessage)
	for _, kw := range scopeKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// StripBoilerplate removes citation markers, source lines and stock
// opening phrases, then collapses leftover blank runs.
func StripBoilerplate(output string) string {
	out := citationMarker.ReplaceAllString(output, "")
	out = sourcesLine.ReplaceAllString(out, "")
	for _, re := range unwantedOpeners {
		out = re.ReplaceAllString(out, "")
	}
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// RemoveSuggestions drops the suggestions block, header included. Free
// mode hides suggestions entirely, even ones the model wrote itself.
func RemoveSuggestions(output string) string {
	start := strings.Index(output, SuggestionsHeader)
	if start < 0 {
		return output
	}
	end := len(output)
	if i := strings.Index(output[start:], "\n\n"); i >= 0 {
		end = start + i
	}
	return strings.TrimSpace(output[:start] + output[end:])
}

// RewriteSuggestionPerspective rewrites the suggestions block, if any,
// from AI voice to user voice. Text outside the block is untouched.
func RewriteSuggestionPerspective(output string) string {
	start := strings.Index(output, SuggestionsHeader)
	if start < 0 {
		return output
	}
	blockStart := start + len(SuggestionsHeader)
	blockEnd := len(output)
	if i := strings.Index(output[blockStart:], "\n\n"); i >= 0 {
		blockEnd = blockStart + i
	}

	items := splitSuggestions(output[blockStart:blockEnd])
	if len(items) == 0 {
		return output
	}
	for i, item := range items {
		items[i] = RewritePerspective(item)
	}

	var b strings.Builder
	b.WriteString(output[:blockStart])
	b.WriteString("\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d) %s\n", i+1, item)
	}
	b.WriteString(output[blockEnd:])
	return strings.TrimRight(b.String(), "\n")
}

// RewritePerspective converts one suggestion line to user voice.
func RewritePerspective(suggestion string) string {
	out := strings.TrimSpace(suggestion)
	for _, rw := range perspectiveRewrites {
		out = rw.pattern.ReplaceAllString(out, rw.replace)
	}
	return strings.TrimSpace(spaceRuns.ReplaceAllString(out, " "))
}

var itemPrefix = regexp.MustCompile(`^\s*\d+[\)\.\-]\s*`)

func splitSuggestions(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(itemPrefix.ReplaceAllString(line, ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

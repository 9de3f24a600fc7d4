package postprocess

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/safirlabs/safir-agent/internal/domain"
)

// maxSuggestions bounds the synthesized block.
const maxSuggestions = 4

var verseRef = regexp.MustCompile(`آیه\s*(\d+)`)

// EnsureSuggestions appends a suggestions block when the output lacks
// one, synthesized from keyword heuristics over the answer text.
// action_expert never gets a synthesized block.
func EnsureSuggestions(output, userMessage string, handler domain.HandlerKey) string {
	if handler == domain.HandlerActionExpert {
		return output
	}
	if strings.Contains(output, SuggestionsHeader) || strings.Contains(output, "Next actions:") {
		return output
	}

	suggestions := synthesize(strings.ToLower(output), strings.ToLower(userMessage))
	if len(suggestions) == 0 {
		return output
	}
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	var b strings.Builder
	b.WriteString(output)
	b.WriteString("\n\n")
	b.WriteString(SuggestionsHeader)
	b.WriteString("\n")
	for i, s := range suggestions {
		fmt.Fprintf(&b, "%d) %s\n", i+1, RewritePerspective(s))
	}
	return strings.TrimRight(b.String(), "\n")
}

// synthesize derives follow-up topics from what the answer mentions.
// The answer text drives it; the user message only breaks ties.
func synthesize(output, user string) []string {
	var out []string
	add := func(s ...string) { out = append(out, s...) }

	if strings.Contains(output, "کنش") {
		switch {
		case strings.Contains(output, "محفل"):
			add("نحوه برگزاری محفل خانگی", "آیه‌های مناسب برای محفل")
		case strings.Contains(output, "مدرسه"):
			add("نحوه اجرای کنش در مدرسه")
			if strings.Contains(output, "معرفی") || strings.Contains(output, "تبلیغ") {
				add("راهکارهای تبلیغ در محیط مدرسه")
			}
		case strings.Contains(output, "خانه") || strings.Contains(output, "خانگی"):
			add("ایده‌های کنش خانگی", "درگیر کردن خانواده در کنش‌ها")
		case strings.Contains(output, "مسجد"):
			add("هماهنگی با مسئولین مسجد")
		case strings.Contains(output, "مجازی"):
			add("ایده‌های محتوای مجازی", "پلتفرم‌های مناسب برای تبلیغ")
		}
	}

	if strings.Contains(output, "سفیر") {
		if containsAny(output, "نقش", "وظیفه", "مسئولیت") {
			add("چالش‌های سفیران", "حمایت‌های سازمان از سفیران")
		} else if strings.Contains(user, "شروع") || strings.Contains(output, "فعالیت") {
			add("اولین قدم‌های یک سفیر", "دریافت پشتیبانی و آموزش")
		}
	}

	if verses := verseRef.FindAllStringSubmatch(output, 2); len(verses) > 0 {
		add("تفسیر آیه " + verses[0][1])
		if len(verses) > 1 {
			add(fmt.Sprintf("ارتباط آیه %s با آیه %s", verses[0][1], verses[1][1]))
		}
	}

	if strings.Contains(output, "ثبت") && strings.Contains(output, "گزارش") {
		add("نحوه ثبت گزارش کنش")
	}
	if containsAny(output, "امتیاز", "پاداش") {
		add("سیستم امتیازدهی سفیران")
	}
	if containsAny(output, "تیم", "گروه") {
		add("همکاری تیمی در انجام کنش‌ها")
	}

	if len(out) < 2 && containsAny(user, "چطور", "چگونه", "نحوه") {
		if strings.Contains(output, "گزارش") {
			add("نمونه گزارش موفق")
		}
		if strings.Contains(output, "کنش") {
			add("تجربیات سفیران دیگر")
		}
	}

	if len(out) == 0 {
		switch {
		case strings.Contains(output, "سفیر"):
			add("سوالات بیشتر درباره نقش سفیران")
		case strings.Contains(output, "کنش"):
			add("سوالات بیشتر درباره کنش‌ها")
		default:
			add("ادامه مطلب")
		}
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

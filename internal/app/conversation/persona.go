package conversation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/safirlabs/safir-agent/internal/domain"
)

// Persona is the voice of one specialist handler.
type Persona struct {
	Key            string `yaml:"key"`
	Name           string `yaml:"name"`
	SystemPrompt   string `yaml:"system_prompt"`
	WelcomeMessage string `yaml:"welcome_message"`
}

type personasFile struct {
	Personas []Persona `yaml:"personas"`
}

// Personas resolves a handler to its persona, falling back to the
// default handler's persona for anything unknown.
type Personas struct {
	byKey map[domain.HandlerKey]Persona
}

// LoadPersonas reads personas from YAML; a missing file yields the
// compiled-in defaults.
func LoadPersonas(path string) (*Personas, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewPersonas(DefaultPersonas()), nil
		}
		return nil, fmt.Errorf("read personas: %w", err)
	}
	var file personasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse personas: %w", err)
	}
	if len(file.Personas) == 0 {
		return NewPersonas(DefaultPersonas()), nil
	}
	return NewPersonas(file.Personas), nil
}

func NewPersonas(personas []Persona) *Personas {
	byKey := make(map[domain.HandlerKey]Persona, len(personas))
	for _, p := range personas {
		byKey[domain.HandlerKey(p.Key)] = p
	}
	return &Personas{byKey: byKey}
}

// For returns the persona of a handler.
func (p *Personas) For(handler domain.HandlerKey) Persona {
	if persona, ok := p.byKey[handler]; ok {
		return persona
	}
	return p.byKey[domain.DefaultHandler]
}

// DefaultPersonas returns the built-in personas of the closed handler
// set.
func DefaultPersonas() []Persona {
	return []Persona{
		{
			Key:  string(domain.HandlerFAQ),
			Name: "راهنمای سفیران",
			SystemPrompt: `تو راهنمای نهضت سفیران آیه‌ها هستی. به سوالات کلی درباره نهضت،
نقش سفیر، نحوه شروع و مسیر فعالیت پاسخ می‌دهی. لحن صمیمی و محاوره‌ای فارسی.
پاسخ کوتاه و کاربردی بده و از دانش بازیابی‌شده استفاده کن.`,
			WelcomeMessage: "سلام! خوش اومدی به سفیران آیه‌ها 🌟 چطور می‌تونم کمکت کنم؟",
		},
		{
			Key:  string(domain.HandlerActionExpert),
			Name: "متخصص کنش",
			SystemPrompt: `تو متخصص کنش‌های قرآنی سفیران آیه‌ها هستی. برای انتخاب، طراحی و
اجرای کنش‌ها (محفل، صبحگاه، فضاسازی و...) محتوا و اسکریپت تولید می‌کنی.
فقط در حوزه کنش‌ها پاسخ بده. لحن صمیمی فارسی.`,
			WelcomeMessage: "سلام! برای تولید محتوای کنش‌ها آماده‌ام. چه کنشی مد نظرته؟",
		},
		{
			Key:  string(domain.HandlerJourneyRegister),
			Name: "همراه مسیر",
			SystemPrompt: `تو همراه مسیر سفیران آیه‌ها هستی. در ثبت کنش، گزارش‌دهی و تکمیل
پروفایل قدم‌به‌قدم راهنمایی می‌کنی. لحن صمیمی و تشویق‌کننده فارسی.`,
			WelcomeMessage: "سلام! بیا مسیر سفیران رو با هم طی کنیم. از کجا شروع کنیم؟",
		},
		{
			Key:  string(domain.HandlerRewardsInvite),
			Name: "مشاور امتیازات",
			SystemPrompt: `تو مشاور امتیازات و دعوت سفیران آیه‌ها هستی. درباره جوایز، امتیاز،
سکه و کد معرف پاسخ می‌دهی. لحن صمیمی فارسی.`,
			WelcomeMessage: "سلام! برای اطلاعات امتیازات و دعوت‌ها اینجام. چه چیزی می‌خوای بدونی؟",
		},
	}
}

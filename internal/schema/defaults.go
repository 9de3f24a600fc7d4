package schema

import "github.com/safirlabs/safir-agent/internal/domain"

func intPtr(n int) *int { return &n }

// DefaultFields is the compiled-in field set, used when no fields.yaml
// is present. Mirrors config/fields.yaml.
func DefaultFields() []Field {
	return []Field{
		{
			FieldName:     "name",
			NormalizedKey: "user_name",
			Description:   "نام کاربر",
			DataType:      domain.KindString,
			Aliases:       []string{"full_name", "نام"},
			Enabled:       true,
		},
		{
			FieldName:     "age",
			NormalizedKey: "user_age",
			Description:   "سن کاربر",
			DataType:      domain.KindInteger,
			Aliases:       []string{"سن"},
			Enabled:       true,
			Validation:    Validation{Min: intPtr(1), Max: intPtr(120)},
		},
		{
			FieldName:     "location",
			NormalizedKey: "user_location",
			Description:   "شهر یا محل سکونت",
			DataType:      domain.KindString,
			Aliases:       []string{"city", "شهر"},
			Enabled:       true,
		},
		{
			FieldName:     "occupation",
			NormalizedKey: "user_occupation",
			Description:   "شغل یا نقش کاربر",
			DataType:      domain.KindString,
			Aliases:       []string{"job", "role", "شغل", "نقش"},
			Enabled:       true,
		},
		{
			FieldName:     "interest",
			NormalizedKey: "user_interests",
			Description:   "علایق کاربر",
			DataType:      domain.KindList,
			Aliases:       []string{"hobby", "علاقه"},
			Accumulate:    true,
			Enabled:       true,
		},
		{
			FieldName:     "platform",
			NormalizedKey: "user_platform",
			Description:   "بستر انجام کنش (خانه، مدرسه، مسجد، فضای مجازی)",
			DataType:      domain.KindString,
			Aliases:       []string{"بستر", "context"},
			Enabled:       true,
			Validation: Validation{
				AllowedValues: []string{"خانه", "مدرسه", "مسجد", "فضای مجازی", "محیط کار", "عمومی"},
			},
		},
		{
			FieldName:     "language",
			NormalizedKey: "preferred_language",
			Description:   "زبان ترجیحی",
			DataType:      domain.KindString,
			Aliases:       []string{"language_preference", "زبان"},
			Enabled:       true,
			Validation:    Validation{AllowedValues: []string{"fa", "en", "ar"}},
		},
	}
}

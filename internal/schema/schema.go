// Package schema holds the declarative description of extractable
// structured facts and their validation rules.
package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/safirlabs/safir-agent/internal/domain"
)

// Validation is the optional rule set attached to a field.
type Validation struct {
	Min           *int     `yaml:"min,omitempty" json:"min,omitempty"`
	Max           *int     `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern       string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	AllowedValues []string `yaml:"allowed_values,omitempty" json:"allowed_values,omitempty"`

	compiled *regexp.Regexp
}

func (v *Validation) pattern() (*regexp.Regexp, error) {
	if v.Pattern == "" {
		return nil, nil
	}
	if v.compiled == nil {
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", v.Pattern, err)
		}
		v.compiled = re
	}
	return v.compiled, nil
}

// Field describes one extractable fact.
type Field struct {
	FieldName     string           `yaml:"field_name" json:"field_name"`
	NormalizedKey string           `yaml:"normalized_key" json:"normalized_key"`
	Description   string           `yaml:"description,omitempty" json:"description,omitempty"`
	DataType      domain.FieldKind `yaml:"data_type" json:"data_type"`
	Aliases       []string         `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Examples      []string         `yaml:"examples,omitempty" json:"examples,omitempty"`
	Accumulate    bool             `yaml:"accumulate,omitempty" json:"accumulate,omitempty"`
	Enabled       bool             `yaml:"enabled" json:"enabled"`
	Validation    Validation       `yaml:"validation,omitempty" json:"validation,omitempty"`
}

// persianDigits maps Persian and Arabic-Indic digit glyphs to ASCII.
var persianDigits = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// NormalizeDigits converts localized digit glyphs in s to ASCII.
func NormalizeDigits(s string) string {
	return persianDigits.Replace(s)
}

// Convert validates a raw extracted value against the field's rules and
// returns the typed fact. A failure rejects only this field.
func (f *Field) Convert(raw string) (domain.FieldValue, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.FieldValue{}, fmt.Errorf("%w: %s: empty value", domain.ErrFieldRejected, f.NormalizedKey)
	}

	switch f.DataType {
	case domain.KindInteger:
		digits := onlyDigits(NormalizeDigits(raw))
		if digits == "" {
			return domain.FieldValue{}, fmt.Errorf("%w: %s: no digits in %q", domain.ErrFieldRejected, f.NormalizedKey, raw)
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return domain.FieldValue{}, fmt.Errorf("%w: %s: parse %q: %v", domain.ErrFieldRejected, f.NormalizedKey, raw, err)
		}
		if f.Validation.Min != nil && n < *f.Validation.Min {
			return domain.FieldValue{}, fmt.Errorf("%w: %s: %d below min %d", domain.ErrFieldRejected, f.NormalizedKey, n, *f.Validation.Min)
		}
		if f.Validation.Max != nil && n > *f.Validation.Max {
			return domain.FieldValue{}, fmt.Errorf("%w: %s: %d above max %d", domain.ErrFieldRejected, f.NormalizedKey, n, *f.Validation.Max)
		}
		return domain.IntValue(n), nil

	case domain.KindList:
		if err := f.checkString(raw); err != nil {
			return domain.FieldValue{}, err
		}
		return domain.ListValue(raw), nil

	default: // string
		if err := f.checkString(raw); err != nil {
			return domain.FieldValue{}, err
		}
		return domain.StringValue(raw), nil
	}
}

func (f *Field) checkString(raw string) error {
	re, err := f.Validation.pattern()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrFieldRejected, f.NormalizedKey, err)
	}
	if re != nil && !re.MatchString(raw) {
		return fmt.Errorf("%w: %s: %q does not match pattern", domain.ErrFieldRejected, f.NormalizedKey, raw)
	}
	if len(f.Validation.AllowedValues) > 0 {
		for _, allowed := range f.Validation.AllowedValues {
			if raw == allowed {
				return nil
			}
		}
		return fmt.Errorf("%w: %s: %q not in allowed set", domain.ErrFieldRejected, f.NormalizedKey, raw)
	}
	return nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

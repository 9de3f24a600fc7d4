package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safirlabs/safir-agent/internal/domain"
	"github.com/safirlabs/safir-agent/internal/schema"
)

func intPtr(n int) *int { return &n }

func TestNormalizeDigits(t *testing.T) {
	assert.Equal(t, "25", schema.NormalizeDigits("۲۵"))
	assert.Equal(t, "107", schema.NormalizeDigits("١٠٧"))
	assert.Equal(t, "abc 42", schema.NormalizeDigits("abc 42"))
}

func TestConvertInteger(t *testing.T) {
	f := schema.Field{
		FieldName:     "age",
		NormalizedKey: "user_age",
		DataType:      domain.KindInteger,
		Enabled:       true,
		Validation:    schema.Validation{Min: intPtr(1), Max: intPtr(120)},
	}

	v, err := f.Convert("25 years old")
	require.NoError(t, err)
	assert.Equal(t, domain.IntValue(25), v)

	v, err = f.Convert("۲۵ ساله")
	require.NoError(t, err)
	assert.Equal(t, 25, v.Number)

	_, err = f.Convert("not a number")
	assert.ErrorIs(t, err, domain.ErrFieldRejected)

	tight := f
	tight.Validation = schema.Validation{Max: intPtr(10)}
	_, err = tight.Convert("25")
	assert.ErrorIs(t, err, domain.ErrFieldRejected)
}

func TestConvertStringValidation(t *testing.T) {
	f := schema.Field{
		FieldName:     "platform",
		NormalizedKey: "user_platform",
		DataType:      domain.KindString,
		Enabled:       true,
		Validation:    schema.Validation{AllowedValues: []string{"خانه", "مدرسه"}},
	}

	v, err := f.Convert("مدرسه")
	require.NoError(t, err)
	assert.Equal(t, "مدرسه", v.Text)

	_, err = f.Convert("جای دیگر")
	assert.ErrorIs(t, err, domain.ErrFieldRejected)

	patterned := schema.Field{
		FieldName:     "code",
		NormalizedKey: "invite_code",
		DataType:      domain.KindString,
		Enabled:       true,
		Validation:    schema.Validation{Pattern: `^[A-Z]{2}\d{4}$`},
	}
	_, err = patterned.Convert("XY1234")
	assert.NoError(t, err)
	_, err = patterned.Convert("nope")
	assert.ErrorIs(t, err, domain.ErrFieldRejected)
}

func TestRegistryResolve(t *testing.T) {
	reg, err := schema.NewRegistry(schema.DefaultFields())
	require.NoError(t, err)

	f, err := reg.Resolve("city")
	require.NoError(t, err)
	assert.Equal(t, "user_location", f.NormalizedKey)

	f, err = reg.Resolve("Age")
	require.NoError(t, err)
	assert.Equal(t, "user_age", f.NormalizedKey)

	_, err = reg.Resolve("shoe_size")
	assert.ErrorIs(t, err, domain.ErrUnknownField)
}

func TestRegistryResolveIgnoresDisabled(t *testing.T) {
	fields := schema.DefaultFields()
	reg, err := schema.NewRegistry(fields)
	require.NoError(t, err)

	require.NoError(t, reg.SetEnabled("age", false))
	_, err = reg.Resolve("age")
	assert.ErrorIs(t, err, domain.ErrUnknownField)

	require.NoError(t, reg.SetEnabled("age", true))
	_, err = reg.Resolve("age")
	assert.NoError(t, err)
}

func TestRegistryRejectsDuplicateKeys(t *testing.T) {
	fields := []schema.Field{
		{FieldName: "a", NormalizedKey: "dup", DataType: domain.KindString, Enabled: true},
		{FieldName: "b", NormalizedKey: "dup", DataType: domain.KindString, Enabled: true},
	}
	_, err := schema.NewRegistry(fields)
	assert.Error(t, err)
}

func TestRegistryAddUpdate(t *testing.T) {
	reg, err := schema.NewRegistry(schema.DefaultFields())
	require.NoError(t, err)

	newField := schema.Field{
		FieldName:     "team",
		NormalizedKey: "user_team",
		DataType:      domain.KindString,
		Enabled:       true,
	}
	require.NoError(t, reg.Add(newField))
	assert.Error(t, reg.Add(newField), "duplicate field name must be rejected")

	newField.Description = "تیم کاربر"
	require.NoError(t, reg.Update("team", newField))

	got, ok := reg.Get("team")
	require.True(t, ok)
	assert.Equal(t, "تیم کاربر", got.Description)

	var unknown schema.Field
	unknown.FieldName = "ghost"
	assert.Error(t, reg.Update("ghost", unknown))
}

func TestAppendUniquePreservesOrder(t *testing.T) {
	v := domain.ListValue("قرآن")
	v = v.AppendUnique("ورزش")
	v = v.AppendUnique("قرآن")
	v = v.AppendUnique("کتاب")

	assert.Equal(t, []string{"قرآن", "ورزش", "کتاب"}, v.List)
}

func TestConvertErrorsWrapSentinel(t *testing.T) {
	f := schema.Field{FieldName: "x", NormalizedKey: "x", DataType: domain.KindInteger, Enabled: true}
	_, err := f.Convert("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFieldRejected))
}

package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return NewValidator(func() time.Time { return fixedNow }, nil)
}

func validForm() Form {
	return Form{
		Name:      "John",
		Email:     "a@b.com",
		Phone:     "12345678",
		PartySize: "2",
		Date:      "2099-01-01",
	}
}

func TestValidate_ValidForm(t *testing.T) {
	v := newTestValidator()

	b, err := v.Validate(validForm())
	require.NoError(t, err)

	assert.NotZero(t, b.ID)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, fixedNow, b.CreatedAt)
	assert.Equal(t, "John", b.Name)
	assert.Equal(t, "", b.Message)
}

func TestValidate_NormalizesInput(t *testing.T) {
	v := newTestValidator()

	form := validForm()
	form.Name = "  John  "
	form.Email = " john@example.com "
	form.Phone = "11 2345 6789"
	form.Message = "  window seat  "

	b, err := v.Validate(form)
	require.NoError(t, err)

	assert.Equal(t, "John", b.Name)
	assert.Equal(t, "john@example.com", b.Email)
	assert.Equal(t, "1123456789", b.Phone)
	assert.Equal(t, "window seat", b.Message)
}

func TestValidate_SingleRuleViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *Form)
		field  Field
	}{
		{"short name", func(f *Form) { f.Name = "Jo" }, FieldName},
		{"whitespace name", func(f *Form) { f.Name = "      " }, FieldName},
		{"missing at", func(f *Form) { f.Email = "john.example.com" }, FieldEmail},
		{"no dot after at", func(f *Form) { f.Email = "john@example" }, FieldEmail},
		{"space in email", func(f *Form) { f.Email = "jo hn@example.com" }, FieldEmail},
		{"two ats", func(f *Form) { f.Email = "a@b@c.com" }, FieldEmail},
		{"no-break space in email", func(f *Form) { f.Email = "a\u00a0b@c.com" }, FieldEmail},
		{"ideographic space in domain", func(f *Form) { f.Email = "ab@c\u3000d.com" }, FieldEmail},
		{"next line in email", func(f *Form) { f.Email = "a\u0085b@c.com" }, FieldEmail},
		{"phone too short", func(f *Form) { f.Phone = "1234567" }, FieldPhone},
		{"phone too long", func(f *Form) { f.Phone = "1234567890123456" }, FieldPhone},
		{"phone with letters", func(f *Form) { f.Phone = "1234abcd" }, FieldPhone},
		{"phone with plus", func(f *Form) { f.Phone = "+12345678" }, FieldPhone},
		{"missing party size", func(f *Form) { f.PartySize = "" }, FieldPartySize},
		{"yesterday", func(f *Form) { f.Date = "2025-01-14" }, FieldDate},
		{"missing date", func(f *Form) { f.Date = "" }, FieldDate},
		{"garbage date", func(f *Form) { f.Date = "next friday" }, FieldDate},
	}

	v := newTestValidator()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			form := validForm()
			tc.mutate(&form)

			_, err := v.Validate(form)
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tc.field, verrs[0].Field)
			assert.NotEmpty(t, verrs[0].Message)
		})
	}
}

func TestValidate_SameDayAllowed(t *testing.T) {
	v := newTestValidator()

	form := validForm()
	form.Date = "2025-01-15"

	_, err := v.Validate(form)
	assert.NoError(t, err)
}

func TestValidate_PhoneBounds(t *testing.T) {
	v := newTestValidator()

	for _, phone := range []string{"12345678", "123456789012345"} {
		form := validForm()
		form.Phone = phone
		_, err := v.Validate(form)
		assert.NoError(t, err, phone)
	}
}

func TestValidate_ReportsAllViolations(t *testing.T) {
	v := newTestValidator()

	_, err := v.Validate(Form{})

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []Field{FieldName, FieldEmail, FieldPhone, FieldPartySize, FieldDate}, fields(verrs))
}

func TestValidate_ShortNameScenario(t *testing.T) {
	v := newTestValidator()

	form := Form{Name: "Jo", Email: "a@b.com", Phone: "12345678", PartySize: "2", Date: "2099-01-01"}
	_, err := v.Validate(form)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, FieldName, verrs[0].Field)
	assert.Contains(t, verrs[0].Message, "at least 3 characters")

	form.Name = "John"
	b, err := v.Validate(form)
	require.NoError(t, err)
	assert.Equal(t, "John", b.Name)
}

func TestValidate_UniqueIDsWithinSameMillisecond(t *testing.T) {
	v := newTestValidator()

	first, err := v.Validate(validForm())
	require.NoError(t, err)
	second, err := v.Validate(validForm())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Greater(t, second.ID, first.ID)
}

func TestValidateField(t *testing.T) {
	v := newTestValidator()

	msg, err := v.ValidateField(FieldName, "Jo")
	require.NoError(t, err)
	assert.Equal(t, "Name must be at least 3 characters", msg)

	msg, err = v.ValidateField(FieldName, "John")
	require.NoError(t, err)
	assert.Empty(t, msg)

	msg, err = v.ValidateField(FieldPhone, "1234 5678")
	require.NoError(t, err)
	assert.Empty(t, msg)

	msg, err = v.ValidateField(FieldDate, "2025-01-14")
	require.NoError(t, err)
	assert.NotEmpty(t, msg)

	_, err = v.ValidateField(Field("nickname"), "x")
	assert.Error(t, err)
}

func TestValidateFields(t *testing.T) {
	v := newTestValidator()

	out, err := v.ValidateFields(map[Field]string{
		FieldName:  "  Johnny ",
		FieldPhone: "1234 5678 9",
	})
	require.NoError(t, err)
	assert.Equal(t, map[Field]string{FieldName: "Johnny", FieldPhone: "123456789"}, out)

	_, err = v.ValidateFields(map[Field]string{
		FieldName:      "",
		FieldEmail:     "not an email",
		FieldPhone:     "x",
		FieldPartySize: "",
		FieldDate:      "1999-01-01",
	})
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []Field{FieldName, FieldEmail, FieldPhone, FieldPartySize, FieldDate}, fieldsOf(verrs))

	out, err = v.ValidateFields(nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = v.ValidateFields(map[Field]string{"nickname": "x"})
	assert.Error(t, err)
	assert.False(t, errors.As(err, &verrs))
}

func fieldsOf(errs ValidationErrors) []Field {
	out := make([]Field, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestValidationErrors_ByField(t *testing.T) {
	errs := ValidationErrors{
		{Field: FieldName, Message: "bad name"},
		{Field: FieldDate, Message: "bad date"},
	}

	assert.Equal(t, map[Field]string{FieldName: "bad name", FieldDate: "bad date"}, errs.ByField())
	assert.True(t, errs.Has(FieldDate))
	assert.False(t, errs.Has(FieldEmail))
	assert.Contains(t, errs.Error(), "name: bad name")
}

func fields(errs ValidationErrors) []Field {
	out := make([]Field, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

package booking

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

type Field string

const (
	FieldName      Field = "name"
	FieldEmail     Field = "email"
	FieldPhone     Field = "phone"
	FieldPartySize Field = "partySize"
	FieldDate      Field = "date"
)

// Form is the raw input collected by the booking form.
type Form struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	PartySize string `json:"partySize"`
	Date      string `json:"date"`
	Message   string `json:"message"`
}

var (
	emailPattern = regexp.MustCompile(`^[^\s\p{Z}@]+@[^\s\p{Z}@]+\.[^\s\p{Z}@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9]{8,15}$`)
)

type rule struct {
	field   Field
	tags    string
	message string
}

var rules = []rule{
	{FieldName, "required,min=3", "Name must be at least 3 characters"},
	{FieldEmail, "required,booking_email", "Enter a valid email address"},
	{FieldPhone, "required,booking_phone", "Enter a valid phone number (8-15 digits)"},
	{FieldPartySize, "required", "Select the number of people"},
	{FieldDate, "required,booking_date", "Select a valid date (today or later)"},
}

type Validator struct {
	validate *validator.Validate
	now      func() time.Time
	ids      IDGenerator
}

func NewValidator(now func() time.Time, ids IDGenerator) *Validator {
	if now == nil {
		now = time.Now
	}
	if ids == nil {
		ids = NewMonotonicIDs(now)
	}

	v := &Validator{
		validate: validator.New(),
		now:      now,
		ids:      ids,
	}

	// registration only fails on an empty tag or a nil func
	_ = v.validate.RegisterValidation("booking_email", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return emailPattern.MatchString(value) && !strings.ContainsFunc(value, unicode.IsSpace)
	})
	_ = v.validate.RegisterValidation("booking_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.validate.RegisterValidation("booking_date", v.notPast)

	return v
}

// Validate checks every field of the form and, when all of them pass,
// returns a new pending booking. On failure the error is ValidationErrors.
func (v *Validator) Validate(form Form) (Booking, error) {
	normalized := normalize(form)

	var errs ValidationErrors
	for _, r := range rules {
		if msg, ok := v.check(r, normalized.value(r.field)); !ok {
			errs = append(errs, FieldError{Field: r.field, Message: msg})
		}
	}
	if len(errs) > 0 {
		return Booking{}, errs
	}

	return Booking{
		ID:        v.ids.Next(),
		Name:      normalized.Name,
		Email:     normalized.Email,
		Phone:     normalized.Phone,
		PartySize: normalized.PartySize,
		Date:      normalized.Date,
		Message:   normalized.Message,
		CreatedAt: v.now().UTC(),
		Status:    StatusPending,
	}, nil
}

// Fields lists the validated form fields in rule order.
func Fields() []Field {
	out := make([]Field, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.field)
	}
	return out
}

// ValidateField re-checks a single field, as done when an input loses focus.
// It returns an empty message when the value is acceptable.
func (v *Validator) ValidateField(field Field, value string) (string, error) {
	var form Form
	if !form.set(field, value) {
		return "", errors.New("unknown field: " + string(field))
	}

	normalized := normalize(form)
	for _, r := range rules {
		if r.field != field {
			continue
		}
		if msg, ok := v.check(r, normalized.value(field)); !ok {
			return msg, nil
		}
	}
	return "", nil
}

// ValidateFields checks only the given fields, as needed when a stored
// booking is patched, and returns them normalized. On failure the error is
// ValidationErrors in rule order.
func (v *Validator) ValidateFields(values map[Field]string) (map[Field]string, error) {
	var form Form
	for field, value := range values {
		if !form.set(field, value) {
			return nil, errors.New("unknown field: " + string(field))
		}
	}

	normalized := normalize(form)
	out := make(map[Field]string, len(values))
	var errs ValidationErrors
	for _, r := range rules {
		if _, ok := values[r.field]; !ok {
			continue
		}
		value := normalized.value(r.field)
		if msg, ok := v.check(r, value); !ok {
			errs = append(errs, FieldError{Field: r.field, Message: msg})
			continue
		}
		out[r.field] = value
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func (v *Validator) check(r rule, value string) (string, bool) {
	if err := v.validate.Var(value, r.tags); err != nil {
		return r.message, false
	}
	return "", true
}

func (v *Validator) notPast(fl validator.FieldLevel) bool {
	now := v.now()
	date, err := time.ParseInLocation(DateLayout, fl.Field().String(), now.Location())
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return !date.Before(today)
}

func normalize(f Form) Form {
	return Form{
		Name:      strings.TrimSpace(f.Name),
		Email:     strings.TrimSpace(f.Email),
		Phone:     stripSpaces(f.Phone),
		PartySize: strings.TrimSpace(f.PartySize),
		Date:      strings.TrimSpace(f.Date),
		Message:   strings.TrimSpace(f.Message),
	}
}

func (f *Form) set(field Field, value string) bool {
	switch field {
	case FieldName:
		f.Name = value
	case FieldEmail:
		f.Email = value
	case FieldPhone:
		f.Phone = value
	case FieldPartySize:
		f.PartySize = value
	case FieldDate:
		f.Date = value
	default:
		return false
	}
	return true
}

func (f Form) value(field Field) string {
	switch field {
	case FieldName:
		return f.Name
	case FieldEmail:
		return f.Email
	case FieldPhone:
		return f.Phone
	case FieldPartySize:
		return f.PartySize
	case FieldDate:
		return f.Date
	}
	return ""
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

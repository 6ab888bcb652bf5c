package booking

import "strings"

type FieldError struct {
	Field   Field  `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every violated field of a form, in form order.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, string(fe.Field)+": "+fe.Message)
	}
	return "invalid booking: " + strings.Join(parts, "; ")
}

func (e ValidationErrors) ByField() map[Field]string {
	out := make(map[Field]string, len(e))
	for _, fe := range e {
		out[fe.Field] = fe.Message
	}
	return out
}

func (e ValidationErrors) Has(field Field) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

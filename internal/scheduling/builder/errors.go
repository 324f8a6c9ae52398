package builder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnresolvedTime  = errors.New("time could not be resolved to an absolute instant")
	ErrUnknownTemplate = errors.New("template not found")
	ErrNoOccurrences   = errors.New("recurrence produces no dates")
	ErrNotConflicted   = errors.New("outcome has no conflict to resolve")
)

// FieldError is a local validation failure tied to one draft field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Message) }

// ValidationErrors collects every field problem of a draft. Nothing is sent
// to the collaborator when a draft fails validation.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "invalid schedule: " + strings.Join(msgs, "; ")
}

// Has reports whether field failed validation.
func (v ValidationErrors) Has(field string) bool {
	for _, e := range v {
		if e.Field == field {
			return true
		}
	}
	return false
}

func (v *ValidationErrors) add(field, format string, args ...any) {
	*v = append(*v, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v ValidationErrors) err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

package module

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrValidation = errors.New("validation error")

// ValidationError is a structural contract violation in one module file.
type ValidationError struct {
	Kind     Kind
	Filename string
	Message  string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(m *Internal, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Kind:     m.Kind,
		Filename: m.Filename,
		Message:  fmt.Sprintf("%s %s ", m.Kind, m.Filename) + fmt.Sprintf(format, args...),
	}
}

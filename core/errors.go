package core

import (
	"strings"

	"github.com/pkg/errors"
)

const msgRequired = "this field is required"

// FieldError reports a rejected value of one input field, keyed by its json name.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned when user input is rejected. It is rendered as a 400
// with one message per field.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// FieldRequired rejects a missing value.
func FieldRequired(field string) error {
	return NewValidationError(nil, FieldError{Field: field, Error: msgRequired})
}

// FieldInvalid rejects field with the message of err, which stays the underlying error.
func FieldInvalid(field string, err error) error {
	return NewValidationError(err, FieldError{Field: field, Error: err.Error()})
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	msgs := make([]string, len(err.Fields))
	for i, f := range err.Fields {
		msgs[i] = f.Field + ": " + f.Error
	}
	return strings.Join(msgs, "; ")
}

func (err ValidationError) Unwrap() error { return err.Err }

// Field returns the message for field, if it was rejected.
func (err ValidationError) Field(name string) (string, bool) {
	for _, f := range err.Fields {
		if f.Field == name {
			return f.Error, true
		}
	}
	return "", false
}

// FieldMap indexes the messages by field. The first message wins on duplicates.
func (err ValidationError) FieldMap() map[string]string {
	m := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		if _, ok := m[f.Field]; !ok {
			m[f.Field] = f.Error
		}
	}
	return m
}

// AsValidation returns the ValidationError at the root of err.
func AsValidation(err error) (*ValidationError, bool) {
	vErr, ok := errors.Cause(err).(*ValidationError)
	return vErr, ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

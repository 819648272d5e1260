package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidInput is the sentinel every user-correctable input failure wraps.
var ErrInvalidInput = errors.New("invalid input")

// InputError carries a message suitable for showing next to a form.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// NewInputError returns an InputError for field with a user-facing message.
func NewInputError(field, message string) error {
	return &InputError{Field: field, Message: message}
}

// Message returns the user-facing message of an input error, or "" when err
// is not one.
func Message(err error) string {
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return inputErr.Message
	}
	return ""
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Messages maps "Field.tag" to the message returned for that failure.
// Failures without an entry fall back to a generic message.
type Messages map[string]string

// Struct validates v using its `validate` struct tags and converts the first
// failure into an InputError.
func Struct(v any, messages Messages) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate input: %w", err)
	}

	first := fieldErrs[0]
	field := strings.ToLower(first.Field())
	if msg, ok := messages[first.Field()+"."+first.Tag()]; ok {
		return NewInputError(field, msg)
	}
	if first.Tag() == "max" {
		return NewInputError(field, fmt.Sprintf("%s must be at most %s characters", first.Field(), first.Param()))
	}
	return NewInputError(field, fmt.Sprintf("%s is required", first.Field()))
}

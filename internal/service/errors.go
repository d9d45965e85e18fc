package service

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrValidation indicates the caller sent missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the request collides with existing state.
	ErrConflict = errors.New("conflict")
	// ErrCapacity indicates a request exceeds the available inventory.
	ErrCapacity = errors.New("insufficient capacity")
	// ErrStorage indicates the record store failed.
	ErrStorage = errors.New("storage failure")
	// ErrRenderer indicates the document renderer rejected or missed a request.
	ErrRenderer = errors.New("document renderer unavailable")
)

// Error carries the kind of a manager failure together with the operation and
// the offending fields. Use errors.Is against the Err* kinds to classify it.
type Error struct {
	Kind    error
	Op      string
	Fields  []string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Describe())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Describe returns the caller-facing message without the operation or cause.
func (e *Error) Describe() string {
	message := e.Message
	if message == "" && e.Kind != nil {
		message = e.Kind.Error()
	}
	if len(e.Fields) > 0 {
		message += ": " + strings.Join(e.Fields, ", ")
	}
	return message
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func validationFailed(op string, fields ...string) *Error {
	return &Error{Kind: ErrValidation, Op: op, Fields: fields}
}

func notFound(op, message string) *Error {
	return &Error{Kind: ErrNotFound, Op: op, Message: message}
}

func conflict(op, message string) *Error {
	return &Error{Kind: ErrConflict, Op: op, Message: message}
}

func capacityExceeded(op, message string) *Error {
	return &Error{Kind: ErrCapacity, Op: op, Message: message}
}

func storageFailed(op string, err error) *Error {
	return &Error{Kind: ErrStorage, Op: op, Message: "storage failure", Err: err}
}

// validationFields lists the offending fields of a validator failure using
// their JSON-style names, e.g. entries[0].student_id.
func validationFields(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		namespace := fieldErr.Namespace()
		if idx := strings.Index(namespace, "."); idx >= 0 {
			namespace = namespace[idx+1:]
		}
		parts := strings.Split(namespace, ".")
		for i, part := range parts {
			parts[i] = snakeCase(part)
		}
		fields = append(fields, strings.Join(parts, "."))
	}
	return fields
}

func snakeCase(value string) string {
	runes := []rune(value)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// validate runs struct validation and converts failures into a validation
// error. extra fields found by manual checks are appended.
func validate(v *validator.Validate, op string, payload interface{}, extra ...string) error {
	var fields []string
	if err := v.Struct(payload); err != nil {
		fields = validationFields(err)
		if fields == nil {
			return &Error{Kind: ErrValidation, Op: op, Err: err}
		}
	}
	for _, field := range extra {
		if !containsString(fields, field) {
			fields = append(fields, field)
		}
	}
	if len(fields) > 0 {
		return validationFailed(op, fields...)
	}
	return nil
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

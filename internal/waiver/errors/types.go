package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// FillError represents a failure of the waiver fill pipeline with enough context for
// diagnostics and a user-facing message for notifications.
type FillError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	FieldID string    `json:"field_id,omitempty"`
	Index   int       `json:"index,omitempty"`
	Page    int       `json:"page,omitempty"`
	Fields  []string  `json:"fields,omitempty"`
	Err     error     `json:"-"`
}

// ErrorType represents the categories of fill failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConfiguration
	ErrorTypeCapacityExceeded
	ErrorTypeIncompleteFields
	ErrorTypeUnresolvedField
	ErrorTypeMissingPage
	ErrorTypeParse
	ErrorTypeDelivery
	ErrorTypeSubmissionInFlight
	ErrorTypeNotFound
	ErrorTypeInvalidInput
)

// Error implements the error interface
func (e *FillError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type.String(), e.Message)
	if e.FieldID != "" {
		fmt.Fprintf(&b, " (field %q, instance %d)", e.FieldID, e.Index)
	}
	if e.Page > 0 {
		fmt.Fprintf(&b, " (page %d)", e.Page)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *FillError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a FillError of the same type. This lets callers compare
// against the exported sentinels with errors.Is.
func (e *FillError) Is(target error) bool {
	t, ok := target.(*FillError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// UserMessage returns the notification text shown to the person filling the form
func (e *FillError) UserMessage() string {
	return e.Type.UserMessage()
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeConfiguration:
		return "CONFIGURATION"
	case ErrorTypeCapacityExceeded:
		return "CAPACITY_EXCEEDED"
	case ErrorTypeIncompleteFields:
		return "INCOMPLETE_FIELDS"
	case ErrorTypeUnresolvedField:
		return "UNRESOLVED_FIELD"
	case ErrorTypeMissingPage:
		return "MISSING_PAGE"
	case ErrorTypeParse:
		return "PARSE_ERROR"
	case ErrorTypeDelivery:
		return "DELIVERY"
	case ErrorTypeSubmissionInFlight:
		return "SUBMISSION_IN_FLIGHT"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeInvalidInput:
		return "INVALID_INPUT"
	default:
		return "UNKNOWN"
	}
}

// UserMessage returns the notification text for an error type
func (et ErrorType) UserMessage() string {
	switch et {
	case ErrorTypeIncompleteFields:
		return "please complete all required fields"
	case ErrorTypeUnresolvedField, ErrorTypeMissingPage, ErrorTypeParse:
		return "failed to generate document"
	case ErrorTypeDelivery:
		return "document was generated but could not be delivered"
	case ErrorTypeCapacityExceeded:
		return "no more entries can be added or removed here"
	case ErrorTypeSubmissionInFlight:
		return "a submission is already in progress"
	case ErrorTypeNotFound:
		return "the session or field was not found"
	case ErrorTypeInvalidInput:
		return "the value was not accepted"
	default:
		return "internal error"
	}
}

// IsFatal reports whether the error aborts the operation that triggered it rather than
// being refused and recovered locally.
func (et ErrorType) IsFatal() bool {
	switch et {
	case ErrorTypeCapacityExceeded, ErrorTypeIncompleteFields, ErrorTypeSubmissionInFlight,
		ErrorTypeNotFound, ErrorTypeInvalidInput:
		return false
	default:
		return true
	}
}

// Sentinels for errors.Is comparisons
var (
	ErrConfiguration      = &FillError{Type: ErrorTypeConfiguration}
	ErrCapacityExceeded   = &FillError{Type: ErrorTypeCapacityExceeded}
	ErrIncompleteFields   = &FillError{Type: ErrorTypeIncompleteFields}
	ErrUnresolvedField    = &FillError{Type: ErrorTypeUnresolvedField}
	ErrMissingPage        = &FillError{Type: ErrorTypeMissingPage}
	ErrParse              = &FillError{Type: ErrorTypeParse}
	ErrDelivery           = &FillError{Type: ErrorTypeDelivery}
	ErrSubmissionInFlight = &FillError{Type: ErrorTypeSubmissionInFlight}
	ErrNotFound           = &FillError{Type: ErrorTypeNotFound}
	ErrInvalidInput       = &FillError{Type: ErrorTypeInvalidInput}
)

// NewFillError creates a new FillError
func NewFillError(errorType ErrorType, message string) *FillError {
	return &FillError{Type: errorType, Message: message}
}

// Configurationf creates a schema authoring error
func Configurationf(format string, args ...any) *FillError {
	return NewFillError(ErrorTypeConfiguration, fmt.Sprintf(format, args...))
}

// CapacityExceeded creates an error for a refused add/remove
func CapacityExceeded(target string, count, bound int) *FillError {
	return &FillError{
		Type:    ErrorTypeCapacityExceeded,
		Message: fmt.Sprintf("%s: instance count %d is at bound %d", target, count, bound),
	}
}

// IncompleteFields creates a validation failure for the given field identifiers
func IncompleteFields(fields []string) *FillError {
	return &FillError{
		Type:    ErrorTypeIncompleteFields,
		Message: "please complete all required fields",
		Fields:  fields,
	}
}

// UnresolvedField creates an error for a field instance without value or default
func UnresolvedField(fieldID string, index int) *FillError {
	return &FillError{
		Type:    ErrorTypeUnresolvedField,
		Message: "no value and no default",
		FieldID: fieldID,
		Index:   index,
	}
}

// MissingPage creates an error for a target page absent from the document
func MissingPage(page, pageCount int) *FillError {
	return &FillError{
		Type:    ErrorTypeMissingPage,
		Message: fmt.Sprintf("document has %d page(s)", pageCount),
		Page:    page,
	}
}

// Wrap wraps a standard error as a FillError
func Wrap(errorType ErrorType, message string, err error) *FillError {
	return &FillError{Type: errorType, Message: message, Err: err}
}

// NotFoundf creates an error for an unknown session, field or instance
func NotFoundf(format string, args ...any) *FillError {
	return NewFillError(ErrorTypeNotFound, fmt.Sprintf(format, args...))
}

// WithField adds field location information to an existing FillError
func (e *FillError) WithField(fieldID string, index int) *FillError {
	e.FieldID = fieldID
	e.Index = index
	return e
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown when err carries no FillError
func TypeOf(err error) ErrorType {
	var fe *FillError
	if stderrors.As(err, &fe) {
		return fe.Type
	}
	return ErrorTypeUnknown
}

// UserMessage returns the notification text for any error
func UserMessage(err error) string {
	return TypeOf(err).UserMessage()
}

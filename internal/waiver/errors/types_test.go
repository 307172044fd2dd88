package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillError_Is(t *testing.T) {
	err := fmt.Errorf("submit: %w", UnresolvedField("age", 2))

	assert.True(t, stderrors.Is(err, ErrUnresolvedField))
	assert.False(t, stderrors.Is(err, ErrMissingPage))
	assert.Equal(t, ErrorTypeUnresolvedField, TypeOf(err))
	assert.Equal(t, "failed to generate document", UserMessage(err))
}

func TestFillError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *FillError
		want string
	}{
		{
			name: "field location",
			err:  UnresolvedField("age", 0),
			want: `[UNRESOLVED_FIELD] no value and no default (field "age", instance 0)`,
		},
		{
			name: "page",
			err:  MissingPage(9, 8),
			want: "[MISSING_PAGE] document has 8 page(s) (page 9)",
		},
		{
			name: "field list",
			err:  IncompleteFields([]string{"age", "email"}),
			want: "[INCOMPLETE_FIELDS] please complete all required fields: age, email",
		},
		{
			name: "wrapped cause",
			err:  Wrap(ErrorTypeParse, "load template", stderrors.New("bad xref")),
			want: "[PARSE_ERROR] load template: bad xref",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrorTypeDelivery, "send", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, ErrDelivery))
	assert.Equal(t, "document was generated but could not be delivered", err.UserMessage())
}

func TestErrorType_IsFatal(t *testing.T) {
	recoverable := []ErrorType{
		ErrorTypeCapacityExceeded, ErrorTypeIncompleteFields, ErrorTypeSubmissionInFlight,
		ErrorTypeNotFound, ErrorTypeInvalidInput,
	}
	fatal := []ErrorType{
		ErrorTypeConfiguration, ErrorTypeUnresolvedField, ErrorTypeMissingPage,
		ErrorTypeParse, ErrorTypeDelivery, ErrorTypeUnknown,
	}

	for _, et := range recoverable {
		assert.False(t, et.IsFatal(), et.String())
	}
	for _, et := range fatal {
		assert.True(t, et.IsFatal(), et.String())
	}
}

func TestTypeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("boom")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(nil))
	assert.Equal(t, "internal error", UserMessage(stderrors.New("boom")))
}

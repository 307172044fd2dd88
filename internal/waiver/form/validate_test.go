package form

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
)

func incompleteFields(t *testing.T, err error) []string {
	t.Helper()
	var fe *werrors.FillError
	require.True(t, errors.As(err, &fe), "expected FillError, got %v", err)
	require.Equal(t, werrors.ErrorTypeIncompleteFields, fe.Type)
	return fe.Fields
}

func TestValidate(t *testing.T) {
	sch := testSchema(t)

	t.Run("fresh session reports every required field", func(t *testing.T) {
		s := NewSession(sch)
		err := Validate(sch, s.Snapshot())
		assert.Equal(t, []string{"age", "full_name", "guest"}, incompleteFields(t, err))
		assert.Equal(t, "please complete all required fields", werrors.UserMessage(err))
	})

	t.Run("complete values pass with no minors", func(t *testing.T) {
		values := StateFrom(map[string][]string{
			"full_name": {"Jane Doe"},
			"age":       {"34"},
			"guest":     {"Ann"},
		})
		assert.NoError(t, Validate(sch, values))
	})

	t.Run("missing age", func(t *testing.T) {
		values := StateFrom(map[string][]string{
			"full_name": {"Jane Doe"},
			"age":       {""},
			"guest":     {"Ann"},
		})
		assert.Equal(t, []string{"age"}, incompleteFields(t, Validate(sch, values)))
	})

	t.Run("more values than allowed", func(t *testing.T) {
		values := StateFrom(map[string][]string{
			"full_name":  {"Jane Doe"},
			"age":        {"34"},
			"guest":      {"Ann"},
			"minor_name": {"a", "b", "c", "d", "e"},
		})
		assert.Equal(t, []string{"minor_name"}, incompleteFields(t, Validate(sch, values)))
	})

	t.Run("empty collection instance counts as unfilled", func(t *testing.T) {
		s := NewSession(sch)
		_, err := s.UpdateField("full_name", 0, "Jane Doe")
		require.NoError(t, err)
		_, err = s.UpdateField("age", 0, "34")
		require.NoError(t, err)
		_, err = s.UpdateField("guest", 0, "Ann")
		require.NoError(t, err)
		_, err = s.AddInstance("minor")
		require.NoError(t, err)

		assert.NoError(t, s.Validate(), "minor bounds start at zero")
	})
}

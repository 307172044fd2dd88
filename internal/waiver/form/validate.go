package form

import (
	"sort"

	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

// Validate checks that every visible field has a number of filled values within its
// bounds. The check is structural only; it does not judge whether a value is a valid
// email or number.
func Validate(sch *schema.Schema, values Values) error {
	var incomplete []string
	for _, f := range sch.Fields() {
		v, ok := f.Variant.(schema.Visible)
		if !ok {
			continue
		}
		filled := Filled(v.Input, f.ID, values)
		if filled < f.MinCount || filled > f.MaxCount {
			incomplete = append(incomplete, f.ID)
		}
	}
	if len(incomplete) > 0 {
		sort.Strings(incomplete)
		return werrors.IncompleteFields(incomplete)
	}
	return nil
}

// Filled counts the slots of a field holding a non-empty value after formatting
func Filled(kind schema.InputKind, fieldID string, values Values) int {
	n := 0
	for i := range values.Count(fieldID) {
		if raw, ok := values.Value(fieldID, i); ok && Format(kind, raw) != "" {
			n++
		}
	}
	return n
}

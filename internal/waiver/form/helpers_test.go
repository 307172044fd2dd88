package form

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

func targets(n int) []schema.Target {
	out := make([]schema.Target, n)
	for i := range out {
		out[i] = schema.Target{X: 10, Y: float64(700 - 20*i), Page: 1 + i%2}
	}
	return out
}

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()

	s, err := schema.New("Test waiver", 0, []schema.FieldSpec{
		{ID: "full_name", Variant: schema.Visible{Input: schema.InputText, Required: true}, Targets: targets(4)},
		{ID: "age", Variant: schema.Visible{Input: schema.InputNumber, Required: true}, Targets: targets(1)},
		{ID: "phone_number", Variant: schema.Visible{Input: schema.InputPhone}, Targets: targets(1)},
		{ID: "birthday", Variant: schema.Visible{Input: schema.InputDate}, Targets: targets(1)},
		{
			ID:      "nickname",
			Variant: schema.Visible{Default: schema.Expr{schema.Ref("full_name")}},
			Targets: targets(1),
		},
		{ID: "guest", Variant: schema.Visible{}, MinCount: 1, MaxCount: 3, Targets: targets(3)},
		{
			ID:      "guest_note",
			Variant: schema.Generated{Default: schema.Expr{schema.Literal("Guest: "), schema.Ref("guest")}},
		},
		{
			ID:      "signature",
			Variant: schema.Generated{Default: schema.Expr{schema.Ref("full_name")}},
			Font:    schema.FontSignature,
			Targets: targets(5),
		},
		{
			ID:      "greeting",
			Variant: schema.Generated{Default: schema.Expr{schema.Literal("Dear "), schema.Ref("full_name"), schema.Literal(",")}},
		},
		{ID: "echo", Variant: schema.Generated{Default: schema.Expr{schema.Ref("signature")}}},
		{ID: "signed_on", Variant: schema.Generated{Default: schema.Expr{schema.Today()}}},
		{ID: "minor_name", Variant: schema.Visible{}, Targets: targets(4)},
		{ID: "minor_birthday", Variant: schema.Visible{Input: schema.InputDate}, Targets: targets(4)},
		{
			ID:      "minor_relation",
			Variant: schema.Visible{Input: schema.InputSelect, Options: []string{"Parent", "Guardian"}},
			Targets: targets(4),
		},
	}, []schema.Collection{
		{ID: "minor", Title: "Minors", Fields: []string{"minor_name", "minor_birthday", "minor_relation"}, MaxCount: 4},
	})
	require.NoError(t, err)
	return s
}

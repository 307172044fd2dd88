package schema

import (
	"fmt"
	"strings"
)

// DefaultFontSize is the text size used when a schema does not declare one
const DefaultFontSize = 14

// Target is one position a field value is drawn at. Page is 1-based as authored.
type Target struct {
	X    float64 `yaml:"x" json:"x"`
	Y    float64 `yaml:"y" json:"y"`
	Page int     `yaml:"page" json:"page"`
}

// PageIndex returns the 0-based page index of the target
func (t Target) PageIndex() int {
	return t.Page - 1
}

// InputKind is the widget kind of a user-entered field
type InputKind string

const (
	InputText     InputKind = "text"
	InputNumber   InputKind = "number"
	InputDate     InputKind = "date"
	InputDateTime InputKind = "datetime"
	InputPhone    InputKind = "tel"
	InputEmail    InputKind = "email"
	InputSelect   InputKind = "select"
)

// ParseInputKind maps an authored input kind, including browser spellings, to an InputKind
func ParseInputKind(s string) (InputKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return InputText, nil
	case "number":
		return InputNumber, nil
	case "date":
		return InputDate, nil
	case "datetime", "datetime-local":
		return InputDateTime, nil
	case "tel", "phone":
		return InputPhone, nil
	case "email":
		return InputEmail, nil
	case "select":
		return InputSelect, nil
	default:
		return "", fmt.Errorf("unknown input kind %q", s)
	}
}

// Placement controls how a field's instances map onto its targets
type Placement string

const (
	// PlacementAuto is resolved at schema build time
	PlacementAuto Placement = ""
	// PlacementShared draws the single value at every target
	PlacementShared Placement = "shared"
	// PlacementSequential draws instance i at target i
	PlacementSequential Placement = "sequential"
)

// FontRole selects the typeface a field is drawn with
type FontRole string

const (
	FontDefault   FontRole = "default"
	FontSignature FontRole = "signature"
)

// TokenKind identifies how a default expression token is evaluated
type TokenKind int

const (
	// TokenAuto is a bare authored string: a reference when it names a field, a literal
	// otherwise. It never survives schema construction.
	TokenAuto TokenKind = iota
	TokenLiteral
	TokenField
	TokenToday
)

// Token is one element of a default expression
type Token struct {
	Kind  TokenKind
	Value string
}

// Literal returns a literal token
func Literal(s string) Token { return Token{Kind: TokenLiteral, Value: s} }

// Ref returns a field reference token
func Ref(fieldID string) Token { return Token{Kind: TokenField, Value: fieldID} }

// Today returns the current-date token
func Today() Token { return Token{Kind: TokenToday, Value: "today"} }

// Expr is a default expression; resolved tokens are concatenated
type Expr []Token

// References returns the field identifiers referenced by the expression
func (e Expr) References() []string {
	var refs []string
	for _, t := range e {
		if t.Kind == TokenField {
			refs = append(refs, t.Value)
		}
	}
	return refs
}

// Variant is the tagged union of field shapes: Visible or Generated
type Variant interface {
	variant()
}

// Visible is a field entered by the user
type Visible struct {
	Input    InputKind
	Required bool
	// Default is used only when the user leaves the field empty
	Default Expr
	Options []string
}

// Generated is a field computed from its default expression
type Generated struct {
	Default Expr
}

func (Visible) variant()   {}
func (Generated) variant() {}

// FieldSpec is one schema entry
type FieldSpec struct {
	ID        string
	Label     string
	Targets   []Target
	Variant   Variant
	Sequence  int
	Font      FontRole
	Placement Placement
	// MinCount and MaxCount are the effective bounds after defaults. For collection
	// members they mirror the collection's bounds.
	MinCount int
	MaxCount int
	// Collection is the owning collection id, empty when the field stands alone
	Collection string
}

// IsVisible reports whether the field is user-entered
func (f *FieldSpec) IsVisible() bool {
	switch f.Variant.(type) {
	case Visible:
		return true
	case Generated:
		return false
	default:
		panic(fmt.Sprintf("schema: field %q has unknown variant %T", f.ID, f.Variant))
	}
}

// Default returns the field's default expression, which may be empty for visible fields
func (f *FieldSpec) Default() Expr {
	switch v := f.Variant.(type) {
	case Visible:
		return v.Default
	case Generated:
		return v.Default
	default:
		panic(fmt.Sprintf("schema: field %q has unknown variant %T", f.ID, f.Variant))
	}
}

// Input returns the input kind, or "" for generated fields
func (f *FieldSpec) Input() InputKind {
	switch v := f.Variant.(type) {
	case Visible:
		return v.Input
	case Generated:
		return ""
	default:
		panic(fmt.Sprintf("schema: field %q has unknown variant %T", f.ID, f.Variant))
	}
}

// Required reports whether the user must enter the field
func (f *FieldSpec) Required() bool {
	switch v := f.Variant.(type) {
	case Visible:
		return v.Required
	case Generated:
		return false
	default:
		panic(fmt.Sprintf("schema: field %q has unknown variant %T", f.ID, f.Variant))
	}
}

// Collection groups visible fields that are added and removed together
type Collection struct {
	ID       string
	Title    string
	Fields   []string
	MinCount int
	MaxCount int
}

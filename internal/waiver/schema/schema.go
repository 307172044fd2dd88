package schema

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
)

// Schema is the immutable description of a waiver's fields and collections
type Schema struct {
	Title    string
	FontSize float64

	fields      []*FieldSpec
	byID        map[string]*FieldSpec
	collections []*Collection
	collByID    map[string]*Collection
	ordered     []*FieldSpec
}

// New applies defaults to the given definitions, checks every authoring invariant and
// returns the schema. Violations are reported as configuration errors.
func New(title string, fontSize float64, fields []FieldSpec, collections []Collection) (*Schema, error) {
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	s := &Schema{
		Title:    title,
		FontSize: fontSize,
		byID:     make(map[string]*FieldSpec, len(fields)),
		collByID: make(map[string]*Collection, len(collections)),
	}

	if err := s.addFields(fields); err != nil {
		return nil, err
	}
	if err := s.addCollections(collections); err != nil {
		return nil, err
	}
	if err := s.resolveTokens(); err != nil {
		return nil, err
	}
	if err := s.applyBounds(); err != nil {
		return nil, err
	}

	s.ordered = make([]*FieldSpec, len(s.fields))
	copy(s.ordered, s.fields)
	sort.SliceStable(s.ordered, func(i, j int) bool {
		a, b := s.ordered[i].Sequence, s.ordered[j].Sequence
		if a > 0 && b > 0 {
			return a < b
		}
		return a > 0 && b == 0
	})

	return s, nil
}

func (s *Schema) addFields(fields []FieldSpec) error {
	caser := cases.Title(language.English)
	for i := range fields {
		f := fields[i]
		if f.ID == "" {
			return werrors.Configurationf("field %d has no identifier", i)
		}
		if _, dup := s.byID[f.ID]; dup {
			return werrors.Configurationf("duplicate field %q", f.ID)
		}

		switch v := f.Variant.(type) {
		case Visible:
			if v.Input == "" {
				v.Input = InputText
			}
			if v.Input == InputSelect && len(v.Options) == 0 {
				return werrors.Configurationf("field %q is a select without options", f.ID)
			}
			f.Variant = v
		case Generated:
			if len(v.Default) == 0 {
				return werrors.Configurationf("generated field %q has no default expression", f.ID)
			}
		default:
			return werrors.Configurationf("field %q has unknown variant %T", f.ID, f.Variant)
		}

		for _, t := range f.Targets {
			if t.Page < 1 {
				return werrors.Configurationf("field %q targets page %d; pages start at 1", f.ID, t.Page)
			}
		}
		if f.Label == "" {
			f.Label = caser.String(strings.ReplaceAll(f.ID, "_", " "))
		}
		if f.Font == "" {
			f.Font = FontDefault
		}
		if f.Font != FontDefault && f.Font != FontSignature {
			return werrors.Configurationf("field %q uses unknown font role %q", f.ID, f.Font)
		}
		f.Targets = append([]Target(nil), f.Targets...)

		s.fields = append(s.fields, &f)
		s.byID[f.ID] = &f
	}
	return nil
}

func (s *Schema) addCollections(collections []Collection) error {
	for i := range collections {
		c := collections[i]
		if c.ID == "" {
			return werrors.Configurationf("collection %d has no identifier", i)
		}
		if _, dup := s.collByID[c.ID]; dup {
			return werrors.Configurationf("duplicate collection %q", c.ID)
		}
		if _, clash := s.byID[c.ID]; clash {
			return werrors.Configurationf("collection %q shares its identifier with a field", c.ID)
		}
		if len(c.Fields) < 2 {
			return werrors.Configurationf("collection %q needs at least two fields", c.ID)
		}

		seen := make(map[string]bool, len(c.Fields))
		for _, id := range c.Fields {
			f, ok := s.byID[id]
			if !ok {
				return werrors.Configurationf("collection %q references unknown field %q", c.ID, id)
			}
			if seen[id] {
				return werrors.Configurationf("collection %q lists field %q twice", c.ID, id)
			}
			seen[id] = true
			if !f.IsVisible() {
				return werrors.Configurationf("collection %q contains generated field %q", c.ID, id)
			}
			if f.Collection != "" {
				return werrors.Configurationf("field %q belongs to collections %q and %q", id, f.Collection, c.ID)
			}
			if f.Placement == PlacementShared {
				return werrors.Configurationf("collection field %q cannot use shared placement", id)
			}
			f.Collection = c.ID
			f.Placement = PlacementSequential
		}
		if c.Title == "" {
			c.Title = cases.Title(language.English).String(strings.ReplaceAll(c.ID, "_", " "))
		}
		c.Fields = append([]string(nil), c.Fields...)

		s.collections = append(s.collections, &c)
		s.collByID[c.ID] = &c
	}
	return nil
}

// resolveTokens turns bare authored strings into references or literals and checks that
// explicit references exist.
func (s *Schema) resolveTokens() error {
	for _, f := range s.fields {
		expr := f.Default()
		if len(expr) == 0 {
			continue
		}
		resolved := make(Expr, len(expr))
		for i, t := range expr {
			switch t.Kind {
			case TokenAuto:
				if _, ok := s.byID[t.Value]; ok {
					t.Kind = TokenField
				} else {
					t.Kind = TokenLiteral
				}
			case TokenField:
				if _, ok := s.byID[t.Value]; !ok {
					return werrors.Configurationf("field %q default references unknown field %q", f.ID, t.Value)
				}
			case TokenLiteral, TokenToday:
			default:
				return werrors.Configurationf("field %q default has unknown token kind %d", f.ID, t.Kind)
			}
			if t.Kind == TokenField && t.Value == f.ID {
				return werrors.Configurationf("field %q default references itself", f.ID)
			}
			resolved[i] = t
		}

		switch v := f.Variant.(type) {
		case Visible:
			v.Default = resolved
			f.Variant = v
		case Generated:
			v.Default = resolved
			f.Variant = v
		}
	}
	return nil
}

func (s *Schema) applyBounds() error {
	for _, f := range s.fields {
		if f.Collection != "" {
			continue
		}
		if f.Placement == PlacementAuto {
			if f.MaxCount > 1 || f.MinCount > 1 {
				f.Placement = PlacementSequential
			} else {
				f.Placement = PlacementShared
			}
		}
		if !f.IsVisible() {
			f.MinCount, f.MaxCount = 1, 1
			if f.Placement != PlacementShared {
				return werrors.Configurationf("generated field %q must use shared placement", f.ID)
			}
			continue
		}
		if f.Required() && f.MinCount < 1 {
			f.MinCount = 1
		}
		if f.MaxCount == 0 {
			if f.Placement == PlacementSequential {
				f.MaxCount = len(f.Targets)
			} else {
				f.MaxCount = 1
			}
		}
		if err := checkBounds(f.ID, f.MinCount, f.MaxCount); err != nil {
			return err
		}
		switch f.Placement {
		case PlacementShared:
			if f.MaxCount > 1 {
				return werrors.Configurationf("shared field %q allows %d instances; at most 1", f.ID, f.MaxCount)
			}
		case PlacementSequential:
			if f.MaxCount > len(f.Targets) {
				return werrors.Configurationf("field %q allows %d instances but has %d targets",
					f.ID, f.MaxCount, len(f.Targets))
			}
		default:
			return werrors.Configurationf("field %q uses unknown placement %q", f.ID, f.Placement)
		}
	}

	for _, c := range s.collections {
		if c.MaxCount == 0 {
			c.MaxCount = -1
			for _, id := range c.Fields {
				if n := len(s.byID[id].Targets); c.MaxCount < 0 || n < c.MaxCount {
					c.MaxCount = n
				}
			}
		}
		if err := checkBounds(c.ID, c.MinCount, c.MaxCount); err != nil {
			return err
		}
		for _, id := range c.Fields {
			f := s.byID[id]
			if c.MaxCount > len(f.Targets) {
				return werrors.Configurationf("collection %q allows %d instances but field %q has %d targets",
					c.ID, c.MaxCount, id, len(f.Targets))
			}
			f.MinCount, f.MaxCount = c.MinCount, c.MaxCount
		}
	}
	return nil
}

func checkBounds(id string, minCount, maxCount int) error {
	if minCount < 0 {
		return werrors.Configurationf("%q has negative minimum count %d", id, minCount)
	}
	if maxCount < minCount {
		return werrors.Configurationf("%q has maximum count %d below minimum %d", id, maxCount, minCount)
	}
	if maxCount == 0 {
		return werrors.Configurationf("%q allows no instances", id)
	}
	return nil
}

// Field returns the field with the given identifier
func (s *Schema) Field(id string) (*FieldSpec, bool) {
	f, ok := s.byID[id]
	return f, ok
}

// Fields returns all fields in declaration order
func (s *Schema) Fields() []*FieldSpec {
	return s.fields
}

// Ordered returns all fields in processing order: fields with a sequence first, ascending,
// then the rest in declaration order.
func (s *Schema) Ordered() []*FieldSpec {
	return s.ordered
}

// Collections returns all collections in declaration order
func (s *Schema) Collections() []*Collection {
	return s.collections
}

// Collection returns the collection with the given identifier
func (s *Schema) Collection(id string) (*Collection, bool) {
	c, ok := s.collByID[id]
	return c, ok
}

// MaxPage returns the highest 1-based page number any target refers to
func (s *Schema) MaxPage() int {
	maxPage := 0
	for _, f := range s.fields {
		for _, t := range f.Targets {
			if t.Page > maxPage {
				maxPage = t.Page
			}
		}
	}
	return maxPage
}

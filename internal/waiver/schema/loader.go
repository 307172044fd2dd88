package schema

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
)

//go:embed waiver.yaml
var defaultSchema []byte

type rawSchema struct {
	Title       string          `yaml:"title"`
	FontSize    float64         `yaml:"fontSize"`
	Fields      []rawField      `yaml:"fields"`
	Collections []rawCollection `yaml:"collections"`
}

type rawField struct {
	ID        string     `yaml:"id"`
	Label     string     `yaml:"label"`
	Visible   bool       `yaml:"visible"`
	Input     string     `yaml:"input"`
	Required  bool       `yaml:"required"`
	Default   []rawToken `yaml:"default"`
	Options   []string   `yaml:"options"`
	Min       int        `yaml:"min"`
	Max       int        `yaml:"max"`
	Placement string     `yaml:"placement"`
	Sequence  int        `yaml:"sequence"`
	Font      string     `yaml:"font"`
	Targets   []Target   `yaml:"targets"`
}

type rawCollection struct {
	ID     string   `yaml:"id"`
	Title  string   `yaml:"title"`
	Fields []string `yaml:"fields"`
	Min    int      `yaml:"min"`
	Max    int      `yaml:"max"`
}

// rawToken accepts a bare string or one of {field: id}, {literal: text}, {today: true}
type rawToken struct {
	Token
}

func (t *rawToken) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t.Token = Token{Kind: TokenAuto, Value: node.Value}
		return nil
	case yaml.MappingNode:
		var m struct {
			Field   *string `yaml:"field"`
			Literal *string `yaml:"literal"`
			Today   bool    `yaml:"today"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		switch {
		case m.Field != nil:
			t.Token = Ref(*m.Field)
		case m.Literal != nil:
			t.Token = Literal(*m.Literal)
		case m.Today:
			t.Token = Today()
		default:
			return fmt.Errorf("line %d: default token needs one of field, literal or today", node.Line)
		}
		return nil
	default:
		return fmt.Errorf("line %d: default token must be a string or a mapping", node.Line)
	}
}

// Load decodes a YAML schema document and builds the schema
func Load(r io.Reader) (*Schema, error) {
	var raw rawSchema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, werrors.Wrap(werrors.ErrorTypeConfiguration, "failed to decode schema", err)
	}
	return raw.build()
}

// LoadBytes decodes a YAML schema from memory
func LoadBytes(data []byte) (*Schema, error) {
	return Load(bytes.NewReader(data))
}

// LoadFile decodes a YAML schema from disk
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema %s: %w", path, err)
	}
	defer f.Close()

	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return s, nil
}

// Default returns the built-in release waiver schema
func Default() (*Schema, error) {
	return LoadBytes(defaultSchema)
}

func (raw rawSchema) build() (*Schema, error) {
	fields := make([]FieldSpec, 0, len(raw.Fields))
	for _, rf := range raw.Fields {
		f, err := rf.spec()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}

	collections := make([]Collection, 0, len(raw.Collections))
	for _, rc := range raw.Collections {
		collections = append(collections, Collection{
			ID:       rc.ID,
			Title:    rc.Title,
			Fields:   rc.Fields,
			MinCount: rc.Min,
			MaxCount: rc.Max,
		})
	}

	return New(raw.Title, raw.FontSize, fields, collections)
}

func (rf rawField) spec() (FieldSpec, error) {
	expr := make(Expr, 0, len(rf.Default))
	for _, t := range rf.Default {
		expr = append(expr, t.Token)
	}

	f := FieldSpec{
		ID:        rf.ID,
		Label:     rf.Label,
		Targets:   rf.Targets,
		Sequence:  rf.Sequence,
		Font:      FontRole(strings.ToLower(rf.Font)),
		Placement: Placement(strings.ToLower(rf.Placement)),
		MinCount:  rf.Min,
		MaxCount:  rf.Max,
	}

	if !rf.Visible {
		if rf.Input != "" || rf.Required || len(rf.Options) > 0 {
			return FieldSpec{}, werrors.Configurationf("generated field %q declares user input properties", rf.ID)
		}
		f.Variant = Generated{Default: expr}
		return f, nil
	}

	kind, err := ParseInputKind(rf.Input)
	if err != nil {
		return FieldSpec{}, werrors.Wrap(werrors.ErrorTypeConfiguration, "field "+rf.ID, err)
	}
	if len(rf.Options) > 0 && rf.Input == "" {
		kind = InputSelect
	}
	f.Variant = Visible{
		Input:    kind,
		Required: rf.Required,
		Default:  expr,
		Options:  rf.Options,
	}
	return f, nil
}

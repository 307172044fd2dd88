package waiver

import (
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/document"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/form"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/populate"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

// FieldDescription describes one schema field to a form surface
type FieldDescription struct {
	ID         string           `json:"id"`
	Label      string           `json:"label"`
	Visible    bool             `json:"visible"`
	Input      schema.InputKind `json:"input,omitempty"`
	Required   bool             `json:"required"`
	Options    []string         `json:"options,omitempty"`
	Collection string           `json:"collection,omitempty"`
	MinCount   int              `json:"min_count"`
	MaxCount   int              `json:"max_count"`
	Placement  schema.Placement `json:"placement"`
	Signature  bool             `json:"signature,omitempty"`
	Targets    []schema.Target  `json:"targets"`
	Default    string           `json:"default,omitempty"`
}

// CollectionDescription describes one collection
type CollectionDescription struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Fields   []string `json:"fields"`
	MinCount int      `json:"min_count"`
	MaxCount int      `json:"max_count"`
}

// SchemaDescription is the public shape of the loaded schema
type SchemaDescription struct {
	Title       string                  `json:"title"`
	FontSize    float64                 `json:"font_size"`
	Pages       int                     `json:"pages"`
	Fields      []FieldDescription      `json:"fields"`
	Collections []CollectionDescription `json:"collections"`
}

// Request Types

// UpdateFieldRequest sets the raw value of a field instance
type UpdateFieldRequest struct {
	SessionID string `json:"session_id"`
	FieldID   string `json:"field_id"`
	Index     int    `json:"index"`
	Value     string `json:"value"`
}

// InstanceRequest adds or removes an instance of a field or collection
type InstanceRequest struct {
	SessionID string `json:"session_id"`
	Target    string `json:"target"`
	Index     int    `json:"index"`
}

// SubmitRequest generates the document of a session
type SubmitRequest struct {
	SessionID string `json:"session_id"`
	// OutputName, when set, writes the document into the output directory
	OutputName string `json:"output_name,omitempty"`
	// Recipients, when set, e-mails the document
	Recipients []string `json:"recipients,omitempty"`
}

// Response Types

// UpdateFieldResult is the stored value after formatting
type UpdateFieldResult struct {
	FieldID string    `json:"field_id"`
	Index   int       `json:"index"`
	Value   string    `json:"value"`
	View    form.View `json:"session"`
}

// InstanceResult reports the session after an add or remove
type InstanceResult struct {
	Target     string    `json:"target"`
	InstanceID string    `json:"instance_id,omitempty"`
	Count      int       `json:"count"`
	View       form.View `json:"session"`
}

// SubmitResult is a generated document
type SubmitResult struct {
	SessionID string           `json:"session_id"`
	Path      string           `json:"path,omitempty"`
	Size      int              `json:"size"`
	Bytes     []byte           `json:"-"`
	Draws     int              `json:"draws"`
	Skipped   []string         `json:"skipped,omitempty"`
	Delivered []string         `json:"delivered,omitempty"`
	Report    *populate.Report `json:"-"`
}

// ServerInfo describes the running service
type ServerInfo struct {
	Title           string                 `json:"title"`
	OutputDirectory string                 `json:"output_directory"`
	ActiveSessions  int                    `json:"active_sessions"`
	Delivery        bool                   `json:"delivery"`
	Template        *document.TemplateInfo `json:"template"`
}

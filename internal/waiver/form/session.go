package form

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

// Session is one user's in-memory form state. It is safe for concurrent use; at most one
// submission may be in flight at a time.
type Session struct {
	ID      string
	Created time.Time

	schema     *schema.Schema
	mu         sync.Mutex
	state      *State
	manager    *Manager
	submitting atomic.Bool
}

// NewSession creates a session whose fields and collections start at their minimum
// instance counts
func NewSession(sch *schema.Schema) *Session {
	s := &Session{
		ID:      uuid.NewString(),
		Created: time.Now(),
		schema:  sch,
	}
	s.reset()
	return s
}

func (s *Session) reset() {
	s.state = NewState()
	s.manager = NewManager(s.schema, s.state)
}

// Reset discards every entered value and instance
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// Schema returns the schema the session was created from
func (s *Session) Schema() *schema.Schema {
	return s.schema
}

// UpdateField stores raw input for a field instance after kind-specific formatting and
// returns the stored value. An empty value unsets the slot.
func (s *Session) UpdateField(fieldID string, index int, raw string) (string, error) {
	f, ok := s.schema.Field(fieldID)
	if !ok {
		return "", werrors.NotFoundf("unknown field %q", fieldID)
	}

	var value string
	switch v := f.Variant.(type) {
	case schema.Visible:
		value = Format(v.Input, raw)
		if value != "" && len(v.Options) > 0 && !slices.Contains(v.Options, value) {
			return "", werrors.NewFillError(werrors.ErrorTypeInvalidInput,
				"value "+value+" is not an option of "+fieldID).WithField(fieldID, index)
		}
	case schema.Generated:
		return "", werrors.NewFillError(werrors.ErrorTypeInvalidInput,
			"field "+fieldID+" is generated and cannot be entered")
	default:
		return "", werrors.Configurationf("field %q has unknown variant %T", fieldID, f.Variant)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= s.state.Count(fieldID) {
		return "", werrors.NotFoundf("field %q has no instance %d", fieldID, index)
	}
	s.state.set(fieldID, index, value)
	return value, nil
}

// AddInstance adds an instance to a field or collection
func (s *Session) AddInstance(target string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager.AddInstance(target)
}

// RemoveInstance removes the instance at index from a field or collection
func (s *Session) RemoveInstance(target string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager.RemoveInstance(target, index)
}

// Snapshot returns an independent copy of the entered values
func (s *Session) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Validate runs the validation gate against the current values
func (s *Session) Validate() error {
	return Validate(s.schema, s.Snapshot())
}

// BeginSubmit claims the session's submission token. A second claim before EndSubmit
// fails with a submission-in-flight error.
func (s *Session) BeginSubmit() error {
	if !s.submitting.CompareAndSwap(false, true) {
		return werrors.NewFillError(werrors.ErrorTypeSubmissionInFlight, "session "+s.ID+" is already submitting")
	}
	return nil
}

// EndSubmit releases the submission token
func (s *Session) EndSubmit() {
	s.submitting.Store(false)
}

// FieldView is the display state of one visible field
type FieldView struct {
	ID         string           `json:"id"`
	Label      string           `json:"label"`
	Input      schema.InputKind `json:"input"`
	Required   bool             `json:"required"`
	Options    []string         `json:"options,omitempty"`
	Collection string           `json:"collection,omitempty"`
	MinCount   int              `json:"min_count"`
	MaxCount   int              `json:"max_count"`
	Values     []string         `json:"values"`
	Instances  []string         `json:"instances,omitempty"`
	CanAdd     bool             `json:"can_add"`
}

// CollectionView is the display state of one collection
type CollectionView struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Fields    []string `json:"fields"`
	MinCount  int      `json:"min_count"`
	MaxCount  int      `json:"max_count"`
	Instances []string `json:"instances"`
	CanAdd    bool     `json:"can_add"`
}

// View is a point-in-time rendering of the session for a form surface
type View struct {
	SessionID   string           `json:"session_id"`
	Title       string           `json:"title"`
	Fields      []FieldView      `json:"fields"`
	Collections []CollectionView `json:"collections"`
}

// View returns the session's display state. Standalone fields come first in processing
// order, collections after them.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := View{SessionID: s.ID, Title: s.schema.Title}
	for _, f := range s.schema.Ordered() {
		v, ok := f.Variant.(schema.Visible)
		if !ok {
			continue
		}
		fv := FieldView{
			ID:         f.ID,
			Label:      f.Label,
			Input:      v.Input,
			Required:   f.MinCount > 0,
			Options:    v.Options,
			Collection: f.Collection,
			MinCount:   f.MinCount,
			MaxCount:   f.MaxCount,
			Values:     s.state.Slots(f.ID),
		}
		if f.Collection == "" {
			fv.Instances = s.manager.Instances(f.ID)
			fv.CanAdd = s.manager.CanAdd(f.ID)
		}
		view.Fields = append(view.Fields, fv)
	}
	for _, c := range s.schema.Collections() {
		view.Collections = append(view.Collections, CollectionView{
			ID:        c.ID,
			Title:     c.Title,
			Fields:    c.Fields,
			MinCount:  c.MinCount,
			MaxCount:  c.MaxCount,
			Instances: s.manager.Instances(c.ID),
			CanAdd:    s.manager.CanAdd(c.ID),
		})
	}
	return view
}

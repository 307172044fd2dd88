package form

import (
	"github.com/google/uuid"

	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

// Manager keeps, per standalone visible field and per collection, an ordered list of
// opaque instance identifiers, and keeps the value slots in State aligned with it.
type Manager struct {
	schema    *schema.Schema
	state     *State
	instances map[string][]string
}

// NewManager creates a manager over state and brings every field and collection up to its
// minimum instance count.
func NewManager(sch *schema.Schema, state *State) *Manager {
	m := &Manager{
		schema:    sch,
		state:     state,
		instances: make(map[string][]string),
	}
	m.initialize()
	return m
}

func (m *Manager) initialize() {
	for _, f := range m.schema.Fields() {
		if !f.IsVisible() {
			continue
		}
		m.state.ensure(f.ID)
		if f.Collection != "" {
			continue
		}
		m.instances[f.ID] = nil
		for range f.MinCount {
			m.appendInstance(f.ID, []string{f.ID})
		}
	}
	for _, c := range m.schema.Collections() {
		m.instances[c.ID] = nil
		for range c.MinCount {
			m.appendInstance(c.ID, c.Fields)
		}
	}
}

// unit describes an addressable field or collection
type unit struct {
	id       string
	minCount int
	maxCount int
	fields   []string
}

func (m *Manager) lookup(target string) (unit, error) {
	if c, ok := m.schema.Collection(target); ok {
		return unit{id: c.ID, minCount: c.MinCount, maxCount: c.MaxCount, fields: c.Fields}, nil
	}
	f, ok := m.schema.Field(target)
	if !ok {
		return unit{}, werrors.NotFoundf("unknown field or collection %q", target)
	}
	if !f.IsVisible() {
		return unit{}, werrors.NewFillError(werrors.ErrorTypeInvalidInput,
			"field "+f.ID+" is generated and has no user instances")
	}
	if f.Collection != "" {
		return unit{}, werrors.NewFillError(werrors.ErrorTypeInvalidInput,
			"field "+f.ID+" belongs to collection "+f.Collection+"; add or remove the collection instead")
	}
	return unit{id: f.ID, minCount: f.MinCount, maxCount: f.MaxCount, fields: []string{f.ID}}, nil
}

// AddInstance appends an instance to a field or collection and returns its identifier.
// At the maximum count nothing changes and a capacity error is returned.
func (m *Manager) AddInstance(target string) (string, error) {
	u, err := m.lookup(target)
	if err != nil {
		return "", err
	}
	count := len(m.instances[u.id])
	if count >= u.maxCount {
		return "", werrors.CapacityExceeded(u.id, count, u.maxCount)
	}
	return m.appendInstance(u.id, u.fields), nil
}

// RemoveInstance deletes the instance at index from a field or collection. Later
// instances shift down by one. The first minCount instances cannot be removed.
func (m *Manager) RemoveInstance(target string, index int) error {
	u, err := m.lookup(target)
	if err != nil {
		return err
	}
	ids := m.instances[u.id]
	if index < 0 || index >= len(ids) {
		return werrors.NotFoundf("%s has no instance %d", u.id, index)
	}
	if index < u.minCount {
		return werrors.CapacityExceeded(u.id, len(ids), u.minCount)
	}

	m.instances[u.id] = append(ids[:index:index], ids[index+1:]...)
	for _, fieldID := range u.fields {
		m.state.removeSlot(fieldID, index)
	}
	return nil
}

// Instances returns the instance identifiers of a field or collection in order
func (m *Manager) Instances(target string) []string {
	return append([]string(nil), m.instances[target]...)
}

// Count returns the live instance count of a field or collection
func (m *Manager) Count(target string) int {
	return len(m.instances[target])
}

// CanAdd reports whether another instance may be added
func (m *Manager) CanAdd(target string) bool {
	u, err := m.lookup(target)
	return err == nil && len(m.instances[u.id]) < u.maxCount
}

// CanRemove reports whether the instance at index may be removed
func (m *Manager) CanRemove(target string, index int) bool {
	u, err := m.lookup(target)
	return err == nil && index >= u.minCount && index < len(m.instances[u.id])
}

func (m *Manager) appendInstance(id string, fields []string) string {
	instanceID := uuid.NewString()
	m.instances[id] = append(m.instances[id], instanceID)
	for _, fieldID := range fields {
		m.state.appendSlot(fieldID)
	}
	return instanceID
}

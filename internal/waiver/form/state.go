package form

import "slices"

// Values is read access to user-entered field values
type Values interface {
	// Value returns the entered value at the instance index; ok is false when the slot
	// does not exist or is unset.
	Value(fieldID string, index int) (value string, ok bool)
	// Count returns the number of live instance slots of a field
	Count(fieldID string) int
}

// State holds, per visible field, one value slot per live instance. An empty string marks
// an unset slot. Slot position, not content, decides which target a value lands on.
type State struct {
	values map[string][]string
}

// NewState creates an empty state
func NewState() *State {
	return &State{values: make(map[string][]string)}
}

// StateFrom builds a state from a plain map, copying the slices
func StateFrom(values map[string][]string) *State {
	s := NewState()
	for id, slots := range values {
		s.values[id] = slices.Clone(slots)
	}
	return s
}

// Value implements Values
func (s *State) Value(fieldID string, index int) (string, bool) {
	slots := s.values[fieldID]
	if index < 0 || index >= len(slots) || slots[index] == "" {
		return "", false
	}
	return slots[index], true
}

// Count implements Values
func (s *State) Count(fieldID string) int {
	return len(s.values[fieldID])
}

// Slots returns a copy of the field's slots
func (s *State) Slots(fieldID string) []string {
	return append([]string(nil), s.values[fieldID]...)
}

// Map returns a deep copy of the state as a plain map
func (s *State) Map() map[string][]string {
	out := make(map[string][]string, len(s.values))
	for id, slots := range s.values {
		out[id] = slices.Clone(slots)
	}
	return out
}

// Clone returns an independent copy
func (s *State) Clone() *State {
	return StateFrom(s.values)
}

func (s *State) set(fieldID string, index int, value string) {
	s.values[fieldID][index] = value
}

func (s *State) appendSlot(fieldID string) {
	s.values[fieldID] = append(s.values[fieldID], "")
}

func (s *State) removeSlot(fieldID string, index int) {
	slots := s.values[fieldID]
	s.values[fieldID] = append(slots[:index:index], slots[index+1:]...)
}

func (s *State) ensure(fieldID string) {
	if _, ok := s.values[fieldID]; !ok {
		s.values[fieldID] = []string{}
	}
}

package models

// Standard is a grade level with its display label and intrinsic number.
type Standard struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Division is a section letter within a standard.
type Division string

// ClassIdentifier is the canonical "NumberLetter" key of a class, e.g. "10A".
type ClassIdentifier string

// AssignedClassSet holds a draft's classes in insertion order without duplicates.
type AssignedClassSet []ClassIdentifier

// Contains reports whether id is already assigned.
func (s AssignedClassSet) Contains(id ClassIdentifier) bool {
	for _, existing := range s {
		if existing == id {
			return true
		}
	}
	return false
}

// Equal compares membership only; order is a display concern.
func (s AssignedClassSet) Equal(other AssignedClassSet) bool {
	if len(s) != len(other) {
		return false
	}
	for _, id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Strings returns the identifiers as plain strings for storage.
func (s AssignedClassSet) Strings() []string {
	out := make([]string, len(s))
	for i, id := range s {
		out[i] = string(id)
	}
	return out
}

// AddOutcome reports what AddClass did.
type AddOutcome string

const (
	OutcomeAdded     AddOutcome = "added"
	OutcomeDuplicate AddOutcome = "duplicate"
)

// ClassCatalog lists the selectable standards and divisions.
type ClassCatalog struct {
	Standards []Standard `json:"standards"`
	Divisions []Division `json:"divisions"`
}

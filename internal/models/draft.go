package models

import "time"

// DraftState tracks where a teacher draft sits in its form lifecycle. Closed
// drafts are deleted, so only Editing and Submitting are ever stored.
type DraftState string

const (
	DraftEditing    DraftState = "EDITING"
	DraftSubmitting DraftState = "SUBMITTING"
)

// TeacherDraft is the transient record composed before submission.
type TeacherDraft struct {
	ID        string           `json:"id"`
	OwnerID   string           `json:"owner_id"`
	State     DraftState       `json:"state"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Phone     string           `json:"phone"`
	Subject   string           `json:"subject"`
	Classes   AssignedClassSet `json:"classes"`
	LastError string           `json:"last_error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ValidationResult is the coarse all-or-nothing verdict on a draft.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ClassChange is returned by add/remove class operations on a draft.
type ClassChange struct {
	Draft   *TeacherDraft `json:"draft"`
	Outcome AddOutcome    `json:"outcome,omitempty"`
	Notice  string        `json:"notice,omitempty"`
}

package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/validator"
)

// DuplicateClassNotice is the informational message shown for a repeated add.
const DuplicateClassNotice = "Class already added"

// DraftInvalidReason is the aggregate message for a draft that cannot be submitted.
const DraftInvalidReason = "missing required fields and/or no classes assigned"

var standards = []models.Standard{
	{Label: "1st", Value: 1},
	{Label: "2nd", Value: 2},
	{Label: "3rd", Value: 3},
	{Label: "4th", Value: 4},
	{Label: "5th", Value: 5},
	{Label: "6th", Value: 6},
	{Label: "7th", Value: 7},
	{Label: "8th", Value: 8},
	{Label: "9th", Value: 9},
	{Label: "10th", Value: 10},
	{Label: "11th", Value: 11},
	{Label: "12th", Value: 12},
}

var divisions = []models.Division{"A", "B", "C", "D", "E"}

// Catalog returns copies of the selectable standards and divisions.
func Catalog() models.ClassCatalog {
	return models.ClassCatalog{
		Standards: append([]models.Standard(nil), standards...),
		Divisions: append([]models.Division(nil), divisions...),
	}
}

// Canonicalize combines a standard label and a division into a class
// identifier. The number comes from the standard table, never from the label
// text, so "10th" + "A" is "10A".
func Canonicalize(standardLabel, division string) (models.ClassIdentifier, error) {
	std, ok := lookupStandard(standardLabel)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown standard %q", standardLabel))
	}
	div, ok := lookupDivision(division)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown division %q", division))
	}
	return models.ClassIdentifier(strconv.Itoa(std.Value) + string(div)), nil
}

// ParseClassIdentifier accepts an identifier such as "10A" (case-insensitive)
// and returns its canonical form. Zero-padded or out-of-range values are rejected.
func ParseClassIdentifier(raw string) (models.ClassIdentifier, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	invalid := appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid class %q", raw))
	if len(value) < 2 {
		return "", invalid
	}
	div, ok := lookupDivision(value[len(value)-1:])
	if !ok {
		return "", invalid
	}
	prefix := value[:len(value)-1]
	n, err := strconv.Atoi(prefix)
	if err != nil || strconv.Itoa(n) != prefix || n < 1 || n > len(standards) {
		return "", invalid
	}
	return models.ClassIdentifier(prefix + string(div)), nil
}

// AddClass appends the canonical identifier for (standard, division) to a
// copy of set. An identifier already present leaves set untouched and
// reports OutcomeDuplicate.
func AddClass(set models.AssignedClassSet, standardLabel, division string) (models.AssignedClassSet, models.AddOutcome, error) {
	id, err := Canonicalize(standardLabel, division)
	if err != nil {
		return set, "", err
	}
	if set.Contains(id) {
		return set, models.OutcomeDuplicate, nil
	}
	next := make(models.AssignedClassSet, 0, len(set)+1)
	next = append(next, set...)
	next = append(next, id)
	return next, models.OutcomeAdded, nil
}

// RemoveClass returns a copy of set without id. Absent ids are a no-op.
func RemoveClass(set models.AssignedClassSet, id models.ClassIdentifier) models.AssignedClassSet {
	next := make(models.AssignedClassSet, 0, len(set))
	for _, existing := range set {
		if existing != id {
			next = append(next, existing)
		}
	}
	return next
}

type draftRequirements struct {
	Name    string                   `json:"name" validate:"required"`
	Email   string                   `json:"email" validate:"required"`
	Subject string                   `json:"subject" validate:"required"`
	Classes []models.ClassIdentifier `json:"classes" validate:"min=1"`
}

// ValidateDraft checks that name, email and subject are filled in and at
// least one class is assigned. Phone is optional.
func ValidateDraft(draft models.TeacherDraft) models.ValidationResult {
	req := draftRequirements{
		Name:    strings.TrimSpace(draft.Name),
		Email:   strings.TrimSpace(draft.Email),
		Subject: strings.TrimSpace(draft.Subject),
		Classes: draft.Classes,
	}
	if err := validator.New().Struct(req); err != nil {
		return models.ValidationResult{Valid: false, Reason: DraftInvalidReason}
	}
	return models.ValidationResult{Valid: true}
}

func lookupStandard(label string) (models.Standard, bool) {
	label = strings.TrimSpace(label)
	for _, std := range standards {
		if strings.EqualFold(std.Label, label) {
			return std, true
		}
	}
	return models.Standard{}, false
}

func lookupDivision(raw string) (models.Division, bool) {
	candidate := models.Division(strings.ToUpper(strings.TrimSpace(raw)))
	for _, div := range divisions {
		if div == candidate {
			return div, true
		}
	}
	return "", false
}

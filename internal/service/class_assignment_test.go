package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		standard string
		division string
		want     models.ClassIdentifier
	}{
		{"10th", "A", "10A"},
		{"1st", "B", "1B"},
		{"3rd", "C", "3C"},
		{"2nd", "D", "2D"},
		{"11th", "e", "11E"},
		{" 12TH ", "a", "12A"},
	}
	for _, tc := range cases {
		got, err := Canonicalize(tc.standard, tc.division)
		require.NoError(t, err, tc.standard)
		assert.Equal(t, tc.want, got)
	}
}

func TestCanonicalizeRejectsUnknownInput(t *testing.T) {
	_, err := Canonicalize("13th", "A")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = Canonicalize("10th", "F")
	require.Error(t, err)

	_, err = Canonicalize("10", "A")
	require.Error(t, err)
}

func TestCanonicalizeProducesSixtyDistinctIdentifiers(t *testing.T) {
	catalog := Catalog()
	seen := make(map[models.ClassIdentifier]struct{})
	for _, std := range catalog.Standards {
		for _, div := range catalog.Divisions {
			id, err := Canonicalize(std.Label, string(div))
			require.NoError(t, err)
			assert.NotContains(t, string(id), "th")
			seen[id] = struct{}{}
		}
	}
	assert.Len(t, catalog.Standards, 12)
	assert.Len(t, catalog.Divisions, 5)
	assert.Len(t, seen, 60)
}

func TestCatalogReturnsCopies(t *testing.T) {
	catalog := Catalog()
	catalog.Standards[0].Value = 99
	assert.Equal(t, 1, Catalog().Standards[0].Value)
}

func TestParseClassIdentifier(t *testing.T) {
	id, err := ParseClassIdentifier(" 10a ")
	require.NoError(t, err)
	assert.Equal(t, models.ClassIdentifier("10A"), id)

	for _, raw := range []string{"", "A", "010A", "0A", "13A", "10F", "10", "tenA"} {
		_, err := ParseClassIdentifier(raw)
		assert.Error(t, err, raw)
	}
}

func TestAddClassIsIdempotent(t *testing.T) {
	original := models.AssignedClassSet{"9B"}

	once, outcome, err := AddClass(original, "10th", "A")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAdded, outcome)

	twice, outcome, err := AddClass(once, "10th", "A")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDuplicate, outcome)
	assert.Len(t, twice, len(original)+1)
	assert.Equal(t, models.AssignedClassSet{"9B", "10A"}, twice)
	assert.Equal(t, models.AssignedClassSet{"9B"}, original)
}

func TestAddClassPreservesInsertionOrder(t *testing.T) {
	var set models.AssignedClassSet
	for _, pick := range [][2]string{{"12th", "E"}, {"1st", "A"}, {"7th", "C"}} {
		var err error
		set, _, err = AddClass(set, pick[0], pick[1])
		require.NoError(t, err)
	}
	assert.Equal(t, models.AssignedClassSet{"12E", "1A", "7C"}, set)
	assert.True(t, set.Equal(models.AssignedClassSet{"1A", "7C", "12E"}))
}

func TestAddClassInvalidLeavesSet(t *testing.T) {
	set := models.AssignedClassSet{"1A"}
	next, outcome, err := AddClass(set, "fifth", "A")
	require.Error(t, err)
	assert.Empty(t, outcome)
	assert.Equal(t, set, next)
}

func TestRemoveClass(t *testing.T) {
	set := models.AssignedClassSet{"1A", "10A", "3C"}

	removed := RemoveClass(set, "10A")
	assert.Equal(t, models.AssignedClassSet{"1A", "3C"}, removed)
	assert.Equal(t, models.AssignedClassSet{"1A", "10A", "3C"}, set)

	same := RemoveClass(removed, "10A")
	assert.Equal(t, removed, same)

	restored, outcome, err := AddClass(removed, "10th", "A")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAdded, outcome)
	assert.True(t, restored.Contains("10A"))

	assert.Empty(t, RemoveClass(nil, "1A"))
}

func TestValidateDraft(t *testing.T) {
	draft := models.TeacherDraft{Name: "Ms. X", Email: "x@y.com", Subject: "Math"}

	result := ValidateDraft(draft)
	assert.False(t, result.Valid)
	assert.Equal(t, DraftInvalidReason, result.Reason)

	classes, _, err := AddClass(draft.Classes, "10th", "A")
	require.NoError(t, err)
	draft.Classes = classes
	assert.True(t, ValidateDraft(draft).Valid)

	draft.Phone = ""
	assert.True(t, ValidateDraft(draft).Valid)

	blank := draft
	blank.Subject = "   "
	assert.False(t, ValidateDraft(blank).Valid)

	noEmail := draft
	noEmail.Email = ""
	assert.False(t, ValidateDraft(noEmail).Valid)
}

func TestClassAssignmentScenario(t *testing.T) {
	var set models.AssignedClassSet

	set, outcome, err := AddClass(set, "10th", "A")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAdded, outcome)
	assert.Equal(t, models.AssignedClassSet{"10A"}, set)

	set, outcome, err = AddClass(set, "10th", "A")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDuplicate, outcome)
	assert.Equal(t, models.AssignedClassSet{"10A"}, set)

	set = RemoveClass(set, "10A")
	assert.Empty(t, set)

	result := ValidateDraft(models.TeacherDraft{Name: "Ms. X", Email: "x@y.com", Subject: "Math", Classes: set})
	assert.False(t, result.Valid)
}

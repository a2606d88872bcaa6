package errors

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrDraftSubmitting, "draft d1 is being submitted")
	assert.True(t, errors.Is(err, ErrDraftSubmitting))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.Equal(t, "draft submission already in progress", ErrDraftSubmitting.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)
	assert.Nil(t, FromError(nil))
}

func TestWithDetails(t *testing.T) {
	err := WithDetails(ErrValidation, map[string]string{"email": "email is required"})
	assert.Equal(t, "email is required", err.Details["email"])
	assert.Nil(t, ErrValidation.Details)
}

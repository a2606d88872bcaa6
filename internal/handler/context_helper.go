package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-api/internal/middleware"
	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/response"
	"github.com/noah-isme/sma-roster-api/pkg/validator"
)

// currentUser returns the authenticated claims or writes a 401.
func currentUser(c *gin.Context) (*models.JWTClaims, bool) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

// bindJSON decodes the request body into dest. Binding and validation failures
// are written as a 400 with per-field messages.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	return writeBindError(c, c.ShouldBindJSON(dest), message)
}

// bindOptionalJSON is bindJSON for endpoints whose body may be omitted. An
// absent or empty body leaves dest untouched, whatever the transfer encoding.
func bindOptionalJSON(c *gin.Context, dest interface{}, message string) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return true
	}
	err := c.ShouldBindJSON(dest)
	if errors.Is(err, io.EOF) {
		return true
	}
	return writeBindError(c, err, message)
}

func writeBindError(c *gin.Context, err error, message string) bool {
	if err != nil {
		response.Error(c, appErrors.WithDetails(
			appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message),
			validator.Translate(err),
		))
		return false
	}
	return true
}

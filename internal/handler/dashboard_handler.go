package handler

import (
	"context"
	"net/http"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/response"
)

// TimezoneHeader lets clients ask for a greeting in their own zone.
const TimezoneHeader = "X-Timezone"

type dashboardService interface {
	Summary(ctx context.Context, email string, now time.Time) *models.DashboardSummary
}

// DashboardHandler serves the principal's landing summary.
type DashboardHandler struct {
	service dashboardService
	now     func() time.Time
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(svc dashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc, now: time.Now}
}

// Summary godoc
// @Summary Dashboard summary
// @Description Greeting, school name and headline counts. The greeting uses the zone given by the tz query or X-Timezone header.
// @Tags Dashboard
// @Produce json
// @Param tz query string false "IANA time zone, e.g. Asia/Jakarta"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}

	now := h.now()
	zone := strings.TrimSpace(c.DefaultQuery("tz", c.GetHeader(TimezoneHeader)))
	if zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown time zone "+zone))
			return
		}
		now = now.In(loc)
	}

	response.JSON(c, http.StatusOK, h.service.Summary(c.Request.Context(), claims.Email, now), nil)
}

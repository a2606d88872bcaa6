package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/service"
	"github.com/noah-isme/sma-roster-api/pkg/response"
)

type draftService interface {
	Open(ctx context.Context, ownerID string, req service.DraftFieldsRequest) (*models.TeacherDraft, error)
	Get(ctx context.Context, ownerID, id string) (*models.TeacherDraft, error)
	UpdateFields(ctx context.Context, ownerID, id string, req service.DraftFieldsRequest) (*models.TeacherDraft, error)
	AddClass(ctx context.Context, ownerID, id string, req service.AddClassRequest) (*models.ClassChange, error)
	RemoveClass(ctx context.Context, ownerID, id, classID string) (*models.ClassChange, error)
	Validate(ctx context.Context, ownerID, id string) (*models.ValidationResult, error)
	Submit(ctx context.Context, ownerID, id string) (*models.Teacher, error)
	Close(ctx context.Context, ownerID, id string) error
}

// DraftHandler exposes the add-teacher form as a server-side draft session.
type DraftHandler struct {
	drafts draftService
}

// NewDraftHandler constructs a DraftHandler.
func NewDraftHandler(drafts draftService) *DraftHandler {
	return &DraftHandler{drafts: drafts}
}

// Open godoc
// @Summary Open a teacher draft
// @Tags Teacher Drafts
// @Accept json
// @Produce json
// @Param payload body service.DraftFieldsRequest false "Initial fields"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /teacher-drafts [post]
func (h *DraftHandler) Open(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.DraftFieldsRequest
	if !bindOptionalJSON(c, &req, "invalid draft payload") {
		return
	}
	draft, err := h.drafts.Open(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, draft)
}

// Get godoc
// @Summary Get a teacher draft
// @Tags Teacher Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /teacher-drafts/{id} [get]
func (h *DraftHandler) Get(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	draft, err := h.drafts.Get(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// Update godoc
// @Summary Update draft fields
// @Tags Teacher Drafts
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param payload body service.DraftFieldsRequest true "Fields to overwrite"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /teacher-drafts/{id} [patch]
func (h *DraftHandler) Update(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.DraftFieldsRequest
	if !bindJSON(c, &req, "invalid draft payload") {
		return
	}
	draft, err := h.drafts.UpdateFields(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// AddClass godoc
// @Summary Assign a class to the draft
// @Description A class that is already assigned leaves the draft unchanged and returns outcome "duplicate" with a notice.
// @Tags Teacher Drafts
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param payload body service.AddClassRequest true "Standard label and division"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /teacher-drafts/{id}/classes [post]
func (h *DraftHandler) AddClass(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.AddClassRequest
	if !bindJSON(c, &req, "invalid class selection") {
		return
	}
	change, err := h.drafts.AddClass(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, change, nil)
}

// RemoveClass godoc
// @Summary Remove a class from the draft
// @Tags Teacher Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Param classId path string true "Class identifier, e.g. 10A"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /teacher-drafts/{id}/classes/{classId} [delete]
func (h *DraftHandler) RemoveClass(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	change, err := h.drafts.RemoveClass(c.Request.Context(), claims.UserID, c.Param("id"), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, change, nil)
}

// Validate godoc
// @Summary Check whether the draft can be submitted
// @Tags Teacher Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /teacher-drafts/{id}/validate [post]
func (h *DraftHandler) Validate(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	result, err := h.drafts.Validate(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Submit godoc
// @Summary Submit the draft as a new teacher
// @Description On success the draft is closed. On store failure the draft is kept for resubmission.
// @Tags Teacher Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Security BearerAuth
// @Router /teacher-drafts/{id}/submit [post]
func (h *DraftHandler) Submit(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	teacher, err := h.drafts.Submit(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// Close godoc
// @Summary Discard the draft
// @Tags Teacher Drafts
// @Param id path string true "Draft ID"
// @Success 204
// @Security BearerAuth
// @Router /teacher-drafts/{id} [delete]
func (h *DraftHandler) Close(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.drafts.Close(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

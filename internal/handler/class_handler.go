package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-api/internal/service"
	"github.com/noah-isme/sma-roster-api/pkg/response"
)

// ClassHandler exposes the class catalog and identifier canonicalisation.
type ClassHandler struct{}

// NewClassHandler constructs a ClassHandler.
func NewClassHandler() *ClassHandler {
	return &ClassHandler{}
}

// Catalog godoc
// @Summary List selectable standards and divisions
// @Tags Classes
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/catalog [get]
func (h *ClassHandler) Catalog(c *gin.Context) {
	response.JSON(c, http.StatusOK, service.Catalog(), nil)
}

// Canonicalize godoc
// @Summary Combine a standard and division into a class identifier
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.AddClassRequest true "Standard label and division"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/canonicalize [post]
func (h *ClassHandler) Canonicalize(c *gin.Context) {
	var req service.AddClassRequest
	if !bindJSON(c, &req, "invalid class selection") {
		return
	}
	id, err := service.Canonicalize(req.Standard, req.Division)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"class": id}, nil)
}

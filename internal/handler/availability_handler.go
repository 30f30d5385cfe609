package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-portal-api/internal/models"
	"github.com/noah-isme/lms-portal-api/internal/service"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
	"github.com/noah-isme/lms-portal-api/pkg/response"
)

// AvailabilityHandler exposes teacher availability endpoints.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
}

// NewAvailabilityHandler constructs AvailabilityHandler.
func NewAvailabilityHandler(availability *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// Teachers manage their own availability; staff may act on any teacher by
// passing teacherId.
func (h *AvailabilityHandler) teacherID(c *gin.Context) (string, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return "", appErrors.ErrUnauthorized
	}
	if claims.Role == models.RoleTeacher {
		return claims.UserID, nil
	}
	if target := c.Query("teacherId"); target != "" {
		return target, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
}

// ListWindows godoc
// @Summary List weekly availability windows
// @Tags Availability
// @Produce json
// @Param teacherId query string false "Teacher ID (staff only)"
// @Success 200 {object} response.Envelope
// @Router /availability/windows [get]
func (h *AvailabilityHandler) ListWindows(c *gin.Context) {
	teacherID, err := h.teacherID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	windows, err := h.availability.ListWindows(c.Request.Context(), teacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// AddWindow godoc
// @Summary Add a weekly availability window
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body service.CreateWindowRequest true "Window payload"
// @Success 201 {object} response.Envelope
// @Router /availability/windows [post]
func (h *AvailabilityHandler) AddWindow(c *gin.Context) {
	teacherID, err := h.teacherID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	window, err := h.availability.AddWindow(c.Request.Context(), teacherID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, window)
}

// RemoveWindow godoc
// @Summary Remove an availability window
// @Tags Availability
// @Produce json
// @Param id path string true "Window ID"
// @Success 204
// @Router /availability/windows/{id} [delete]
func (h *AvailabilityHandler) RemoveWindow(c *gin.Context) {
	teacherID, err := h.teacherID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.availability.RemoveWindow(c.Request.Context(), c.Param("id"), teacherID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListBlackouts godoc
// @Summary List upcoming blackout dates
// @Tags Availability
// @Produce json
// @Param teacherId query string false "Teacher ID (staff only)"
// @Success 200 {object} response.Envelope
// @Router /availability/blackouts [get]
func (h *AvailabilityHandler) ListBlackouts(c *gin.Context) {
	teacherID, err := h.teacherID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	blackouts, err := h.availability.ListBlackouts(c.Request.Context(), teacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blackouts, nil)
}

// AddBlackout godoc
// @Summary Block out a calendar day
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body service.CreateBlackoutRequest true "Blackout payload"
// @Success 201 {object} response.Envelope
// @Router /availability/blackouts [post]
func (h *AvailabilityHandler) AddBlackout(c *gin.Context) {
	teacherID, err := h.teacherID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateBlackoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	blackout, err := h.availability.AddBlackout(c.Request.Context(), teacherID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, blackout)
}

// RemoveBlackout godoc
// @Summary Remove a blackout date
// @Tags Availability
// @Produce json
// @Param id path string true "Blackout ID"
// @Success 204
// @Router /availability/blackouts/{id} [delete]
func (h *AvailabilityHandler) RemoveBlackout(c *gin.Context) {
	teacherID, err := h.teacherID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.availability.RemoveBlackout(c.Request.Context(), c.Param("id"), teacherID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-portal-api/internal/service"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
	"github.com/noah-isme/lms-portal-api/pkg/response"
)

// WaitlistHandler exposes the student-facing waitlist endpoints.
type WaitlistHandler struct {
	waitlist *service.WaitlistService
}

// NewWaitlistHandler constructs WaitlistHandler.
func NewWaitlistHandler(waitlist *service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlist: waitlist}
}

// ListMine godoc
// @Summary List the authenticated student's waitlist entries
// @Tags Waitlist
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /waitlist [get]
func (h *WaitlistHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entries, err := h.waitlist.ListByStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Join godoc
// @Summary Join a class waitlist
// @Tags Waitlist
// @Accept json
// @Produce json
// @Param payload body joinWaitlistRequest true "Target class"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /waitlist [post]
func (h *WaitlistHandler) Join(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req joinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.waitlist.Join(c.Request.Context(), claims.UserID, req.ClassID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

type joinWaitlistRequest struct {
	ClassID string `json:"class_id" binding:"required"`
}

// Leave godoc
// @Summary Leave a waitlist
// @Tags Waitlist
// @Produce json
// @Param id path string true "Waitlist entry ID"
// @Success 204
// @Router /waitlist/{id} [delete]
func (h *WaitlistHandler) Leave(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.waitlist.Leave(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-portal-api/internal/service"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
	"github.com/noah-isme/lms-portal-api/pkg/response"
)

// FeedbackHandler exposes post-class rating endpoints.
type FeedbackHandler struct {
	feedback *service.FeedbackService
}

// NewFeedbackHandler constructs FeedbackHandler.
func NewFeedbackHandler(feedback *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

// Create godoc
// @Summary Rate a completed booking
// @Tags Feedback
// @Accept json
// @Produce json
// @Param payload body service.CreateFeedbackRequest true "Feedback payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /feedback [post]
func (h *FeedbackHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	feedback, err := h.feedback.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, feedback)
}

// ListByTeacher godoc
// @Summary List recent feedback for a teacher
// @Tags Feedback
// @Produce json
// @Param id path string true "Teacher ID"
// @Param limit query int false "Max results"
// @Success 200 {object} response.Envelope
// @Router /feedback/teachers/{id} [get]
func (h *FeedbackHandler) ListByTeacher(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	feedback, err := h.feedback.ListByTeacher(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feedback, nil)
}

// TeacherSummary godoc
// @Summary Rating summary for a teacher
// @Tags Feedback
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /feedback/teachers/{id}/summary [get]
func (h *FeedbackHandler) TeacherSummary(c *gin.Context) {
	summary, err := h.feedback.TeacherSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// CourseSummary godoc
// @Summary Rating summary for a course
// @Tags Feedback
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /feedback/courses/{id}/summary [get]
func (h *FeedbackHandler) CourseSummary(c *gin.Context) {
	summary, err := h.feedback.CourseSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

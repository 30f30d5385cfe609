package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-portal-api/internal/middleware"
	"github.com/noah-isme/lms-portal-api/internal/models"
)

func TestAvailabilityStaffRequiresTeacherID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAvailabilityHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/availability/windows", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.ListWindows(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityRejectsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAvailabilityHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/availability/blackouts", nil)
	c.Request = req

	handler.ListBlackouts(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAuthHandler_Login_MissingBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &AuthHandler{auth: nil}
	r.POST("/auth/login", handler.Login)

	req, _ := http.NewRequest("POST", "/auth/login", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Login_BlankPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &AuthHandler{auth: nil}
	r.POST("/auth/login", handler.Login)

	body := strings.NewReader(`{"email":"user@example.com","password":"   "}`)
	req, _ := http.NewRequest("POST", "/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_VerifyRegistrationCode_BadFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &AuthHandler{auth: nil}
	r.POST("/auth/register/verify-otp", handler.VerifyRegistrationCode)

	// Код короче четырёх цифр отклоняется ещё до обращения к сервису.
	body := strings.NewReader(`{"email":"user@example.com","otp":"427"}`)
	req, _ := http.NewRequest("POST", "/auth/register/verify-otp", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_CompletePasswordReset_NonNumericCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &AuthHandler{auth: nil}
	r.POST("/auth/reset-password", handler.CompletePasswordReset)

	body := strings.NewReader(`{"email":"user@example.com","otp":"abcd","new_password":"NewPassword1"}`)
	req, _ := http.NewRequest("POST", "/auth/reset-password", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

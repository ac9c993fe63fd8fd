package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"socialspace/internal/service"
	"socialspace/internal/validation"
)

// AuthHandler предоставляет HTTP слой для регистрации, входа и сброса пароля.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler создаёт хэндлер.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// BeginRegistration обрабатывает POST /auth/register/email.
// Отправляет код подтверждения; аккаунт пока не создаётся.
func (h *AuthHandler) BeginRegistration(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.BeginRegistration(c.Request.Context(), req.Email); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "код подтверждения отправлен на email"})
}

// VerifyRegistrationCode обрабатывает POST /auth/register/verify-otp.
// Код не гасится: он понадобится на шаге установки пароля.
func (h *AuthHandler) VerifyRegistrationCode(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Code  string `json:"otp" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateOtpCode(req.Code); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.auth.VerifyRegistrationCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		c.Error(err)
		return
	}

	respondVerifyResult(c, res)
}

// ResendRegistrationCode обрабатывает POST /auth/register/resend-otp.
func (h *AuthHandler) ResendRegistrationCode(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.ResendRegistrationCode(c.Request.Context(), req.Email); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "код отправлен повторно"})
}

// CompleteRegistration обрабатывает POST /auth/register/set-password.
// Терминальный шаг: код проверяется ещё раз и гасится только после
// успешного создания аккаунта.
func (h *AuthHandler) CompleteRegistration(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Code     string `json:"otp" binding:"required"`
		Username string `json:"username"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateOtpCode(req.Code); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta := map[string]string{
		"user_agent": c.GetHeader("User-Agent"),
		"ip":         c.ClientIP(),
	}

	user, tokens, err := h.auth.CompleteRegistration(c.Request.Context(), req.Email, req.Username, req.Password, req.Code, meta)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":   user,
		"tokens": tokens,
	})
}

// Login обрабатывает POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if strings.TrimSpace(req.Password) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "пароль обязателен"})
		return
	}

	meta := map[string]string{
		"user_agent": c.GetHeader("User-Agent"),
		"ip":         c.ClientIP(),
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, meta)
	if err != nil {
		c.Error(err)
		return
	}

	switch result.Status {
	case service.LoginAuthenticated:
		c.JSON(http.StatusOK, gin.H{
			"user":   result.User,
			"tokens": result.Tokens,
		})
	case service.LoginLockedOut:
		c.Header("Retry-After", formatSeconds(result.RetryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "слишком много неудачных попыток входа",
			"retry_after": int(result.RetryAfter.Seconds()),
		})
	case service.LoginNoLocalPassword:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "для этого аккаунта не задан пароль, воспользуйтесь восстановлением",
		})
	default:
		body := gin.H{"error": "неверный email или пароль"}
		if result.RemainingAttempts >= 0 {
			body["remaining_attempts"] = result.RemainingAttempts
		}
		c.JSON(http.StatusUnauthorized, body)
	}
}

// Refresh обрабатывает POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta := map[string]string{
		"user_agent": c.GetHeader("User-Agent"),
		"ip":         c.ClientIP(),
	}

	tokens, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, meta)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh токен невалиден"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// BeginPasswordReset обрабатывает POST /auth/forgot-password.
func (h *AuthHandler) BeginPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.BeginPasswordReset(c.Request.Context(), req.Email); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "код сброса пароля отправлен на email"})
}

// VerifyResetCode обрабатывает POST /auth/verify-reset-otp.
func (h *AuthHandler) VerifyResetCode(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Code  string `json:"otp" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateOtpCode(req.Code); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.auth.VerifyResetCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		c.Error(err)
		return
	}

	respondVerifyResult(c, res)
}

// ResendResetCode обрабатывает POST /auth/forgot-password/resend.
func (h *AuthHandler) ResendResetCode(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.ResendResetCode(c.Request.Context(), req.Email); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "код отправлен повторно"})
}

// CompletePasswordReset обрабатывает POST /auth/reset-password.
func (h *AuthHandler) CompletePasswordReset(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		Code        string `json:"otp" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateOtpCode(req.Code); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.CompletePasswordReset(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "пароль обновлён"})
}

// respondVerifyResult отображает исход проверки кода в HTTP ответ.
func respondVerifyResult(c *gin.Context, res service.VerifyResult) {
	switch res {
	case service.VerifyValid:
		c.JSON(http.StatusOK, gin.H{"valid": true})
	case service.VerifyNotFound:
		c.JSON(http.StatusNotFound, gin.H{"valid": false, "error": "код не запрашивался или уже использован"})
	case service.VerifyExpired:
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "срок действия кода истёк, запросите новый"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "неверный код"})
	}
}

// formatSeconds форматирует длительность в целые секунды для Retry-After.
func formatSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

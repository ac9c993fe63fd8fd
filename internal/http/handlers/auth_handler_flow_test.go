package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"socialspace/internal/http/middleware"
	"socialspace/internal/models"
	"socialspace/internal/repository"
	"socialspace/internal/service"
)

// stubAuthRepo — минимальная реализация service.AuthRepository для
// HTTP тестов: один пользователь и его состояние защиты от перебора.
type stubAuthRepo struct {
	user      *models.User
	security  models.AccountSecurity
	getErr    error
	createErr error
}

func (r *stubAuthRepo) GetAccountSecurity(ctx context.Context, email string) (*models.AccountSecurity, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.user == nil || r.user.Email != email {
		return nil, repository.ErrUserNotFound
	}
	sec := r.security
	return &sec, nil
}

func (r *stubAuthRepo) RecordLoginFailure(ctx context.Context, email string) (int, error) {
	r.security.FailedAttempts++
	now := time.Now()
	r.security.LastFailedAt = &now
	return r.security.FailedAttempts, nil
}

func (r *stubAuthRepo) RecordLoginSuccess(ctx context.Context, email string, ip string) error {
	r.security = models.AccountSecurity{}
	return nil
}

func (r *stubAuthRepo) Create(ctx context.Context, user *models.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	user.ID = uuid.New()
	r.user = user
	return nil
}

func (r *stubAuthRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.user == nil || r.user.Email != email {
		return nil, repository.ErrUserNotFound
	}
	return r.user, nil
}

func (r *stubAuthRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if r.user == nil || r.user.ID != id {
		return nil, repository.ErrUserNotFound
	}
	return r.user, nil
}

func (r *stubAuthRepo) SetPassword(ctx context.Context, email, passwordHash string) error {
	return nil
}

func (r *stubAuthRepo) ResetLoginFailures(ctx context.Context, email string) error {
	r.security = models.AccountSecurity{}
	return nil
}

func (r *stubAuthRepo) CreateSession(ctx context.Context, session *models.Session) error {
	return nil
}

func (r *stubAuthRepo) DeleteSession(ctx context.Context, refreshToken string) error {
	return nil
}

type stubOtpStore struct {
	codes map[string]*models.OneTimeCode
}

func newStubOtpStore() *stubOtpStore {
	return &stubOtpStore{codes: make(map[string]*models.OneTimeCode)}
}

func (s *stubOtpStore) seed(namespace, email, code string, expiresAt time.Time) {
	s.codes[namespace+"|"+email] = &models.OneTimeCode{
		Namespace: namespace,
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
	}
}

func (s *stubOtpStore) Get(ctx context.Context, namespace, email string) (*models.OneTimeCode, error) {
	stored, ok := s.codes[namespace+"|"+email]
	if !ok {
		return nil, repository.ErrOtpNotFound
	}
	return stored, nil
}

func (s *stubOtpStore) Upsert(ctx context.Context, namespace, email, code string, expiresAt time.Time) error {
	s.seed(namespace, email, code, expiresAt)
	return nil
}

func (s *stubOtpStore) Delete(ctx context.Context, namespace, email string) error {
	delete(s.codes, namespace+"|"+email)
	return nil
}

type stubMailer struct {
	sendErr error
}

func (m *stubMailer) SendCode(email, namespace, code string) error {
	return m.sendErr
}

// newAuthTestRouter собирает реальный AuthService на стабах и вешает
// хэндлер за тем же middleware ошибок, что и боевой роутер.
func newAuthTestRouter(repo *stubAuthRepo, store *stubOtpStore, mailer *stubMailer) *gin.Engine {
	gin.SetMode(gin.TestMode)

	tokens := service.NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	guard := service.NewLoginGuard(repo, 5, 5*time.Minute)
	otp := service.NewOtpService(store, mailer, 10*time.Minute)
	handler := NewAuthHandler(service.NewAuthService(repo, guard, otp, tokens))

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.POST("/auth/register/email", handler.BeginRegistration)
	r.POST("/auth/register/set-password", handler.CompleteRegistration)
	r.POST("/auth/login", handler.Login)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func activeUser(email, password string) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	h := string(hash)
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     "someone",
		PasswordHash: &h,
		Status:       "active",
	}
}

func TestAuthHandler_BeginRegistration_StorageErrorMasked(t *testing.T) {
	repo := &stubAuthRepo{getErr: errors.New("user repository: get by email sql: connection refused")}
	r := newAuthTestRouter(repo, newStubOtpStore(), &stubMailer{})

	w := postJSON(r, "/auth/register/email", `{"email":"user@example.com"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "sql:")
	assert.Contains(t, w.Body.String(), "внутренняя ошибка")
}

func TestAuthHandler_BeginRegistration_EmailTaken(t *testing.T) {
	repo := &stubAuthRepo{user: activeUser("user@example.com", "Password1")}
	r := newAuthTestRouter(repo, newStubOtpStore(), &stubMailer{})

	w := postJSON(r, "/auth/register/email", `{"email":"user@example.com"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "email уже зарегистрирован")
}

func TestAuthHandler_BeginRegistration_DeliveryFailureMasked(t *testing.T) {
	repo := &stubAuthRepo{}
	mailer := &stubMailer{sendErr: errors.New("smtp 535 bad credentials")}
	r := newAuthTestRouter(repo, newStubOtpStore(), mailer)

	w := postJSON(r, "/auth/register/email", `{"email":"user@example.com"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "535")
	assert.Contains(t, w.Body.String(), "не удалось отправить письмо")
}

func TestAuthHandler_CompleteRegistration_StorageErrorMasked(t *testing.T) {
	repo := &stubAuthRepo{createErr: errors.New("user repository: create: database is down")}
	store := newStubOtpStore()
	store.seed(models.OtpNamespaceEmailVerification, "user@example.com", "0427", time.Now().Add(10*time.Minute))
	r := newAuthTestRouter(repo, store, &stubMailer{})

	w := postJSON(r, "/auth/register/set-password",
		`{"email":"user@example.com","otp":"0427","password":"Password1"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "database")
	assert.Contains(t, w.Body.String(), "внутренняя ошибка")
}

func TestAuthHandler_CompleteRegistration_WrongCode(t *testing.T) {
	repo := &stubAuthRepo{}
	store := newStubOtpStore()
	store.seed(models.OtpNamespaceEmailVerification, "user@example.com", "0427", time.Now().Add(10*time.Minute))
	r := newAuthTestRouter(repo, store, &stubMailer{})

	w := postJSON(r, "/auth/register/set-password",
		`{"email":"user@example.com","otp":"1111","password":"Password1"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "код не подтверждён")
	assert.Nil(t, repo.user)
}

func TestAuthHandler_Login_LockedOut(t *testing.T) {
	repo := &stubAuthRepo{user: activeUser("user@example.com", "Password1")}
	lastFailed := time.Now().Add(-time.Minute)
	repo.security = models.AccountSecurity{FailedAttempts: 5, LastFailedAt: &lastFailed}
	r := newAuthTestRouter(repo, newStubOtpStore(), &stubMailer{})

	// Даже верный пароль не проходит, пока окно блокировки не истекло.
	w := postJSON(r, "/auth/login", `{"email":"user@example.com","password":"Password1"}`)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "retry_after")
}

func TestAuthHandler_Login_RejectedWithRemainingAttempts(t *testing.T) {
	repo := &stubAuthRepo{user: activeUser("user@example.com", "Password1")}
	r := newAuthTestRouter(repo, newStubOtpStore(), &stubMailer{})

	w := postJSON(r, "/auth/login", `{"email":"user@example.com","password":"WrongPass1"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"remaining_attempts":4`)
}

func TestAuthHandler_Login_UnknownEmailOmitsRemainingAttempts(t *testing.T) {
	repo := &stubAuthRepo{}
	r := newAuthTestRouter(repo, newStubOtpStore(), &stubMailer{})

	w := postJSON(r, "/auth/login", `{"email":"ghost@example.com","password":"Password1"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "remaining_attempts")
}

func TestAuthHandler_Login_NoLocalPassword(t *testing.T) {
	user := activeUser("user@example.com", "Password1")
	user.PasswordHash = nil
	repo := &stubAuthRepo{user: user}
	r := newAuthTestRouter(repo, newStubOtpStore(), &stubMailer{})

	w := postJSON(r, "/auth/login", `{"email":"user@example.com","password":"Password1"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "восстановлением")
}

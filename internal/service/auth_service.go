package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"socialspace/internal/models"
	"socialspace/internal/pkg/apperror"
	"socialspace/internal/repository"
	"socialspace/internal/validation"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	SecurityStore
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetPassword(ctx context.Context, email, passwordHash string) error
	ResetLoginFailures(ctx context.Context, email string) error
	CreateSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, refreshToken string) error
}

// Статусы результата входа. Все четыре — ожидаемые исходы, различимые
// на уровне HTTP; ошибки инфраструктуры идут отдельным каналом error.
type LoginStatus string

const (
	LoginAuthenticated   LoginStatus = "authenticated"
	LoginRejected        LoginStatus = "rejected"
	LoginLockedOut       LoginStatus = "locked_out"
	LoginNoLocalPassword LoginStatus = "no_local_password"
)

// LoginResult возвращает итог попытки входа.
type LoginResult struct {
	Status            LoginStatus
	RemainingAttempts int           // заполнен при LoginRejected после проверки пароля
	RetryAfter        time.Duration // заполнен при LoginLockedOut
	User              *models.User
	Tokens            *TokenPair
}

// AuthService инкапсулирует регистрацию через подтверждение email,
// вход с защитой от перебора и сброс пароля.
type AuthService struct {
	repo         AuthRepository
	guard        *LoginGuard
	otp          *OtpService
	tokenManager *TokenManager
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(repo AuthRepository, guard *LoginGuard, otp *OtpService, tokenManager *TokenManager) *AuthService {
	return &AuthService{
		repo:         repo,
		guard:        guard,
		otp:          otp,
		tokenManager: tokenManager,
	}
}

// BeginRegistration выдаёт код подтверждения на email. Аккаунт на этом
// шаге ещё не создаётся. Ошибки вызывающего (невалидный email, занятый
// адрес) возвращаются как *apperror.AppError; всё остальное — ошибки
// инфраструктуры, их текст до клиента не доходит.
func (s *AuthService) BeginRegistration(ctx context.Context, email string) error {
	if err := validation.ValidateEmail(email); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	email = validation.NormalizeEmail(email)

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return apperror.New(apperror.ErrCodeBadRequest, "email уже зарегистрирован")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	return s.otp.Issue(ctx, models.OtpNamespaceEmailVerification, email)
}

// VerifyRegistrationCode проверяет код подтверждения email. Код при
// этом не гасится: он понадобится на шаге установки пароля.
func (s *AuthService) VerifyRegistrationCode(ctx context.Context, email, code string) (VerifyResult, error) {
	return s.otp.Verify(ctx, models.OtpNamespaceEmailVerification, validation.NormalizeEmail(email), code)
}

// ResendRegistrationCode повторно отправляет код подтверждения.
func (s *AuthService) ResendRegistrationCode(ctx context.Context, email string) error {
	return s.otp.Resend(ctx, models.OtpNamespaceEmailVerification, validation.NormalizeEmail(email))
}

// CompleteRegistration — терминальный шаг регистрации: ещё раз
// проверяет код, создаёт пользователя и только после этого гасит код.
func (s *AuthService) CompleteRegistration(ctx context.Context, email, username, password, code string, meta map[string]string) (*models.User, *TokenPair, error) {
	email = validation.NormalizeEmail(email)

	res, err := s.otp.Verify(ctx, models.OtpNamespaceEmailVerification, email, code)
	if err != nil {
		return nil, nil, err
	}
	if res != VerifyValid {
		return nil, nil, apperror.New(apperror.ErrCodeBadRequest, fmt.Sprintf("код не подтверждён (%s)", res))
	}

	if username == "" {
		username = deriveUsername(email)
	} else if err := validation.ValidateUsername(username); err != nil {
		return nil, nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	if err := validation.ValidatePassword(password); err != nil {
		return nil, nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	hash := string(passHash)
	user := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: &hash,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	if err := s.otp.Consume(ctx, models.OtpNamespaceEmailVerification, email); err != nil {
		return nil, nil, err
	}

	tokens, err := s.startSession(ctx, user, meta)
	if err != nil {
		return nil, nil, err
	}

	return user, tokens, nil
}

// Login проверяет учётные данные с учётом защиты от перебора.
// Порядок строго последовательный: сначала guard, затем сравнение
// пароля, затем фиксация исхода. Ошибка хранилища на любом шаге —
// отказ во входе (fail closed).
func (s *AuthService) Login(ctx context.Context, email, password string, meta map[string]string) (*LoginResult, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	email = validation.NormalizeEmail(email)

	locked, retryAfter, err := s.guard.Check(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Неизвестный аккаунт — обычный отказ, счётчик вести не по чему.
			return &LoginResult{Status: LoginRejected, RemainingAttempts: -1}, nil
		}
		return nil, err
	}
	if locked {
		return &LoginResult{Status: LoginLockedOut, RetryAfter: retryAfter}, nil
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return &LoginResult{Status: LoginRejected, RemainingAttempts: -1}, nil
		}
		return nil, err
	}

	if user.Status != "active" {
		return &LoginResult{Status: LoginRejected, RemainingAttempts: -1}, nil
	}

	// Аккаунт без локального пароля (внешний провайдер): отдельный
	// исход, счётчик неудач не трогаем.
	if user.PasswordHash == nil {
		return &LoginResult{Status: LoginNoLocalPassword}, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		remaining, ferr := s.guard.OnFailure(ctx, email)
		if ferr != nil {
			return nil, ferr
		}
		return &LoginResult{Status: LoginRejected, RemainingAttempts: remaining}, nil
	}

	ip := meta["ip"]
	if err := s.guard.OnSuccess(ctx, email, ip); err != nil {
		return nil, err
	}

	tokens, err := s.startSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Status: LoginAuthenticated,
		User:   user,
		Tokens: tokens,
	}, nil
}

// Refresh выпускает новую пару токенов.
func (s *AuthService) Refresh(ctx context.Context, oldToken string, meta map[string]string) (*TokenPair, error) {
	claims, err := s.tokenManager.ParseRefresh(oldToken)
	if err != nil {
		return nil, fmt.Errorf("auth service: refresh токен невалиден: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("auth service: некорректный subject: %w", err)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteSession(ctx, oldToken); err != nil {
		return nil, err
	}

	return s.startSession(ctx, user, meta)
}

// BeginPasswordReset выдаёт код сброса пароля. Код выдаётся только для
// существующего аккаунта.
func (s *AuthService) BeginPasswordReset(ctx context.Context, email string) error {
	if err := validation.ValidateEmail(email); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	email = validation.NormalizeEmail(email)

	if _, err := s.repo.GetByEmail(ctx, email); err != nil {
		return err
	}

	return s.otp.Issue(ctx, models.OtpNamespacePasswordReset, email)
}

// VerifyResetCode проверяет код сброса, не гася его.
func (s *AuthService) VerifyResetCode(ctx context.Context, email, code string) (VerifyResult, error) {
	return s.otp.Verify(ctx, models.OtpNamespacePasswordReset, validation.NormalizeEmail(email), code)
}

// ResendResetCode повторно отправляет код сброса.
func (s *AuthService) ResendResetCode(ctx context.Context, email string) error {
	return s.otp.Resend(ctx, models.OtpNamespacePasswordReset, validation.NormalizeEmail(email))
}

// CompletePasswordReset — терминальный шаг сброса: проверяет код,
// устанавливает новый пароль, гасит код и обнуляет счётчик неудачных
// входов, чтобы владелец аккаунта не остался заблокированным после
// чужого перебора.
func (s *AuthService) CompletePasswordReset(ctx context.Context, email, code, newPassword string) error {
	email = validation.NormalizeEmail(email)

	res, err := s.otp.Verify(ctx, models.OtpNamespacePasswordReset, email, code)
	if err != nil {
		return err
	}
	if res != VerifyValid {
		return apperror.New(apperror.ErrCodeBadRequest, fmt.Sprintf("код не подтверждён (%s)", res))
	}

	if err := validation.ValidatePassword(newPassword); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	if err := s.repo.SetPassword(ctx, email, string(passHash)); err != nil {
		return err
	}

	if err := s.otp.Consume(ctx, models.OtpNamespacePasswordReset, email); err != nil {
		return err
	}

	return s.repo.ResetLoginFailures(ctx, email)
}

// startSession выпускает пару токенов и сохраняет сессию.
func (s *AuthService) startSession(ctx context.Context, user *models.User, meta map[string]string) (*TokenPair, error) {
	tokens, _, refreshExp, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    refreshExp,
	}

	if meta != nil {
		if ua, ok := meta["user_agent"]; ok {
			session.UserAgent = &ua
		}
		if ip, ok := meta["ip"]; ok {
			session.IPAddress = &ip
		}
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return tokens, nil
}

// deriveUsername формирует username из email.
func deriveUsername(email string) string {
	name := strings.Split(email, "@")[0]
	name = strings.NewReplacer(".", "_", "+", "_").Replace(name)
	name = strings.ToLower(name)
	if len(name) < 3 {
		name = "user_" + uuid.NewString()[:6]
	}
	return name
}

package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"socialspace/internal/models"
	"socialspace/internal/repository"
)

// OtpTTLDefault — срок жизни одноразового кода по умолчанию.
const OtpTTLDefault = 10 * time.Minute

const otpCodeSpace = 10000 // коды 0000–9999

// ErrOtpDeliveryFailed означает, что код записан в хранилище, но письмо
// отправить не удалось. Записанный код безвреден: он просто истечёт.
var ErrOtpDeliveryFailed = errors.New("otp delivery failed")

// VerifyResult — исход проверки кода. Все четыре варианта — ожидаемые
// пользовательские исходы, а не ошибки инфраструктуры.
type VerifyResult string

const (
	VerifyValid    VerifyResult = "valid"
	VerifyNotFound VerifyResult = "not_found"
	VerifyExpired  VerifyResult = "expired"
	VerifyMismatch VerifyResult = "mismatch"
)

// OtpStore описывает зависимости сервиса от слоя хранилища.
type OtpStore interface {
	Get(ctx context.Context, namespace, email string) (*models.OneTimeCode, error)
	Upsert(ctx context.Context, namespace, email, code string, expiresAt time.Time) error
	Delete(ctx context.Context, namespace, email string) error
}

// CodeMailer доставляет код получателю. Вызов синхронный: сервис ждёт
// подтверждения транспорта прежде чем сообщить вызывающему об успехе.
type CodeMailer interface {
	SendCode(email, namespace, code string) error
}

// OtpService выдаёт, проверяет и гасит одноразовые коды для двух
// независимых пространств: подтверждение email при регистрации и
// авторизация сброса пароля.
type OtpService struct {
	store  OtpStore
	mailer CodeMailer
	ttl    time.Duration
}

// NewOtpService создаёт сервис одноразовых кодов.
func NewOtpService(store OtpStore, mailer CodeMailer, ttl time.Duration) *OtpService {
	if ttl <= 0 {
		ttl = OtpTTLDefault
	}
	return &OtpService{
		store:  store,
		mailer: mailer,
		ttl:    ttl,
	}
}

// Issue генерирует код, записывает его и отправляет получателю.
// Существующий код для (namespace, email) перезаписывается на месте —
// второй строки не появляется. Запись выполняется строго до отправки:
// при сбое доставки в базе остаётся валидный, но недоставленный код,
// а вызывающий получает ErrOtpDeliveryFailed.
func (s *OtpService) Issue(ctx context.Context, namespace, email string) error {
	code, err := generateOtpCode()
	if err != nil {
		return fmt.Errorf("otp service: generate %w", err)
	}

	expiresAt := time.Now().Add(s.ttl)
	if err := s.store.Upsert(ctx, namespace, email, code, expiresAt); err != nil {
		return fmt.Errorf("otp service: issue %w", err)
	}

	if err := s.mailer.SendCode(email, namespace, code); err != nil {
		return fmt.Errorf("otp service: %w: %v", ErrOtpDeliveryFailed, err)
	}

	return nil
}

// Verify проверяет код. Успешная проверка не гасит код: он остаётся
// действительным до явного Consume или естественного истечения, потому
// что подтверждение и завершающий шаг (установка пароля) — разные
// запросы. Просрочка проверяется раньше сравнения, чтобы истёкший код
// не маскировался под неверный; просроченная строка не удаляется.
func (s *OtpService) Verify(ctx context.Context, namespace, email, candidate string) (VerifyResult, error) {
	stored, err := s.store.Get(ctx, namespace, email)
	if err != nil {
		if errors.Is(err, repository.ErrOtpNotFound) {
			return VerifyNotFound, nil
		}
		return "", fmt.Errorf("otp service: verify %w", err)
	}

	if stored.Expired(time.Now()) {
		return VerifyExpired, nil
	}

	// Точное сравнение строк, без нормализации: "0427" и "427" — разные коды.
	if stored.Code != candidate {
		return VerifyMismatch, nil
	}

	return VerifyValid, nil
}

// Consume удаляет код после завершающего шага сценария. Идемпотентен:
// повторное или лишнее гашение не ошибка.
func (s *OtpService) Consume(ctx context.Context, namespace, email string) error {
	if err := s.store.Delete(ctx, namespace, email); err != nil {
		return fmt.Errorf("otp service: consume %w", err)
	}
	return nil
}

// Resend повторно доставляет код. Если записи нет — repository.ErrOtpNotFound:
// вызывающий должен пройти через обычную точку входа с Issue. Истёкший
// код заменяется свежим, действующий отправляется как есть — просьба о
// повторной отправке не сжигает рабочий код.
func (s *OtpService) Resend(ctx context.Context, namespace, email string) error {
	stored, err := s.store.Get(ctx, namespace, email)
	if err != nil {
		if errors.Is(err, repository.ErrOtpNotFound) {
			return repository.ErrOtpNotFound
		}
		return fmt.Errorf("otp service: resend %w", err)
	}

	if stored.Expired(time.Now()) {
		return s.Issue(ctx, namespace, email)
	}

	if err := s.mailer.SendCode(email, namespace, stored.Code); err != nil {
		return fmt.Errorf("otp service: %w: %v", ErrOtpDeliveryFailed, err)
	}

	return nil
}

// generateOtpCode возвращает код фиксированной ширины, равномерно
// распределённый по всему пространству 0000–9999. Сначала фиксируется
// ширина, затем форматирование: ведущие нули сохраняются, перекоса к
// малым значениям нет.
func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpCodeSpace))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

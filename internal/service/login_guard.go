package service

import (
	"context"
	"fmt"
	"time"

	"socialspace/internal/models"
)

// Пороговые значения защиты от перебора по умолчанию.
const (
	DefaultLockoutThreshold = 5
	DefaultLockoutWindow    = 5 * time.Minute
)

// SecurityStore описывает зависимости LoginGuard от слоя хранилища.
// Всё состояние живёт в базе: процесс не держит счётчики в памяти,
// поэтому поведение одинаково при нескольких инстансах и после рестарта.
type SecurityStore interface {
	GetAccountSecurity(ctx context.Context, email string) (*models.AccountSecurity, error)
	RecordLoginFailure(ctx context.Context, email string) (int, error)
	RecordLoginSuccess(ctx context.Context, email string, ip string) error
}

// LoginGuard ограничивает перебор пароля по конкретному аккаунту.
// После threshold подряд неудачных попыток вход блокируется, пока с
// момента последней неудачи не пройдёт window. Окно скользящее: каждая
// неудача перезапускает отсчёт, а не фиксирует момент блокировки.
type LoginGuard struct {
	store     SecurityStore
	threshold int
	window    time.Duration
}

// NewLoginGuard создаёт guard с заданной политикой. Нулевые значения
// заменяются дефолтами.
func NewLoginGuard(store SecurityStore, threshold int, window time.Duration) *LoginGuard {
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	if window <= 0 {
		window = DefaultLockoutWindow
	}
	return &LoginGuard{
		store:     store,
		threshold: threshold,
		window:    window,
	}
}

// Check сообщает, заблокирован ли вход для аккаунта. При активной
// блокировке возвращает время до её окончания. Состояние при этом не
// изменяется: отклонённая на этой стадии попытка не продлевает окно.
// Ошибка хранилища означает отказ во входе (fail closed), а не
// пропуск проверки.
func (g *LoginGuard) Check(ctx context.Context, email string) (bool, time.Duration, error) {
	sec, err := g.store.GetAccountSecurity(ctx, email)
	if err != nil {
		return false, 0, fmt.Errorf("login guard: check %w", err)
	}

	if sec.FailedAttempts < g.threshold || sec.LastFailedAt == nil {
		return false, 0, nil
	}

	elapsed := time.Since(*sec.LastFailedAt)
	if elapsed >= g.window {
		// Окно тишины выдержано: попытка рассматривается как обычная.
		return false, 0, nil
	}

	return true, g.window - elapsed, nil
}

// OnFailure фиксирует неудачную попытку: инкремент счётчика и отметка
// времени выполняются одним атомарным UPDATE на стороне базы, так что
// параллельные запросы не теряют попытки. Возвращает число оставшихся
// попыток до блокировки.
func (g *LoginGuard) OnFailure(ctx context.Context, email string) (int, error) {
	count, err := g.store.RecordLoginFailure(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("login guard: record failure %w", err)
	}

	remaining := g.threshold - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// OnSuccess сбрасывает счётчик и записывает метаданные входа.
func (g *LoginGuard) OnSuccess(ctx context.Context, email string, ip string) error {
	if err := g.store.RecordLoginSuccess(ctx, email, ip); err != nil {
		return fmt.Errorf("login guard: record success %w", err)
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"socialspace/internal/models"
	"socialspace/internal/repository"
)

// mockSecurityStore реализует SecurityStore для тестов. Время последней
// неудачи выставляется напрямую, чтобы управлять окном блокировки.
type mockSecurityStore struct {
	accounts map[string]*models.AccountSecurity
	failErr  error
	getErr   error
}

func newMockSecurityStore() *mockSecurityStore {
	return &mockSecurityStore{accounts: make(map[string]*models.AccountSecurity)}
}

func (m *mockSecurityStore) ensure(email string) *models.AccountSecurity {
	if _, ok := m.accounts[email]; !ok {
		m.accounts[email] = &models.AccountSecurity{}
	}
	return m.accounts[email]
}

func (m *mockSecurityStore) GetAccountSecurity(ctx context.Context, email string) (*models.AccountSecurity, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	sec, ok := m.accounts[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *sec
	return &copied, nil
}

func (m *mockSecurityStore) RecordLoginFailure(ctx context.Context, email string) (int, error) {
	if m.failErr != nil {
		return 0, m.failErr
	}
	sec := m.ensure(email)
	sec.FailedAttempts++
	now := time.Now()
	sec.LastFailedAt = &now
	return sec.FailedAttempts, nil
}

func (m *mockSecurityStore) RecordLoginSuccess(ctx context.Context, email string, ip string) error {
	sec := m.ensure(email)
	sec.FailedAttempts = 0
	sec.LastFailedAt = nil
	return nil
}

func (m *mockSecurityStore) setFailures(email string, count int, lastFailedAt time.Time) {
	sec := m.ensure(email)
	sec.FailedAttempts = count
	sec.LastFailedAt = &lastFailedAt
}

func TestLoginGuard_LocksAfterThreshold(t *testing.T) {
	store := newMockSecurityStore()
	store.ensure("user@example.com")
	guard := NewLoginGuard(store, 5, 5*time.Minute)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		locked, _, err := guard.Check(ctx, "user@example.com")
		if err != nil {
			t.Fatalf("check вернул ошибку: %v", err)
		}
		if locked {
			t.Fatalf("аккаунт заблокирован раньше порога, попытка %d", i)
		}

		remaining, err := guard.OnFailure(ctx, "user@example.com")
		if err != nil {
			t.Fatalf("onFailure вернул ошибку: %v", err)
		}
		if want := 5 - i; remaining != want {
			t.Fatalf("ожидалось remaining=%d, получили %d", want, remaining)
		}
	}

	// Шестая попытка блокируется ещё до проверки пароля.
	locked, retryAfter, err := guard.Check(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("check вернул ошибку: %v", err)
	}
	if !locked {
		t.Fatalf("после %d неудач аккаунт должен быть заблокирован", 5)
	}
	if retryAfter <= 0 || retryAfter > 5*time.Minute {
		t.Fatalf("retryAfter вне окна блокировки: %v", retryAfter)
	}
}

func TestLoginGuard_CheckDoesNotExtendWindow(t *testing.T) {
	store := newMockSecurityStore()
	guard := NewLoginGuard(store, 5, 5*time.Minute)
	ctx := context.Background()

	lastFail := time.Now().Add(-2 * time.Minute)
	store.setFailures("user@example.com", 5, lastFail)

	// Несколько отклонённых на стадии guard попыток подряд.
	for i := 0; i < 3; i++ {
		locked, _, err := guard.Check(ctx, "user@example.com")
		if err != nil {
			t.Fatalf("check вернул ошибку: %v", err)
		}
		if !locked {
			t.Fatalf("ожидалась блокировка")
		}
	}

	// Состояние не изменилось: окно не продлено.
	sec := store.accounts["user@example.com"]
	if sec.FailedAttempts != 5 {
		t.Fatalf("счётчик изменился: %d", sec.FailedAttempts)
	}
	if !sec.LastFailedAt.Equal(lastFail) {
		t.Fatalf("отметка времени изменилась: %v", sec.LastFailedAt)
	}
}

func TestLoginGuard_WindowElapsed(t *testing.T) {
	store := newMockSecurityStore()
	guard := NewLoginGuard(store, 5, 5*time.Minute)
	ctx := context.Background()

	store.setFailures("user@example.com", 7, time.Now().Add(-6*time.Minute))

	locked, _, err := guard.Check(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("check вернул ошибку: %v", err)
	}
	if locked {
		t.Fatalf("после истечения окна вход должен рассматриваться как обычный")
	}
}

func TestLoginGuard_SlidingWindow(t *testing.T) {
	store := newMockSecurityStore()
	guard := NewLoginGuard(store, 5, 5*time.Minute)
	ctx := context.Background()

	// Окно почти истекло, но новая неудача перезапускает отсчёт.
	store.setFailures("user@example.com", 4, time.Now().Add(-4*time.Minute))

	if _, err := guard.OnFailure(ctx, "user@example.com"); err != nil {
		t.Fatalf("onFailure вернул ошибку: %v", err)
	}

	locked, retryAfter, err := guard.Check(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("check вернул ошибку: %v", err)
	}
	if !locked {
		t.Fatalf("пятая неудача должна заблокировать аккаунт")
	}
	// Отсчёт идёт от последней неудачи, а не от первой.
	if retryAfter < 4*time.Minute {
		t.Fatalf("окно должно было перезапуститься: retryAfter=%v", retryAfter)
	}
}

func TestLoginGuard_SuccessResetsCounter(t *testing.T) {
	store := newMockSecurityStore()
	guard := NewLoginGuard(store, 5, 5*time.Minute)
	ctx := context.Background()

	store.setFailures("user@example.com", 4, time.Now())

	if err := guard.OnSuccess(ctx, "user@example.com", "127.0.0.1"); err != nil {
		t.Fatalf("onSuccess вернул ошибку: %v", err)
	}

	// Следующая неудача начинает отсчёт заново.
	remaining, err := guard.OnFailure(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("onFailure вернул ошибку: %v", err)
	}
	if remaining != 4 {
		t.Fatalf("после успеха счётчик должен обнулиться: remaining=%d", remaining)
	}
}

func TestLoginGuard_FailClosedOnStorageError(t *testing.T) {
	store := newMockSecurityStore()
	store.getErr = errors.New("connection refused")
	guard := NewLoginGuard(store, 5, 5*time.Minute)

	locked, _, err := guard.Check(context.Background(), "user@example.com")
	if err == nil {
		t.Fatalf("ошибка хранилища должна пробрасываться наверх")
	}
	if locked {
		t.Fatalf("при ошибке хранилища не должно быть ложной блокировки")
	}
}

func TestLoginGuard_DefaultPolicy(t *testing.T) {
	guard := NewLoginGuard(newMockSecurityStore(), 0, 0)
	if guard.threshold != DefaultLockoutThreshold {
		t.Fatalf("ожидался порог %d, получили %d", DefaultLockoutThreshold, guard.threshold)
	}
	if guard.window != DefaultLockoutWindow {
		t.Fatalf("ожидалось окно %v, получили %v", DefaultLockoutWindow, guard.window)
	}
}

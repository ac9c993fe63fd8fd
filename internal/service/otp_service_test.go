package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"socialspace/internal/models"
	"socialspace/internal/repository"
)

// mockOtpStore реализует OtpStore в памяти.
type mockOtpStore struct {
	codes map[string]*models.OneTimeCode
}

func newMockOtpStore() *mockOtpStore {
	return &mockOtpStore{codes: make(map[string]*models.OneTimeCode)}
}

func otpKey(namespace, email string) string {
	return namespace + "|" + email
}

func (m *mockOtpStore) Get(ctx context.Context, namespace, email string) (*models.OneTimeCode, error) {
	code, ok := m.codes[otpKey(namespace, email)]
	if !ok {
		return nil, repository.ErrOtpNotFound
	}
	copied := *code
	return &copied, nil
}

func (m *mockOtpStore) Upsert(ctx context.Context, namespace, email, code string, expiresAt time.Time) error {
	m.codes[otpKey(namespace, email)] = &models.OneTimeCode{
		Namespace: namespace,
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
		UpdatedAt: time.Now(),
	}
	return nil
}

func (m *mockOtpStore) Delete(ctx context.Context, namespace, email string) error {
	delete(m.codes, otpKey(namespace, email))
	return nil
}

// mockMailer записывает отправленные письма; может имитировать сбой транспорта.
type mockMailer struct {
	sent    []string
	sendErr error
}

func (m *mockMailer) SendCode(email, namespace, code string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, code)
	return nil
}

func TestOtpService_IssueStoresBeforeDelivery(t *testing.T) {
	store := newMockOtpStore()
	mailer := &mockMailer{sendErr: errors.New("smtp unreachable")}
	svc := NewOtpService(store, mailer, 10*time.Minute)
	ctx := context.Background()

	err := svc.Issue(ctx, models.OtpNamespaceEmailVerification, "user@example.com")
	if !errors.Is(err, ErrOtpDeliveryFailed) {
		t.Fatalf("ожидалась ошибка доставки, получили: %v", err)
	}

	// Код уже записан, несмотря на сбой доставки.
	stored, err := store.Get(ctx, models.OtpNamespaceEmailVerification, "user@example.com")
	if err != nil {
		t.Fatalf("код должен быть записан до отправки: %v", err)
	}
	if stored.Code == "" {
		t.Fatalf("пустой код в хранилище")
	}
}

func TestOtpService_CodeFormat(t *testing.T) {
	format := regexp.MustCompile(`^[0-9]{4}$`)
	for i := 0; i < 200; i++ {
		code, err := generateOtpCode()
		if err != nil {
			t.Fatalf("генерация вернула ошибку: %v", err)
		}
		if !format.MatchString(code) {
			t.Fatalf("код %q не соответствует формату из четырёх цифр", code)
		}
	}
}

func TestOtpService_VerifyDoesNotConsume(t *testing.T) {
	store := newMockOtpStore()
	svc := NewOtpService(store, &mockMailer{}, 10*time.Minute)
	ctx := context.Background()

	store.Upsert(ctx, models.OtpNamespaceEmailVerification, "user@example.com", "0427", time.Now().Add(10*time.Minute))

	for i := 0; i < 2; i++ {
		res, err := svc.Verify(ctx, models.OtpNamespaceEmailVerification, "user@example.com", "0427")
		if err != nil {
			t.Fatalf("verify вернул ошибку: %v", err)
		}
		if res != VerifyValid {
			t.Fatalf("повторная проверка должна оставаться успешной, получили %s", res)
		}
	}
}

func TestOtpService_VerifyOutcomes(t *testing.T) {
	store := newMockOtpStore()
	svc := NewOtpService(store, &mockMailer{}, 10*time.Minute)
	ctx := context.Background()

	res, err := svc.Verify(ctx, models.OtpNamespacePasswordReset, "none@example.com", "1234")
	if err != nil || res != VerifyNotFound {
		t.Fatalf("ожидался not_found, получили %s (%v)", res, err)
	}

	store.Upsert(ctx, models.OtpNamespacePasswordReset, "user@example.com", "0427", time.Now().Add(10*time.Minute))

	// Точное сравнение: "427" не равен "0427".
	res, err = svc.Verify(ctx, models.OtpNamespacePasswordReset, "user@example.com", "427")
	if err != nil || res != VerifyMismatch {
		t.Fatalf("ожидался mismatch, получили %s (%v)", res, err)
	}

	// Просроченный код: истечение важнее несовпадения.
	store.Upsert(ctx, models.OtpNamespacePasswordReset, "user@example.com", "0427", time.Now().Add(-time.Minute))

	res, err = svc.Verify(ctx, models.OtpNamespacePasswordReset, "user@example.com", "9999")
	if err != nil || res != VerifyExpired {
		t.Fatalf("ожидался expired, получили %s (%v)", res, err)
	}

	res, err = svc.Verify(ctx, models.OtpNamespacePasswordReset, "user@example.com", "0427")
	if err != nil || res != VerifyExpired {
		t.Fatalf("даже верный, но истёкший код — expired, получили %s (%v)", res, err)
	}
}

func TestOtpService_ReissueOverwrites(t *testing.T) {
	store := newMockOtpStore()
	mailer := &mockMailer{}
	svc := NewOtpService(store, mailer, 10*time.Minute)
	ctx := context.Background()

	store.Upsert(ctx, models.OtpNamespaceEmailVerification, "user@example.com", "1111", time.Now().Add(10*time.Minute))

	if err := svc.Issue(ctx, models.OtpNamespaceEmailVerification, "user@example.com"); err != nil {
		t.Fatalf("issue вернул ошибку: %v", err)
	}

	if len(store.codes) != 1 {
		t.Fatalf("повторная выдача не должна создавать вторую строку: %d", len(store.codes))
	}

	fresh := store.codes[otpKey(models.OtpNamespaceEmailVerification, "user@example.com")]

	// Старый код перестаёт действовать сразу после перевыпуска.
	if fresh.Code != "1111" {
		res, err := svc.Verify(ctx, models.OtpNamespaceEmailVerification, "user@example.com", "1111")
		if err != nil || res != VerifyMismatch {
			t.Fatalf("старый код должен давать mismatch, получили %s (%v)", res, err)
		}
	}
}

func TestOtpService_NamespacesIndependent(t *testing.T) {
	store := newMockOtpStore()
	svc := NewOtpService(store, &mockMailer{}, 10*time.Minute)
	ctx := context.Background()

	store.Upsert(ctx, models.OtpNamespaceEmailVerification, "user@example.com", "1111", time.Now().Add(10*time.Minute))
	store.Upsert(ctx, models.OtpNamespacePasswordReset, "user@example.com", "2222", time.Now().Add(10*time.Minute))

	// Код одного пространства не подходит в другом.
	res, err := svc.Verify(ctx, models.OtpNamespacePasswordReset, "user@example.com", "1111")
	if err != nil || res != VerifyMismatch {
		t.Fatalf("код чужого пространства должен давать mismatch, получили %s (%v)", res, err)
	}

	// Гашение одного пространства не трогает другое.
	if err := svc.Consume(ctx, models.OtpNamespaceEmailVerification, "user@example.com"); err != nil {
		t.Fatalf("consume вернул ошибку: %v", err)
	}

	res, err = svc.Verify(ctx, models.OtpNamespacePasswordReset, "user@example.com", "2222")
	if err != nil || res != VerifyValid {
		t.Fatalf("второе пространство должно остаться нетронутым, получили %s (%v)", res, err)
	}
}

func TestOtpService_ConsumeIdempotent(t *testing.T) {
	store := newMockOtpStore()
	svc := NewOtpService(store, &mockMailer{}, 10*time.Minute)
	ctx := context.Background()

	store.Upsert(ctx, models.OtpNamespaceEmailVerification, "user@example.com", "0427", time.Now().Add(10*time.Minute))

	for i := 0; i < 2; i++ {
		if err := svc.Consume(ctx, models.OtpNamespaceEmailVerification, "user@example.com"); err != nil {
			t.Fatalf("consume не должен падать на повторе: %v", err)
		}
	}

	res, err := svc.Verify(ctx, models.OtpNamespaceEmailVerification, "user@example.com", "0427")
	if err != nil || res != VerifyNotFound {
		t.Fatalf("после гашения ожидался not_found, получили %s (%v)", res, err)
	}
}

func TestOtpService_ResendValidCode(t *testing.T) {
	store := newMockOtpStore()
	mailer := &mockMailer{}
	svc := NewOtpService(store, mailer, 10*time.Minute)
	ctx := context.Background()

	store.Upsert(ctx, models.OtpNamespaceEmailVerification, "user@example.com", "0427", time.Now().Add(10*time.Minute))

	if err := svc.Resend(ctx, models.OtpNamespaceEmailVerification, "user@example.com"); err != nil {
		t.Fatalf("resend вернул ошибку: %v", err)
	}

	// Отправлен тот же код, без перегенерации.
	if len(mailer.sent) != 1 || mailer.sent[0] != "0427" {
		t.Fatalf("ожидалась повторная отправка кода 0427, получили %v", mailer.sent)
	}

	stored := store.codes[otpKey(models.OtpNamespaceEmailVerification, "user@example.com")]
	if stored.Code != "0427" {
		t.Fatalf("действующий код не должен перегенерироваться: %s", stored.Code)
	}
}

func TestOtpService_ResendExpiredReissues(t *testing.T) {
	store := newMockOtpStore()
	mailer := &mockMailer{}
	svc := NewOtpService(store, mailer, 10*time.Minute)
	ctx := context.Background()

	store.Upsert(ctx, models.OtpNamespaceEmailVerification, "user@example.com", "0427", time.Now().Add(-time.Minute))

	if err := svc.Resend(ctx, models.OtpNamespaceEmailVerification, "user@example.com"); err != nil {
		t.Fatalf("resend вернул ошибку: %v", err)
	}

	stored := store.codes[otpKey(models.OtpNamespaceEmailVerification, "user@example.com")]
	if stored.Expired(time.Now()) {
		t.Fatalf("после resend код должен быть свежим")
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != stored.Code {
		t.Fatalf("должен быть отправлен новый код из хранилища: %v vs %s", mailer.sent, stored.Code)
	}
}

func TestOtpService_ResendUnknownEmail(t *testing.T) {
	svc := NewOtpService(newMockOtpStore(), &mockMailer{}, 10*time.Minute)

	err := svc.Resend(context.Background(), models.OtpNamespaceEmailVerification, "none@example.com")
	if !errors.Is(err, repository.ErrOtpNotFound) {
		t.Fatalf("ожидался ErrOtpNotFound, получили: %v", err)
	}
}

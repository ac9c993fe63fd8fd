package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"socialspace/internal/models"
)

// ErrOtpNotFound возвращается, когда код для (namespace, email) отсутствует.
var ErrOtpNotFound = errors.New("one-time code not found")

// OtpRepository отвечает за таблицу one_time_codes. На пару
// (namespace, email) приходится не более одной строки, поэтому выдача
// нового кода — это upsert, перезаписывающий код и срок действия вместе
// одним оператором: читатель никогда не увидит старый код с новым сроком.
type OtpRepository struct {
	db *sqlx.DB
}

// NewOtpRepository создаёт экземпляр репозитория.
func NewOtpRepository(db *sqlx.DB) *OtpRepository {
	return &OtpRepository{db: db}
}

// Get возвращает действующую запись кода, включая просроченную:
// интерпретация срока действия — дело сервиса.
func (r *OtpRepository) Get(ctx context.Context, namespace, email string) (*models.OneTimeCode, error) {
	var code models.OneTimeCode
	query := `
		SELECT namespace, email, code, expires_at, updated_at
		FROM one_time_codes
		WHERE namespace = $1 AND email = $2
	`
	if err := r.db.GetContext(ctx, &code, query, namespace, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOtpNotFound
		}
		return nil, fmt.Errorf("otp repository: get %w", err)
	}

	return &code, nil
}

// Upsert вставляет или перезаписывает код вместе со сроком действия.
func (r *OtpRepository) Upsert(ctx context.Context, namespace, email, code string, expiresAt time.Time) error {
	query := `
		INSERT INTO one_time_codes (namespace, email, code, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (namespace, email) DO UPDATE
		SET code = EXCLUDED.code,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, namespace, email, code, expiresAt); err != nil {
		return fmt.Errorf("otp repository: upsert %w", err)
	}

	return nil
}

// Delete удаляет запись кода. Отсутствие строки ошибкой не считается.
func (r *OtpRepository) Delete(ctx context.Context, namespace, email string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM one_time_codes WHERE namespace = $1 AND email = $2`,
		namespace, email,
	); err != nil {
		return fmt.Errorf("otp repository: delete %w", err)
	}

	return nil
}

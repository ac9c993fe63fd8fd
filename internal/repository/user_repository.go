package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"socialspace/internal/models"
)

// ErrUserNotFound возвращается, когда запись пользователя не найдена.
var ErrUserNotFound = errors.New("user not found")

// UserRepository отвечает за работу с таблицами users и sessions,
// включая поля защиты аккаунта от перебора пароля.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт нового пользователя.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, username, password_hash, status)
		VALUES ($1, $2, $3, 'active')
		RETURNING id, status, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		user.Email, user.Username, user.PasswordHash,
	).Scan(&user.ID, &user.Status, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, email, username, password_hash, bio, avatar_id, birthday, status,
		       last_login_at, last_login_ip, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}

	return &user, nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, email, username, password_hash, bio, avatar_id, birthday, status,
		       last_login_at, last_login_ip, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}

	return &user, nil
}

// SetPassword обновляет хеш пароля пользователя по email.
func (r *UserRepository) SetPassword(ctx context.Context, email, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE email = $2`,
		passwordHash, email,
	)
	if err != nil {
		return fmt.Errorf("user repository: set password %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user repository: set password rows affected %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateProfile изменяет редактируемые поля профиля.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET username = $1, bio = $2, avatar_id = $3, birthday = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		user.Username, user.Bio, user.AvatarID, user.Birthday, user.ID,
	).Scan(&user.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("user repository: update profile %w", err)
	}

	return nil
}

// GetPublicProfile возвращает публичный профиль со счётчиками постов
// и подписок одним запросом.
func (r *UserRepository) GetPublicProfile(ctx context.Context, id uuid.UUID) (*models.PublicProfile, error) {
	var profile models.PublicProfile
	query := `
		SELECT u.id, u.username, u.bio, u.avatar_id, u.created_at,
		       (SELECT COUNT(*) FROM posts p WHERE p.author_id = u.id) AS post_count,
		       (SELECT COUNT(*) FROM follows f WHERE f.followee_id = u.id) AS follower_count,
		       (SELECT COUNT(*) FROM follows f WHERE f.follower_id = u.id) AS following_count
		FROM users u
		WHERE u.id = $1
	`
	if err := r.db.QueryRowxContext(ctx, query, id).Scan(
		&profile.ID, &profile.Username, &profile.Bio, &profile.AvatarID, &profile.CreatedAt,
		&profile.PostCount, &profile.FollowerCount, &profile.FollowingCount,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get public profile %w", err)
	}

	return &profile, nil
}

// SearchUsers ищет пользователей по началу username или email.
func (r *UserRepository) SearchUsers(ctx context.Context, term string, limit int) ([]models.PublicProfile, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	rows := []models.PublicProfile{}
	query := `
		SELECT u.id, u.username, u.bio, u.avatar_id, u.created_at,
		       0 AS post_count, 0 AS follower_count, 0 AS following_count
		FROM users u
		WHERE u.username ILIKE $1 || '%' OR u.email ILIKE $1 || '%'
		ORDER BY u.username
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &rows, query, term, limit); err != nil {
		return nil, fmt.Errorf("user repository: search %w", err)
	}

	return rows, nil
}

// GetAccountSecurity читает счётчик неудачных входов и время последней
// неудачи.
func (r *UserRepository) GetAccountSecurity(ctx context.Context, email string) (*models.AccountSecurity, error) {
	var sec models.AccountSecurity
	query := `SELECT failed_attempts, last_failed_at FROM users WHERE email = $1`
	if err := r.db.GetContext(ctx, &sec, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get account security %w", err)
	}

	return &sec, nil
}

// RecordLoginFailure атомарно увеличивает счётчик неудачных входов и
// обновляет время последней неудачи. Инкремент выражен на стороне базы,
// поэтому параллельные запросы не теряют попытки. Возвращает новое
// значение счётчика.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, email string) (int, error) {
	var count int
	query := `
		UPDATE users
		SET failed_attempts = failed_attempts + 1, last_failed_at = NOW()
		WHERE email = $1
		RETURNING failed_attempts
	`
	if err := r.db.QueryRowxContext(ctx, query, email).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("user repository: record login failure %w", err)
	}

	return count, nil
}

// RecordLoginSuccess сбрасывает счётчик неудачных входов и фиксирует
// метаданные успешного входа.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, email string, ip string) error {
	query := `
		UPDATE users
		SET failed_attempts = 0, last_failed_at = NULL,
		    last_login_at = NOW(), last_login_ip = $2
		WHERE email = $1
	`
	if _, err := r.db.ExecContext(ctx, query, email, ip); err != nil {
		return fmt.Errorf("user repository: record login success %w", err)
	}

	return nil
}

// ResetLoginFailures обнуляет счётчик без записи метаданных входа
// (используется после успешного сброса пароля).
func (r *UserRepository) ResetLoginFailures(ctx context.Context, email string) error {
	query := `UPDATE users SET failed_attempts = 0, last_failed_at = NULL WHERE email = $1`
	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("user repository: reset login failures %w", err)
	}

	return nil
}

// CreateSession сохраняет сессию пользователя.
func (r *UserRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (user_id, refresh_token, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		session.UserID, session.RefreshToken, session.UserAgent, session.IPAddress, session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt); err != nil {
		return fmt.Errorf("user repository: create session %w", err)
	}

	return nil
}

// DeleteSession удаляет сессию по refresh токену.
func (r *UserRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, refreshToken); err != nil {
		return fmt.Errorf("user repository: delete session %w", err)
	}
	return nil
}

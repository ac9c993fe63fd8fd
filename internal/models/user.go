package models

import (
	"time"

	"github.com/google/uuid"
)

// User описывает сущность пользователя социальной сети.
// PasswordHash может быть NULL у аккаунтов, созданных через внешнего
// провайдера — у таких пользователей нет локального пароля.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Username     string     `db:"username" json:"username"`
	PasswordHash *string    `db:"password_hash" json:"-"`
	Bio          *string    `db:"bio" json:"bio,omitempty"`
	AvatarID     *uuid.UUID `db:"avatar_id" json:"avatar_id,omitempty"`
	Birthday     *time.Time `db:"birthday" json:"birthday,omitempty"`
	Status       string     `db:"status" json:"status"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	LastLoginIP  *string    `db:"last_login_ip" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// AccountSecurity хранит состояние защиты аккаунта от перебора пароля.
// Поля живут в строке пользователя и изменяются только атомарными UPDATE
// на стороне базы, чтобы параллельные попытки входа не теряли инкременты.
type AccountSecurity struct {
	FailedAttempts int        `db:"failed_attempts"`
	LastFailedAt   *time.Time `db:"last_failed_at"`
}

// PublicProfile — публичное представление профиля со счётчиками.
type PublicProfile struct {
	ID             uuid.UUID  `json:"id"`
	Username       string     `json:"username"`
	Bio            *string    `json:"bio,omitempty"`
	AvatarID       *uuid.UUID `json:"avatar_id,omitempty"`
	PostCount      int        `json:"post_count"`
	FollowerCount  int        `json:"follower_count"`
	FollowingCount int        `json:"following_count"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Session представляет сохранённую сессию пользователя.
type Session struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	RefreshToken string    `db:"refresh_token" json:"refresh_token"`
	UserAgent    *string   `db:"user_agent" json:"user_agent,omitempty"`
	IPAddress    *string   `db:"ip_address" json:"ip_address,omitempty"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

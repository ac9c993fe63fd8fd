package models

import "time"

// Пространства одноразовых кодов. Код подтверждения email и код сброса
// пароля хранятся независимо: для одного адреса могут одновременно
// существовать оба, и действие над одним не затрагивает другой.
const (
	OtpNamespaceEmailVerification = "email_verification"
	OtpNamespacePasswordReset     = "password_reset"
)

// OneTimeCode — одноразовый код, привязанный к (namespace, email).
// На пару (namespace, email) существует не более одной строки: повторная
// выдача перезаписывает код и срок действия на месте.
type OneTimeCode struct {
	Namespace string    `db:"namespace" json:"-"`
	Email     string    `db:"email" json:"-"`
	Code      string    `db:"code" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Expired сообщает, истёк ли срок действия кода на момент now.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

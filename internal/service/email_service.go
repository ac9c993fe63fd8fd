package service

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"socialspace/internal/models"
)

// EmailService отправляет одноразовые коды по SMTP.
type EmailService struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailService создаёт SMTP отправитель.
func NewEmailService(host string, port int, user, password, from string) *EmailService {
	return &EmailService{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

// SendCode отправляет письмо с кодом. Тема и текст зависят от того,
// подтверждается email или сбрасывается пароль.
func (s *EmailService) SendCode(email, namespace, code string) error {
	subject := "Ваш код подтверждения"
	intro := "Мы получили запрос на подтверждение вашего email. Введите код ниже, чтобы продолжить:"
	if namespace == models.OtpNamespacePasswordReset {
		subject = "Код для сброса пароля"
		intro = "Мы получили запрос на сброс пароля. Введите код ниже, чтобы задать новый пароль:"
	}

	body := fmt.Sprintf(`
		<h2 style="color: #007bff;">%s</h2>
		<p>%s</p>
		<p style="font-size: 24px; letter-spacing: 4px;"><strong>%s</strong></p>
		<p>Код действует 10 минут.</p>
		<p>Если вы не запрашивали код, просто проигнорируйте это письмо.</p>
	`, subject, intro, code)

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("email service: send code %w", err)
	}

	return nil
}

package goroutine

import (
	"context"
	"runtime/debug"

	"socialspace/internal/logger"
)

// SafeGo запускает горутину с перехватом panic, чтобы фоновая отправка
// уведомления не могла уронить процесс.
func SafeGo(fn func()) {
	go func() {
		defer recoverPanic()
		fn()
	}()
}

// SafeGoWithContext — то же самое, но функция получает контекст.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer recoverPanic()
		fn(ctx)
	}()
}

func recoverPanic() {
	if r := recover(); r != nil {
		logger.WithComponent("goroutine").Errorf("panic в горутине: %v\n%s", r, debug.Stack())
	}
}

package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/recpipe/pkg/logging"
)

// Retry 指数退避重试
type Retry struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetry 3 次，首次等待 500ms
var DefaultRetry = Retry{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}

// Do 执行 fn，失败后按 BaseDelay 翻倍等待重试。熔断器打开时不再重试。
func (r Retry) Do(ctx context.Context, op string, fn func() error) error {
	attempts := max(r.MaxAttempts, 1)
	delay := r.BaseDelay

	var (
		lastErr error
		made    int
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		made = attempt
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, gobreaker.ErrOpenState) || errors.Is(lastErr, gobreaker.ErrTooManyRequests) {
			break
		}
		if attempt == attempts {
			break
		}

		logging.Warn().Err(lastErr).Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, made, lastErr)
}

package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/ddt-ledger/internal/domain"
	"github.com/jhoicas/ddt-ledger/pkg/logger"
)

// RetryPolicy reintentos acotados con backoff exponencial. Solo reintenta ConcurrencyConflict.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy 3 intentos, 50ms base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond}
}

// Do ejecuta fn hasta que no devuelva un error reintentable o se agoten los intentos.
func (p RetryPolicy) Do(ctx context.Context, log *logger.Logger, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay
	var err error
	for i := 1; i <= attempts; i++ {
		err = fn()
		if err == nil || !domain.IsRetryable(err) || i == attempts {
			return err
		}
		log.Warn().Err(err).Str("op", op).Int("attempt", i).Dur("backoff", delay).Msg("conflicto de concurrencia, reintentando")
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/metrics"
)

const defaultConflictRetries = 3

// retryOnConflict re-runs fn, which must re-read its state, while it fails
// with a version conflict. After the last attempt the conflict is returned.
func retryOnConflict(ctx context.Context, attempts int, op string, log *zap.Logger, fn func() error) error {
	if attempts < 1 {
		attempts = defaultConflictRetries
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); !errors.Is(err, apperr.ErrConflict) {
			return err
		}
		metrics.ConcurrencyConflicts.WithLabelValues(op).Inc()
		log.Debug("version conflict, retrying", zap.String("operation", op), zap.Int("attempt", i))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return apperr.Wrap(apperr.KindConflict, err, "%s lost %d consecutive version races, please retry", op, attempts)
}

// auxFailed records a secondary-store write that did not happen. The primary write stands.
func auxFailed(log *zap.Logger, sink string, err error, fields ...zap.Field) {
	metrics.AuxiliaryWriteFailures.WithLabelValues(sink).Inc()
	log.Warn("auxiliary write failed", append(fields, zap.String("sink", sink), zap.Error(err))...)
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

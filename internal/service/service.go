// Package service holds the request orchestration behind the HTTP routes:
// input validation, store and blob calls under bounded timeouts, and the
// mapping of their failures onto pkg/errors codes.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/wallshare/wallpaper-api/internal/metrics"
	"github.com/wallshare/wallpaper-api/internal/store"
	apperrors "github.com/wallshare/wallpaper-api/pkg/errors"
)

// Identity is the authenticated caller as bound by the authorization gate.
type Identity struct {
	UserID   string
	Username string
}

// storeCall bounds fn by timeout and records its duration. ErrNotFound is an
// answer, not a store failure.
func storeCall[T any](ctx context.Context, timeout time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	v, err := fn(ctx)
	metrics.RecordStoreOperation(op, err == nil || errors.Is(err, store.ErrNotFound), time.Since(start))
	return v, err
}

func storeExec(ctx context.Context, timeout time.Duration, op string, fn func(context.Context) error) error {
	_, err := storeCall(ctx, timeout, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func storeError(err error) *apperrors.AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewAppError(apperrors.CodeUpstreamTimeout, "Storage request timed out", err)
	}
	return apperrors.Internal(err)
}

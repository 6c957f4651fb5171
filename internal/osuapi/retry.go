package osuapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const (
	// maxAttempts bounds one logical profile lookup, first try included.
	maxAttempts = 3
	// retryDelay is a fixed pause between attempts; no backoff growth.
	retryDelay = 500 * time.Millisecond
)

// UserAPI is the lookup the retrying fetcher wraps.
type UserAPI interface {
	GetUser(ctx context.Context, name string) (*User, error)
}

// UserFetcher resolves profiles with a bounded retry budget. Exhaustion is
// not an error: Fetch returns nil and callers treat the profile as unknown.
type UserFetcher struct {
	api      UserAPI
	logger   *slog.Logger
	executor failsafe.Executor[*User]
}

// NewUserFetcher wraps api. A nil logger falls back to slog.Default().
func NewUserFetcher(api UserAPI, logger *slog.Logger) *UserFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	policy := retrypolicy.NewBuilder[*User]().
		WithMaxAttempts(maxAttempts).
		WithDelay(retryDelay).
		Build()
	return &UserFetcher{
		api:      api,
		logger:   logger,
		executor: failsafe.With(policy),
	}
}

// Fetch looks up a profile, retrying transient failures. Each failed attempt
// is logged with its cause; after the budget is spent the result is nil.
func (f *UserFetcher) Fetch(ctx context.Context, name string) *User {
	user, err := f.executor.WithContext(ctx).Get(func() (*User, error) {
		u, err := f.api.GetUser(ctx, name)
		if err != nil {
			f.logger.Warn("profile lookup failed", "user", name, "err", err)
		}
		return u, err
	})
	if err != nil {
		f.logger.Warn("profile lookup exhausted retries", "user", name, "err", err)
		return nil
	}
	return user
}

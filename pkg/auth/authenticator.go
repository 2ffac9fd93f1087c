package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/axle/pkg/identity"
	"github.com/platinummonkey/axle/pkg/observability"
)

// ErrBadCredentials is the generic authentication failure: unknown user,
// disabled user, missing local password, or password mismatch. Callers get no
// more detail than this.
var ErrBadCredentials = errors.New("auth: bad credentials")

// UserLookup is the slice of the user/group service the authenticator needs.
type UserLookup interface {
	GetUserByUsername(username string) (*identity.User, error)
}

// Authenticator validates local credentials against a user registry and runs
// every failure through the brute-force guard before returning.
type Authenticator struct {
	users   UserLookup
	encoder PasswordEncoder
	guard   *Guard
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAuthenticator creates an authenticator. metrics may be nil.
func NewAuthenticator(users UserLookup, encoder PasswordEncoder, guard *Guard, logger *observability.Logger, metrics *observability.Metrics) *Authenticator {
	return &Authenticator{users: users, encoder: encoder, guard: guard, logger: logger, metrics: metrics}
}

// Authenticate validates a username/password pair. On failure the caller is
// delayed by the brute-force guard; if the guard's waiter cap is reached the
// result is ErrTooManyConcurrentAttempts instead of ErrBadCredentials.
// remoteAddr is the caller's network address, used for whitelist matching.
func (a *Authenticator) Authenticate(ctx context.Context, username, password, remoteAddr string) (*identity.User, error) {
	user, err := a.users.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, a.fail(ctx, username, remoteAddr, "unknown_user")
		}
		return nil, fmt.Errorf("looking up user %q: %w", username, err)
	}
	if !user.Enabled {
		return nil, a.fail(ctx, username, remoteAddr, "disabled")
	}
	if !user.HasPassword() {
		// Externally authenticated principal: no local password to check.
		return nil, a.fail(ctx, username, remoteAddr, "no_local_password")
	}
	match, err := a.encoder.Matches(*user.Password, password)
	if err != nil {
		return nil, fmt.Errorf("verifying password for user %q: %w", username, err)
	}
	if !match {
		return nil, a.fail(ctx, username, remoteAddr, "bad_password")
	}
	if a.metrics != nil {
		a.metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	}
	return user, nil
}

// fail records the outcome, runs the brute-force guard, and maps the result
// to the caller-visible failure.
func (a *Authenticator) fail(ctx context.Context, username, remoteAddr, reason string) error {
	a.logger.WithFields(map[string]interface{}{
		"username":    username,
		"remote_addr": remoteAddr,
		"reason":      reason,
	}).Info("authentication failed")
	if err := a.guard.FailedLogin(remoteAddr); err != nil {
		if a.metrics != nil {
			a.metrics.AuthAttemptsTotal.WithLabelValues("rejected").Inc()
		}
		return err
	}
	if a.metrics != nil {
		a.metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
	}
	return ErrBadCredentials
}

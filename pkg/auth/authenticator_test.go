package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/axle/pkg/identity"
)

type staticUsers map[string]*identity.User

func (s staticUsers) GetUserByUsername(username string) (*identity.User, error) {
	user, ok := s[username]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return user, nil
}

func newTestAuthenticator(t *testing.T) (*Authenticator, *Guard) {
	t.Helper()
	enc, err := NewEncoder(EncoderPlain, nil)
	require.NoError(t, err)

	alice := identity.NewUser("alice")
	encoded, err := enc.Encode("correct horse")
	require.NoError(t, err)
	alice.SetPassword(encoded)

	disabled := identity.NewUser("mallory")
	disabled.Enabled = false
	encodedMallory, err := enc.Encode("whatever")
	require.NoError(t, err)
	disabled.SetPassword(encodedMallory)

	external := identity.NewUser("svc-external")

	guard := NewGuard(GuardConfig{
		Enabled:           true,
		MinDelay:          time.Millisecond,
		MaxDelay:          time.Millisecond,
		MaxBlockedThreads: 10,
	}, testLogger(), nil)

	users := staticUsers{
		"alice":        alice,
		"mallory":      disabled,
		"svc-external": external,
	}
	return NewAuthenticator(users, enc, guard, testLogger(), nil), guard
}

func TestAuthenticate_Success(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	user, err := a.Authenticate(context.Background(), "alice", "correct horse", "203.0.113.7:1234")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestAuthenticate_Failures(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"unknown user", "nobody", "correct horse"},
		{"wrong password", "alice", "incorrect horse"},
		{"disabled user", "mallory", "whatever"},
		{"no local password", "svc-external", "anything"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := a.Authenticate(ctx, tt.username, tt.password, "203.0.113.7:1234")
			assert.Nil(t, user)
			// Every failure mode collapses to the same caller-visible error.
			assert.ErrorIs(t, err, ErrBadCredentials)
		})
	}
}

func TestAuthenticate_FailureRunsGuard(t *testing.T) {
	a, guard := newTestAuthenticator(t)
	delayed := false
	guard.sleep = func(time.Duration) { delayed = true }

	_, err := a.Authenticate(context.Background(), "alice", "incorrect horse", "203.0.113.7:1234")
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.True(t, delayed, "failed attempt must pass through the guard")
}

func TestAuthenticate_SuccessSkipsGuard(t *testing.T) {
	a, guard := newTestAuthenticator(t)
	guard.sleep = func(time.Duration) { t.Fatal("successful attempt must not be delayed") }

	_, err := a.Authenticate(context.Background(), "alice", "correct horse", "203.0.113.7:1234")
	require.NoError(t, err)
}

func TestAuthenticate_GuardRejectionSurfaces(t *testing.T) {
	a, guard := newTestAuthenticator(t)

	// Park one waiter to saturate a cap of one.
	guard.cfg.MaxBlockedThreads = 1
	release := make(chan struct{})
	guard.sleep = func(time.Duration) { <-release }

	errs := make(chan error, 1)
	go func() {
		_, err := a.Authenticate(context.Background(), "alice", "incorrect horse", "203.0.113.7:1234")
		errs <- err
	}()
	require.Eventually(t, func() bool {
		return guard.Waiting() == 1
	}, 5*time.Second, time.Millisecond)

	_, err := a.Authenticate(context.Background(), "alice", "incorrect horse", "203.0.113.7:5678")
	assert.ErrorIs(t, err, ErrTooManyConcurrentAttempts)

	close(release)
	assert.ErrorIs(t, <-errs, ErrBadCredentials)
}

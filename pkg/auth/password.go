package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/axle/pkg/observability"
)

// Encoder names selectable via registry configuration.
const (
	EncoderPlain  = "plain"
	EncoderDigest = "digest"
	EncoderEmpty  = "empty"
)

const (
	plainPrefix  = "plain:"
	digestPrefix = "digest1:"

	// verifyCacheSize bounds the verified-credential cache in front of the
	// digest encoder.
	verifyCacheSize = 1000
)

// PasswordEncoder encodes local passwords for storage and verifies candidate
// passwords against stored forms.
type PasswordEncoder interface {
	// Name is the configuration name of the encoder.
	Name() string
	// Encode returns the storable form of a plaintext password.
	Encode(plain string) (string, error)
	// Matches verifies a candidate password against a stored form.
	Matches(encoded, plain string) (bool, error)
}

// NewEncoder returns the encoder registered under name. metrics may be nil
// and is only used by the digest encoder's verification cache.
func NewEncoder(name string, metrics *observability.Metrics) (PasswordEncoder, error) {
	switch name {
	case EncoderPlain:
		return plainEncoder{}, nil
	case EncoderDigest:
		return newDigestEncoder(metrics)
	case EncoderEmpty:
		return emptyEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown password encoder %q", name)
	}
}

// plainEncoder stores passwords reversibly with a marker prefix. Intended for
// test fixtures and migration, not production registries.
type plainEncoder struct{}

func (plainEncoder) Name() string { return EncoderPlain }

func (plainEncoder) Encode(plain string) (string, error) {
	return plainPrefix + plain, nil
}

func (plainEncoder) Matches(encoded, plain string) (bool, error) {
	stored, ok := strings.CutPrefix(encoded, plainPrefix)
	if !ok {
		return false, fmt.Errorf("stored password is not in plain format")
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1, nil
}

// digestEncoder stores bcrypt digests. Verification results are cached in a
// bounded LRU keyed by a hash of (stored form, candidate), so repeated logins
// of the same principal skip the bcrypt cost.
type digestEncoder struct {
	cache   *lru.Cache[string, bool]
	metrics *observability.Metrics
}

func newDigestEncoder(metrics *observability.Metrics) (*digestEncoder, error) {
	cache, err := lru.New[string, bool](verifyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential cache: %w", err)
	}
	return &digestEncoder{cache: cache, metrics: metrics}, nil
}

func (*digestEncoder) Name() string { return EncoderDigest }

func (e *digestEncoder) Encode(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to digest password: %w", err)
	}
	return digestPrefix + string(hash), nil
}

func (e *digestEncoder) Matches(encoded, plain string) (bool, error) {
	stored, ok := strings.CutPrefix(encoded, digestPrefix)
	if !ok {
		return false, fmt.Errorf("stored password is not in digest format")
	}

	key := cacheKey(stored, plain)
	if match, ok := e.cache.Get(key); ok {
		if e.metrics != nil {
			e.metrics.PasswordCacheHitsTotal.Inc()
		}
		return match, nil
	}
	if e.metrics != nil {
		e.metrics.PasswordCacheMissTotal.Inc()
	}

	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain))
	switch {
	case err == nil:
		e.cache.Add(key, true)
		return true, nil
	case err == bcrypt.ErrMismatchedHashAndPassword:
		e.cache.Add(key, false)
		return false, nil
	default:
		return false, fmt.Errorf("failed to verify password digest: %w", err)
	}
}

func cacheKey(stored, plain string) string {
	sum := sha256.Sum256([]byte(stored + "\x00" + plain))
	return hex.EncodeToString(sum[:])
}

// emptyEncoder is for registries whose users authenticate externally and
// carry no usable local password. Nothing ever matches.
type emptyEncoder struct{}

func (emptyEncoder) Name() string { return EncoderEmpty }

func (emptyEncoder) Encode(plain string) (string, error) {
	return "", nil
}

func (emptyEncoder) Matches(encoded, plain string) (bool, error) {
	return false, nil
}

// PasswordPolicy constrains candidate passwords on user creation and update.
type PasswordPolicy struct {
	MinLength        int
	RequireDigit     bool
	RequireUppercase bool
}

// DefaultPasswordPolicy returns the stock policy: at least eight characters,
// no composition requirements.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8}
}

// Validate checks a candidate password against the policy.
func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters", p.MinLength)
	}
	if p.RequireDigit && !strings.ContainsFunc(password, unicode.IsDigit) {
		return fmt.Errorf("password must contain a digit")
	}
	if p.RequireUppercase && !strings.ContainsFunc(password, unicode.IsUpper) {
		return fmt.Errorf("password must contain an uppercase letter")
	}
	return nil
}

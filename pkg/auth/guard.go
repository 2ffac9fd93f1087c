package auth

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/axle/pkg/observability"
)

// ErrTooManyConcurrentAttempts is returned when the brute-force guard's
// waiter cap is reached. It is a distinct authentication failure so operators
// can alert on it separately from plain bad credentials.
var ErrTooManyConcurrentAttempts = errors.New("auth: too many concurrent failed login attempts")

// GuardConfig configures the brute-force prevention guard.
type GuardConfig struct {
	// Enabled turns the guard on. A disabled guard imposes no delay.
	Enabled bool
	// MinDelay and MaxDelay bound the uniform random delay drawn per
	// failure.
	MinDelay time.Duration
	MaxDelay time.Duration
	// MaxBlockedThreads caps how many callers may be concurrently delayed.
	// Callers beyond the cap are rejected immediately instead of queued,
	// so the guard cannot itself be used to exhaust the server.
	MaxBlockedThreads int
	// Whitelist exempts matching source networks from the delay.
	Whitelist []netip.Prefix
}

// DefaultGuardConfig returns the guard defaults: enabled, one to five second
// delays, at most 100 concurrently delayed callers, loopback exempted.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Enabled:           true,
		MinDelay:          time.Second,
		MaxDelay:          5 * time.Second,
		MaxBlockedThreads: 100,
		Whitelist: []netip.Prefix{
			netip.MustParsePrefix("127.0.0.0/8"),
			netip.MustParsePrefix("::1/128"),
		},
	}
}

// Validate checks the configuration for consistency.
func (c GuardConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MinDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("brute-force delays must not be negative")
	}
	if c.MaxDelay < c.MinDelay {
		return fmt.Errorf("brute-force max delay %s is less than min delay %s", c.MaxDelay, c.MinDelay)
	}
	if c.MaxBlockedThreads <= 0 {
		return fmt.Errorf("brute-force max blocked threads must be positive")
	}
	return nil
}

// Guard is the process-wide brute-force prevention gate. On authentication
// failure for a non-whitelisted caller it blocks the calling goroutine for a
// random delay within the configured range, bounding the number of
// concurrently delayed callers. Admitted delays always run to completion;
// cancellation is deliberately unsupported.
type Guard struct {
	cfg     GuardConfig
	waiting atomic.Int32
	logger  *observability.Logger
	metrics *observability.Metrics

	// sleep is swapped in tests.
	sleep func(time.Duration)
}

// NewGuard creates a guard. metrics may be nil.
func NewGuard(cfg GuardConfig, logger *observability.Logger, metrics *observability.Metrics) *Guard {
	return &Guard{cfg: cfg, logger: logger, metrics: metrics, sleep: time.Sleep}
}

// FailedLogin registers a failed authentication attempt from remoteAddr and
// imposes the configured delay. It returns ErrTooManyConcurrentAttempts when
// the waiter cap is reached, and nil once the delay has elapsed (or no delay
// applies); the caller then returns its original authentication failure.
func (g *Guard) FailedLogin(remoteAddr string) error {
	if !g.cfg.Enabled {
		return nil
	}
	if g.whitelisted(remoteAddr) {
		return nil
	}

	for {
		waiting := g.waiting.Load()
		if int(waiting) >= g.cfg.MaxBlockedThreads {
			if g.metrics != nil {
				g.metrics.BruteForceRejectsTotal.Inc()
			}
			g.logger.WithField("remote_addr", remoteAddr).Warn("brute-force waiter cap reached, rejecting attempt")
			return ErrTooManyConcurrentAttempts
		}
		if g.waiting.CompareAndSwap(waiting, waiting+1) {
			break
		}
	}
	if g.metrics != nil {
		g.metrics.BruteForceDelaysTotal.Inc()
		g.metrics.BruteForceWaiters.Inc()
	}

	g.sleep(g.drawDelay())

	g.waiting.Add(-1)
	if g.metrics != nil {
		g.metrics.BruteForceWaiters.Dec()
	}
	return nil
}

// Waiting returns the number of currently delayed callers.
func (g *Guard) Waiting() int {
	return int(g.waiting.Load())
}

// drawDelay picks a uniform random delay from [MinDelay, MaxDelay].
func (g *Guard) drawDelay() time.Duration {
	if g.cfg.MaxDelay <= g.cfg.MinDelay {
		return g.cfg.MinDelay
	}
	return g.cfg.MinDelay + rand.N(g.cfg.MaxDelay-g.cfg.MinDelay)
}

// whitelisted reports whether the remote address falls in an exempted
// network. Unparseable addresses are not exempted.
func (g *Guard) whitelisted(remoteAddr string) bool {
	addr, err := parseRemoteAddr(remoteAddr)
	if err != nil {
		return false
	}
	for _, prefix := range g.cfg.Whitelist {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// parseRemoteAddr accepts both bare IPs and host:port forms.
func parseRemoteAddr(remoteAddr string) (netip.Addr, error) {
	if addrPort, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return addrPort.Addr(), nil
	}
	return netip.ParseAddr(remoteAddr)
}

// ParseWhitelist parses a list of CIDR masks into prefixes. Bare IPs are
// accepted as single-address masks.
func ParseWhitelist(masks []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(masks))
	for _, mask := range masks {
		if prefix, err := netip.ParsePrefix(mask); err == nil {
			prefixes = append(prefixes, prefix)
			continue
		}
		addr, err := netip.ParseAddr(mask)
		if err != nil {
			return nil, fmt.Errorf("invalid whitelist mask %q", mask)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

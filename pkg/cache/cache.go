package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/spoke-auth-bitbucket/pkg/async"
	"github.com/platinummonkey/spoke-auth-bitbucket/pkg/observability"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTTL is how long a resolved authorization is reused
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultSweepInterval is the minimum time between two expiry sweeps
	DefaultSweepInterval = time.Hour

	sweepTimeout = time.Minute
)

// Options configures a CredentialCache
type Options struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Hasher        Hasher
	Logger        *logrus.Logger
	Metrics       *observability.Metrics
	Now           func() time.Time
}

// CredentialCache maps usernames to verified, filtered team lists
type CredentialCache struct {
	store         Store
	hasher        Hasher
	ttl           time.Duration
	sweepInterval time.Duration
	log           *logrus.Logger
	metrics       *observability.Metrics
	now           func() time.Time

	lastSweep atomic.Int64
}

// New wraps store. A nil Hasher selects bcrypt with the default cost.
func New(store Store, opts Options) *CredentialCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Hasher == nil {
		opts.Hasher = NewBcryptHasher(0)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &CredentialCache{
		store:         store,
		hasher:        opts.Hasher,
		ttl:           opts.TTL,
		sweepInterval: opts.SweepInterval,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		now:           opts.Now,
	}
	c.lastSweep.Store(c.now().UnixNano())
	return c
}

// TTL returns the lifetime of stored entries
func (c *CredentialCache) TTL() time.Duration {
	return c.ttl
}

// Lookup returns the unexpired entry for username. Backend errors are logged
// and reported as a miss.
func (c *CredentialCache) Lookup(ctx context.Context, username string) (*Entry, bool) {
	c.maybeSweep()

	entry, err := c.store.Get(ctx, username)
	if err != nil {
		c.fail("get", username, err)
		c.metrics.RecordCacheLookup("error")
		return nil, false
	}
	if entry == nil {
		c.metrics.RecordCacheLookup("miss")
		return nil, false
	}

	if entry.Expired(c.now()) {
		c.metrics.RecordCacheLookup("expired")
		if err := c.store.Delete(ctx, username); err != nil {
			c.fail("delete", username, err)
		}
		return nil, false
	}

	return entry, true
}

// Verify checks secret against the entry's credential proof
func (c *CredentialCache) Verify(entry *Entry, secret string) bool {
	if entry == nil {
		return false
	}
	if !c.hasher.Verify(entry.Proof, secret) {
		c.metrics.RecordCacheLookup("mismatch")
		return false
	}
	c.metrics.RecordCacheLookup("hit")
	return true
}

// Store records teams for username, replacing any previous entry. The
// returned error has already been logged.
func (c *CredentialCache) Store(ctx context.Context, username, secret string, teams []string) error {
	c.maybeSweep()

	proof, err := c.hasher.Hash(secret)
	if err != nil {
		return c.fail("hash", username, err)
	}

	if teams == nil {
		teams = []string{}
	}
	entry := &Entry{
		Proof:     proof,
		Teams:     teams,
		ExpiresAt: c.now().Add(c.ttl),
	}

	if err := c.store.Set(ctx, username, entry, c.ttl); err != nil {
		return c.fail("set", username, err)
	}
	return nil
}

// Clear drops every entry
func (c *CredentialCache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return c.fail("clear", "", err)
	}
	c.lastSweep.Store(c.now().UnixNano())
	return nil
}

// Ping checks the backend when it is remote; in-process stores are always reachable
func (c *CredentialCache) Ping(ctx context.Context) error {
	pinger, ok := c.store.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	if err := pinger.Ping(ctx); err != nil {
		return &CacheError{Op: "ping", Err: fmt.Errorf("%w: %v", ErrCacheUnavailable, err)}
	}
	return nil
}

// Close releases the backend
func (c *CredentialCache) Close() error {
	return c.store.Close()
}

// Sweep synchronously evicts expired entries from stores that need it
func (c *CredentialCache) Sweep() int {
	sweeper, ok := c.store.(Sweeper)
	if !ok {
		return 0
	}
	removed := sweeper.Sweep(c.now())
	if removed > 0 {
		c.log.WithField("removed", removed).Debug("Swept expired credential cache entries")
	}
	return removed
}

// maybeSweep starts a background sweep when the sweep interval has elapsed.
// At most one caller wins the compare-and-swap per interval.
func (c *CredentialCache) maybeSweep() {
	if _, ok := c.store.(Sweeper); !ok {
		return
	}

	now := c.now().UnixNano()
	last := c.lastSweep.Load()
	if now-last < int64(c.sweepInterval) {
		return
	}
	if !c.lastSweep.CompareAndSwap(last, now) {
		return
	}

	async.SafeGoNoError(context.Background(), c.log, sweepTimeout, "credential cache sweep", func(ctx context.Context) {
		c.Sweep()
	})
}

func (c *CredentialCache) fail(op, username string, err error) error {
	cacheErr := &CacheError{Op: op, Key: username, Err: err}
	c.metrics.RecordCacheError(op)
	c.log.WithFields(logrus.Fields{
		"op":       op,
		"username": username,
	}).WithError(err).Warn("Credential cache operation failed")
	return cacheErr
}

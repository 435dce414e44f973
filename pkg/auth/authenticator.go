package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/platinummonkey/spoke-auth-bitbucket/pkg/allow"
	"github.com/platinummonkey/spoke-auth-bitbucket/pkg/bitbucket"
	"github.com/platinummonkey/spoke-auth-bitbucket/pkg/cache"
	"github.com/platinummonkey/spoke-auth-bitbucket/pkg/config"
	"github.com/platinummonkey/spoke-auth-bitbucket/pkg/observability"
	"github.com/sirupsen/logrus"
)

// Directory resolves the teams a set of credentials belongs to
type Directory interface {
	Privileges(ctx context.Context, cred bitbucket.Credentials) (*bitbucket.PrivilegeMap, error)
}

// Option customizes an Authenticator
type Option func(*options)

type options struct {
	logger    *logrus.Logger
	metrics   *observability.Metrics
	directory Directory
	store     cache.Store
	now       func() time.Time
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics collectors
func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithDirectory replaces the Bitbucket client
func WithDirectory(directory Directory) Option {
	return func(o *options) {
		o.directory = directory
	}
}

// WithStore supplies the cache backend. Caching is enabled even when the
// configured engine is disabled. WithClock does not reach a supplied store;
// build it with the same clock.
func WithStore(store cache.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Authenticator resolves and authorizes Bitbucket users
type Authenticator struct {
	allow      *allow.Table
	directory  Directory
	cache      *cache.CredentialCache
	mailDomain string
	addUser    string
	health     *observability.HealthChecker
	log        *logrus.Logger
	metrics    *observability.Metrics
}

// New builds an Authenticator from a configuration. All errors are
// configuration errors and should abort startup.
func New(cfg *config.AuthConfig, opts ...Option) (*Authenticator, error) {
	if cfg == nil {
		return nil, &config.ConfigError{Field: "auth", Message: "configuration is required"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logrus.New()
	}
	if o.now == nil {
		o.now = time.Now
	}

	table, err := allow.Parse(cfg.Allow)
	if err != nil {
		return nil, &config.ConfigError{Field: "allow", Message: "failed to parse allow list", Err: err}
	}

	directory := o.directory
	if directory == nil {
		directory = bitbucket.NewClient(bitbucket.Options{
			BaseURL: cfg.Bitbucket.BaseURL,
			PageLen: cfg.Bitbucket.PageLen,
			Timeout: cfg.Bitbucket.Timeout,
			Logger:  o.logger,
			Metrics: o.metrics,
		})
	}

	credentials, err := newCredentialCache(cfg, o)
	if err != nil {
		return nil, err
	}
	if o.store == nil && cfg.CacheEngine() == config.CacheRedis && !cfg.HashPasswords() {
		o.logger.WithField("cache", cfg.CacheEngine()).
			Warn("hashPassword is disabled: plaintext passwords will be stored in the shared Redis cache")
	}

	a := &Authenticator{
		allow:      table,
		directory:  directory,
		cache:      credentials,
		mailDomain: cfg.DefaultMailDomain,
		addUser:    cfg.AddUserPolicy(),
		health:     observability.NewHealthChecker(),
		log:        o.logger,
		metrics:    o.metrics,
	}
	if pinger, ok := directory.(observability.Pinger); ok {
		a.health.Register("bitbucket", pinger, true)
	}
	if credentials != nil {
		a.health.Register("cache", credentials, false)
	}

	a.log.WithFields(logrus.Fields{
		"allow": table.String(),
		"cache": cacheEngine(cfg, o),
		"ttl":   cfg.TTLDuration(),
	}).Info("Bitbucket authentication initialized")

	return a, nil
}

func cacheEngine(cfg *config.AuthConfig, o *options) string {
	if o.store != nil {
		return "custom"
	}
	return cfg.CacheEngine()
}

func newCredentialCache(cfg *config.AuthConfig, o *options) (*cache.CredentialCache, error) {
	store := o.store
	if store == nil {
		var err error
		switch cfg.CacheEngine() {
		case config.CacheInMemory:
			store, err = cache.NewMemoryStore(cache.MemoryOptions{
				MaxEntries: cfg.Memory.MaxEntries,
				Metrics:    o.metrics,
				Now:        o.now,
			})
		case config.CacheRedis:
			store, err = cache.NewRedisStore(cache.RedisOptions{
				URL:        cfg.Redis.URL,
				Addr:       cfg.Redis.Addr(),
				Password:   cfg.Redis.Password,
				DB:         cfg.Redis.DB,
				KeyPrefix:  cfg.Redis.KeyPrefix,
				PoolSize:   cfg.Redis.PoolSize,
				MaxRetries: cfg.Redis.MaxRetries,
			})
		default:
			return nil, nil
		}
		if err != nil {
			return nil, &config.ConfigError{Field: "cache", Message: "failed to create cache backend", Err: err}
		}
	}

	var hasher cache.Hasher = cache.PlainHasher{}
	if cfg.HashPasswords() {
		hasher = cache.NewBcryptHasher(cfg.BcryptCost)
	}

	return cache.New(store, cache.Options{
		TTL:           cfg.TTLDuration(),
		SweepInterval: cfg.Memory.SweepInterval,
		Hasher:        hasher,
		Logger:        o.logger,
		Metrics:       o.metrics,
		Now:           o.now,
	}), nil
}

// Authenticate returns the allowed teams of the user. A verified cache hit
// is returned as stored, without consulting Bitbucket or the allow table.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) ([]string, error) {
	if username == "" || password == "" {
		a.metrics.RecordAuth("rejected")
		return nil, ErrMissingCredentials
	}

	if a.cache != nil {
		if entry, ok := a.cache.Lookup(ctx, username); ok && a.cache.Verify(entry, password) {
			a.metrics.RecordAuth("cached")
			return entry.Teams, nil
		}
	}

	privileges, err := a.directory.Privileges(ctx, bitbucket.Credentials{
		Username: a.NormalizeUsername(username),
		Password: password,
	})
	if err != nil {
		a.logUpstreamError(ctx, username, err)
		a.metrics.RecordAuth("error")
		return nil, err
	}

	teams := a.allow.Filter(privileges)

	if a.cache != nil {
		// failures are logged by the cache and never fail authentication
		_ = a.cache.Store(ctx, username, password, teams)
	}

	if len(teams) == 0 {
		a.metrics.RecordAuth("denied")
		a.log.WithField("username", username).Debug("User is not a member of any allowed team")
	} else {
		a.metrics.RecordAuth("accepted")
	}

	return teams, nil
}

// AddUser handles a registration attempt. Accounts live on Bitbucket, so the
// authenticate policy only checks that the credentials are valid there.
func (a *Authenticator) AddUser(ctx context.Context, username, password string) error {
	if a.addUser == config.AddUserReject {
		return ErrAddUserNotSupported
	}
	_, err := a.Authenticate(ctx, username, password)
	return err
}

// NormalizeUsername turns a registry username into the Bitbucket login.
// Email addresses cannot be registry usernames, so "local..domain" stands
// for "local@domain"; the last ".." is the separator.
func (a *Authenticator) NormalizeUsername(username string) string {
	if pos := strings.LastIndex(username, ".."); pos != -1 {
		return username[:pos] + "@" + username[pos+2:]
	}
	if a.mailDomain != "" {
		return username + "@" + a.mailDomain
	}
	return username
}

// ClearCache drops every cached authorization
func (a *Authenticator) ClearCache(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Clear(ctx)
}

// Health pings Bitbucket and, when configured, the cache backend. The cache
// is optional: authentication keeps working without it.
func (a *Authenticator) Health(ctx context.Context) observability.HealthStatus {
	return a.health.Check(ctx)
}

// HealthChecker exposes the checker so hosts can mount its Readiness handler
func (a *Authenticator) HealthChecker() *observability.HealthChecker {
	return a.health
}

// Close releases the cache backend
func (a *Authenticator) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}

func (a *Authenticator) logUpstreamError(ctx context.Context, username string, err error) {
	fields := observability.TraceFields(ctx)
	fields["username"] = username

	var upstreamErr *bitbucket.UpstreamError
	if errors.As(err, &upstreamErr) {
		fields["code"] = upstreamErr.Code
		fields["status"] = upstreamErr.StatusCode
	}

	a.log.WithFields(fields).WithError(err).Warn("Bitbucket API adaptor error")
}

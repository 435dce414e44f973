package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Cache engines
const (
	CacheDisabled = "disabled"
	CacheInMemory = "in-memory"
	CacheRedis    = "redis"
	// CacheExternal is accepted as an alias of CacheRedis
	CacheExternal = "external"
)

// AddUser policies
const (
	AddUserAuthenticate = "authenticate"
	AddUserReject       = "reject"
)

// DefaultTTL is the default cache lifetime in seconds (7 days)
const DefaultTTL = 7 * 24 * 60 * 60

// AuthConfig holds the adaptor configuration
type AuthConfig struct {
	// Allow is the team allow-list, e.g. "foo, bar(owner|member)"
	Allow string `yaml:"allow"`

	// Cache selects the credential cache backend
	Cache string `yaml:"cache"`
	// TTL is the cache lifetime in seconds
	TTL int `yaml:"ttl"`
	// HashPassword selects bcrypt proofs (default) over plaintext comparison
	HashPassword *bool `yaml:"hashPassword"`
	BcryptCost   int   `yaml:"bcryptCost"`

	DefaultMailDomain string `yaml:"defaultMailDomain"`
	AddUser           string `yaml:"addUser"`
	LogLevel          string `yaml:"logLevel"`

	Redis     *RedisConfig    `yaml:"redis"`
	Memory    MemoryConfig    `yaml:"memory"`
	Bitbucket BitbucketConfig `yaml:"bitbucket"`
}

// RedisConfig holds the external cache connection settings
type RedisConfig struct {
	URL        string `yaml:"url"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	KeyPrefix  string `yaml:"keyPrefix"`
	PoolSize   int    `yaml:"poolSize"`
	MaxRetries int    `yaml:"maxRetries"`
}

// MemoryConfig holds the in-process cache settings
type MemoryConfig struct {
	MaxEntries    int           `yaml:"maxEntries"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// BitbucketConfig holds the upstream API settings
type BitbucketConfig struct {
	BaseURL string        `yaml:"baseURL"`
	PageLen int           `yaml:"pageLen"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns a configuration with every optional value at its default
func Default() *AuthConfig {
	return &AuthConfig{
		Cache:    CacheDisabled,
		TTL:      DefaultTTL,
		AddUser:  AddUserAuthenticate,
		LogLevel: "info",
		Memory: MemoryConfig{
			MaxEntries:    10000,
			SweepInterval: time.Hour,
		},
		Bitbucket: BitbucketConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// LoadFile reads a YAML file, applies environment overrides and validates
func LoadFile(path string) (*AuthConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults, applies environment overrides and validates
func Parse(data []byte) (*AuthConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Field: "file", Message: "failed to parse YAML", Err: err}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv builds a configuration from environment variables only
func LoadEnv() (*AuthConfig, error) {
	cfg := Default()
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides values from SPOKE_AUTH_* environment variables
func (c *AuthConfig) ApplyEnv() {
	c.Allow = getEnv("SPOKE_AUTH_ALLOW", c.Allow)
	c.Cache = getEnv("SPOKE_AUTH_CACHE", c.Cache)
	c.TTL = getEnvInt("SPOKE_AUTH_TTL", c.TTL)
	c.BcryptCost = getEnvInt("SPOKE_AUTH_BCRYPT_COST", c.BcryptCost)
	c.DefaultMailDomain = getEnv("SPOKE_AUTH_DEFAULT_MAIL_DOMAIN", c.DefaultMailDomain)
	c.AddUser = getEnv("SPOKE_AUTH_ADD_USER", c.AddUser)
	c.LogLevel = getEnv("SPOKE_AUTH_LOG_LEVEL", c.LogLevel)

	if value := os.Getenv("SPOKE_AUTH_HASH_PASSWORD"); value != "" {
		hash := getEnvBool("SPOKE_AUTH_HASH_PASSWORD", true)
		c.HashPassword = &hash
	}

	if redisURL := getEnv("SPOKE_AUTH_REDIS_URL", ""); redisURL != "" {
		if c.Redis == nil {
			c.Redis = &RedisConfig{}
		}
		c.Redis.URL = redisURL
	}
	if redisPassword := getEnv("SPOKE_AUTH_REDIS_PASSWORD", ""); redisPassword != "" && c.Redis != nil {
		c.Redis.Password = redisPassword
	}

	c.Memory.MaxEntries = getEnvInt("SPOKE_AUTH_MEMORY_MAX_ENTRIES", c.Memory.MaxEntries)
	c.Memory.SweepInterval = getEnvDuration("SPOKE_AUTH_MEMORY_SWEEP_INTERVAL", c.Memory.SweepInterval)

	c.Bitbucket.BaseURL = getEnv("SPOKE_AUTH_BITBUCKET_URL", c.Bitbucket.BaseURL)
	c.Bitbucket.Timeout = getEnvDuration("SPOKE_AUTH_BITBUCKET_TIMEOUT", c.Bitbucket.Timeout)
}

// Validate checks the configuration; every failure is a *ConfigError
func (c *AuthConfig) Validate() error {
	if strings.TrimSpace(c.Allow) == "" {
		return &ConfigError{Field: "allow", Message: "at least one team is required"}
	}

	switch c.CacheEngine() {
	case CacheDisabled, CacheInMemory:
	case CacheRedis:
		if c.Redis == nil || (c.Redis.URL == "" && c.Redis.Host == "") {
			return &ConfigError{Field: "redis", Message: "can't find Redis configuration"}
		}
	default:
		return &ConfigError{
			Field:   "cache",
			Message: fmt.Sprintf("invalid cache engine %q, please use one of: %s, %s, %s", c.Cache, CacheDisabled, CacheInMemory, CacheRedis),
		}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "ttl", Message: "must be a positive number of seconds"}
	}

	switch c.AddUser {
	case "", AddUserAuthenticate, AddUserReject:
	default:
		return &ConfigError{Field: "addUser", Message: fmt.Sprintf("unknown policy %q, please use %s or %s", c.AddUser, AddUserAuthenticate, AddUserReject)}
	}

	if c.BcryptCost != 0 && (c.BcryptCost < 4 || c.BcryptCost > 31) {
		return &ConfigError{Field: "bcryptCost", Message: "must be between 4 and 31"}
	}

	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return &ConfigError{Field: "logLevel", Message: "unknown level", Err: err}
		}
	}

	if c.Bitbucket.Timeout < 0 {
		return &ConfigError{Field: "bitbucket.timeout", Message: "must not be negative"}
	}

	return nil
}

// CacheEngine returns the normalized cache engine name
func (c *AuthConfig) CacheEngine() string {
	switch strings.ToLower(strings.TrimSpace(c.Cache)) {
	case "", "false", CacheDisabled:
		return CacheDisabled
	case CacheRedis, CacheExternal:
		return CacheRedis
	case CacheInMemory:
		return CacheInMemory
	default:
		return c.Cache
	}
}

// TTLDuration returns the cache lifetime
func (c *AuthConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// HashPasswords reports whether credential proofs are bcrypt hashes
func (c *AuthConfig) HashPasswords() bool {
	return c.HashPassword == nil || *c.HashPassword
}

// AddUserPolicy returns the add-user policy, defaulting to authenticate
func (c *AuthConfig) AddUserPolicy() string {
	if c.AddUser == "" {
		return AddUserAuthenticate
	}
	return c.AddUser
}

// Addr returns host:port, defaulting the port to 6379
func (r *RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	port := r.Port
	if port == 0 {
		port = 6379
	}
	return net.JoinHostPort(r.Host, strconv.Itoa(port))
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Package config loads and validates the configuration of the Bitbucket
// authentication adaptor.
//
// # Configuration Structure
//
// The adaptor reads the `auth.bitbucket` block of the registry configuration,
// either from YAML or from environment variables:
//
//	allow: "platform, backend(owner|collaborator)"
//	cache: in-memory          # disabled (default), in-memory, redis
//	ttl: 604800               # seconds, default 7 days
//	hashPassword: true        # bcrypt credential proofs (default)
//	defaultMailDomain: example.com
//	addUser: authenticate     # authenticate (default) or reject
//	redis:
//	  host: localhost
//	  port: 6379
//	memory:
//	  maxEntries: 10000
//	  sweepInterval: 1h
//	bitbucket:
//	  timeout: 10s
//
// Environment overrides:
//
//	SPOKE_AUTH_ALLOW="platform"
//	SPOKE_AUTH_CACHE="redis"
//	SPOKE_AUTH_TTL="86400"
//	SPOKE_AUTH_HASH_PASSWORD="false"
//	SPOKE_AUTH_DEFAULT_MAIL_DOMAIN="example.com"
//	SPOKE_AUTH_ADD_USER="reject"
//	SPOKE_AUTH_REDIS_URL="redis://localhost:6379/0"
//	SPOKE_AUTH_REDIS_PASSWORD="secret"
//	SPOKE_AUTH_BITBUCKET_URL="https://api.bitbucket.org/2.0"
//	SPOKE_AUTH_BITBUCKET_TIMEOUT="5s"
//	SPOKE_AUTH_LOG_LEVEL="info"
//
// # Usage Example
//
//	cfg, err := config.LoadFile("/etc/spoke/auth.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Every validation failure is a *ConfigError and is meant to abort startup.
package config

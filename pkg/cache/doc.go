// Package cache remembers recent successful Bitbucket resolutions so that
// repeated logins with the same credentials do not hit the Bitbucket API.
//
// # Overview
//
// A CredentialCache stores, per username, a credential proof (a bcrypt hash
// or the plaintext password, depending on the Hasher), the already filtered
// team list and an expiry time. A lookup only counts as a hit when the entry
// is unexpired and the supplied password verifies against the proof, so a
// password change always forces a fresh resolution.
//
// # Backends
//
// MemoryStore: in-process, bounded by an LRU capacity and swept for expired
// entries at most once per sweep interval. Sweeps are triggered by regular
// traffic; there is no background ticker.
//
//	store, _ := cache.NewMemoryStore(cache.MemoryOptions{MaxEntries: 10000})
//
// RedisStore: shared between registry replicas, expiry delegated to Redis.
//
//	store, err := cache.NewRedisStore(cache.RedisOptions{URL: "redis://localhost:6379/0"})
//
// # Usage
//
//	creds := cache.New(store, cache.Options{TTL: 24 * time.Hour, Hasher: cache.NewBcryptHasher(0)})
//	if entry, ok := creds.Lookup(ctx, username); ok && creds.Verify(entry, password) {
//		return entry.Teams, nil
//	}
//	teams := resolve()
//	_ = creds.Store(ctx, username, password, teams)
//
// Backend failures are logged, counted and reported as misses.
package cache

package cache

import "time"

// Entry is the cached authorization of one username
type Entry struct {
	// Proof is the credential proof produced by the Hasher
	Proof     string    `json:"password"`
	Teams     []string  `json:"teams"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is no longer valid at now
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

func (e *Entry) clone() *Entry {
	out := *e
	out.Teams = make([]string, len(e.Teams))
	copy(out.Teams, e.Teams)
	return &out
}

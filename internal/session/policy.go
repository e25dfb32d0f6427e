package session

import "time"

// Policy decides when a sending session key is replaced. Zero values mean
// unlimited.
type Policy struct {
	// MaxMessages is the number of envelopes sealed under one key.
	MaxMessages int
	// MaxAge is the lifetime of one key.
	MaxAge time.Duration
}

// DefaultPolicy rotates after 100 messages or one hour, whichever comes first.
var DefaultPolicy = Policy{MaxMessages: 100, MaxAge: time.Hour}

// due reports whether a key used uses times and created at created must be
// replaced before the next send at now.
func (p Policy) due(uses int, created, now time.Time) bool {
	if p.MaxMessages > 0 && uses >= p.MaxMessages {
		return true
	}
	if p.MaxAge > 0 && now.Sub(created) >= p.MaxAge {
		return true
	}
	return false
}

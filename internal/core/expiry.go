package core

import (
	"encoding/json"
	"time"
)

// Expiry is either Never or At(t). The zero value is Never.
type Expiry struct {
	at  time.Time
	set bool
}

// Never returns an expiry that never passes.
func Never() Expiry { return Expiry{} }

// At returns an expiry at t.
func At(t time.Time) Expiry { return Expiry{at: t, set: true} }

// ExpiryFromPtr converts a nullable timestamp column.
func ExpiryFromPtr(t *time.Time) Expiry {
	if t == nil {
		return Never()
	}
	return At(*t)
}

// Time returns the expiry instant and whether one is set.
func (e Expiry) Time() (time.Time, bool) { return e.at, e.set }

// IsNever reports whether the expiry is unset.
func (e Expiry) IsNever() bool { return !e.set }

// Ptr returns nil for Never, a pointer to the instant otherwise.
func (e Expiry) Ptr() *time.Time {
	if !e.set {
		return nil
	}
	t := e.at
	return &t
}

// PassedAt reports whether the expiry lies strictly before now.
func (e Expiry) PassedAt(now time.Time) bool {
	return e.set && e.at.Before(now)
}

// ActiveAt reports whether a mapping with this expiry counts as active at now:
// never expiring, or expiring strictly after now.
func (e Expiry) ActiveAt(now time.Time) bool {
	return !e.set || e.at.After(now)
}

func (e Expiry) String() string {
	if !e.set {
		return "never"
	}
	return e.at.Format(time.RFC3339)
}

// MarshalJSON encodes Never as null and At(t) as an RFC 3339 timestamp.
func (e Expiry) MarshalJSON() ([]byte, error) {
	if !e.set {
		return []byte("null"), nil
	}
	return json.Marshal(e.at)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Expiry) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*e = Never()
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	*e = At(t)
	return nil
}

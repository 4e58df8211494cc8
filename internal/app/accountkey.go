package app

import (
	"time"

	"github.com/ErikKalkoken/evesync/internal/optional"
)

// AccountKey is a credential pair granting access to a remote account.
type AccountKey struct {
	AccessMask       int64
	CreatedAt        time.Time
	ExpiresAt        optional.Optional[time.Time]
	ID               int64
	Type             string
	UpdatedAt        time.Time
	VerificationCode string
}

// HasExpired reports whether a key is known to have expired.
// Keys without an expiry never expire.
func (ak AccountKey) HasExpired() bool {
	v, err := ak.ExpiresAt.Value()
	if err != nil {
		return false
	}
	return time.Now().After(v)
}

// Package ids hands out subscriber identifiers. They are ULIDs, so sorting
// them orders subscribers by connection time and the time can be read back.
package ids

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SubscriberPrefix is prepended to every subscriber identifier.
const SubscriberPrefix = "sub_"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
	now       = time.Now
)

// CreateULID returns a monotonic ULID encoded as a 26-character string.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now()), entropy).String()
}

// NewSubscriberID returns a unique, connection-ordered identifier for a subscriber handle.
func NewSubscriberID() string {
	return SubscriberPrefix + CreateULID()
}

// ConnectedAt returns the time encoded in a subscriber ID, with millisecond
// precision. ok is false for IDs not made by NewSubscriberID.
func ConnectedAt(id string) (t time.Time, ok bool) {
	raw, found := strings.CutPrefix(id, SubscriberPrefix)
	if !found {
		return time.Time{}, false
	}
	parsed, err := ulid.ParseStrict(raw)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(parsed.Time()), true
}

package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. Session IDs use ULIDs so they sort by
// issue time in logs and traces.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

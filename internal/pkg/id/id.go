package id

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewAt generates a ULID whose time component is t. ULIDs are lexicographically
// sortable by creation time; the 80-bit random suffix keeps values generated in
// the same millisecond distinct.
func NewAt(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// Package xid generates prefixed, time-ordered identifiers for stored rows.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns an id like "sum-1741305600000000000-a1b2c3d4e5f60718". The
// timestamp keeps ids roughly sortable; the random suffix keeps them unique.
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewMessageID returns an opaque external message id: msg_<yyyymmdd>_<hex8>.
func NewMessageID(now time.Time) string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("msg_%s_%s", now.UTC().Format("20060102"), hex.EncodeToString(buf[:]))
}

// NewUUID returns a random UUID, used for MCP session ids and contact-link
// correlation where no human-meaningful id is needed.
func NewUUID() string {
	return uuid.NewString()
}

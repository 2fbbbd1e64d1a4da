package ws

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"helpdesk-service/internal/models"
)

// ConnInfo captures the identity and handshake metadata of one live
// connection. The principal is fixed at connect time.
type ConnInfo struct {
	ConnID      string
	Principal   models.Principal
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

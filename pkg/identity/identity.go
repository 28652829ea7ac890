package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashLength is the number of hex characters kept from the address digest.
const HashLength = 16

// Identity is who a request is counted against.
type Identity struct {
	// SessionID is the per-visitor session token.
	SessionID string

	// IPHash is the truncated SHA-256 of the client address.
	IPHash string
}

// New builds an Identity. An empty session id falls back to the IP hash so
// cookie-less clients are still counted per network.
func New(sessionID, ipHash string) Identity {
	if sessionID == "" {
		sessionID = ipHash
	}
	return Identity{SessionID: sessionID, IPHash: ipHash}
}

// SessionKey returns the daily_usage identity for the session tier.
func (i Identity) SessionKey() string {
	return "session:" + i.SessionID
}

// IPKey returns the daily_usage identity for the network tier.
func (i Identity) IPKey() string {
	return "ip:" + i.IPHash
}

// HashIP returns the first 16 hex characters of SHA-256(ip). Raw addresses are
// never stored.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])[:HashLength]
}

package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// CredentialDigest returns the sha256 of a credential value. Digests are safe to
// keep in memory as map keys; raw credentials are not.
func CredentialDigest(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}

// FlightKey identifies one refresh round: same session and same refresh
// credential share a round, a rotated refresh credential starts a new one.
func FlightKey(sessionID, refresh string) string {
	sum := CredentialDigest(refresh)
	return sessionID + "\x00" + hex.EncodeToString(sum[:])
}

// Fingerprint is a short, non-reversible tag for a credential, for log
// correlation only.
func Fingerprint(v string) string {
	if v == "" {
		return ""
	}
	sum := CredentialDigest(v)
	return hex.EncodeToString(sum[:4])
}

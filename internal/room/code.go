package room

import (
	"crypto/rand"
	"fmt"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateCode returns a short uppercase alphanumeric room code, the
// kind players read out loud to each other.
func generateCode(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure is effectively fatal elsewhere; fall back
		// to a timestamp-derived code rather than panic here.
		return fmt.Sprintf("%0*X", length, time.Now().UnixNano())[:length]
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}

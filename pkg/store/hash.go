package store

import (
	"crypto/sha256"
	"fmt"
)

// HashSubmission computes the SHA-256 of profile ID + content used for
// deduplication. The same body mapped with two profiles is stored twice.
func HashSubmission(profileID, content string) string {
	h := sha256.New()
	h.Write([]byte(profileID))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return fmt.Sprintf("%x", h.Sum(nil))
}

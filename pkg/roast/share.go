package roast

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// DefaultShareIDLength is the length of generated share ids.
const DefaultShareIDLength = 8

// shareIDBlocklist holds substrings that read badly in a URL.
var shareIDBlocklist = []string{"ass", "fuk", "fck", "nig", "fag", "cum", "sex", "wtf", "die", "kys"}

// GenerateShareID returns a random URL-safe id of the given length that
// contains no blocklisted substring (case-insensitive).
func GenerateShareID(length int) (string, error) {
	if length <= 0 {
		length = DefaultShareIDLength
	}

	buf := make([]byte, base64.RawURLEncoding.DecodedLen(length)+1)
	for {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		candidate := base64.RawURLEncoding.EncodeToString(buf)[:length]
		if !containsBlocked(candidate) {
			return candidate, nil
		}
	}
}

func containsBlocked(id string) bool {
	lower := strings.ToLower(id)
	for _, word := range shareIDBlocklist {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

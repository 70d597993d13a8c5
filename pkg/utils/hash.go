package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns a stable content key for cache lookups. Surrounding
// whitespace and letter case do not change the fingerprint.
func Fingerprint(input string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(input), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

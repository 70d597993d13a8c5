package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	t.Run("Normalizes whitespace and case", func(t *testing.T) {
		assert.Equal(t, Fingerprint("ISO 27001 controls"), Fingerprint("  iso   27001\tCONTROLS "))
	})

	t.Run("Different content yields different keys", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint("ISO 27001"), Fingerprint("ISO 27002"))
	})

	t.Run("Hex encoded sha256", func(t *testing.T) {
		assert.Len(t, Fingerprint("anything"), 64)
	})
}

package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	t.Run("Lowercases and strips punctuation", func(t *testing.T) {
		assert.Equal(t, []string{"iso", "iec", "27001", "controls"}, Tokenize("ISO/IEC 27001: Controls!"))
	})

	t.Run("Keeps accented letters", func(t *testing.T) {
		assert.Equal(t, []string{"controles", "principales"}, Tokenize("Controles   principales"))
	})

	t.Run("Empty input", func(t *testing.T) {
		assert.Empty(t, Tokenize(""))
		assert.Empty(t, Tokenize("  ... !! "))
	})
}

func TestContentTokens(t *testing.T) {
	assert.Equal(t, []string{"iso", "27001", "defines", "requirements"},
		ContentTokens("ISO 27001 defines the requirements for the"))
	assert.Equal(t, []string{"controles", "principales"}, ContentTokens("los controles principales de la"))
}

func TestNGrams(t *testing.T) {
	t.Run("Sliding windows", func(t *testing.T) {
		assert.Equal(t, []string{"a b c", "b c d"}, NGrams([]string{"a", "b", "c", "d"}, 3))
	})

	t.Run("Short sequence is a single gram", func(t *testing.T) {
		assert.Equal(t, []string{"a b"}, NGrams([]string{"a", "b"}, 3))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Nil(t, NGrams(nil, 3))
	})
}

func TestSplitSentences(t *testing.T) {
	t.Run("Terminators followed by space", func(t *testing.T) {
		got := SplitSentences("First one. Second one! Third one? Fourth")
		assert.Equal(t, []string{"First one.", "Second one!", "Third one?", "Fourth"}, got)
	})

	t.Run("Decimals do not split", func(t *testing.T) {
		got := SplitSentences("Version 2.3 is current. It ships soon.")
		assert.Equal(t, []string{"Version 2.3 is current.", "It ships soon."}, got)
	})

	t.Run("Newlines split", func(t *testing.T) {
		got := SplitSentences("- item one\n- item two")
		assert.Equal(t, []string{"- item one", "- item two"}, got)
	})

	t.Run("Empty text", func(t *testing.T) {
		assert.Empty(t, SplitSentences("   "))
	})
}

func TestUniqueAndWordCount(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Unique([]string{"a", "b", "a"}))
	assert.Equal(t, 3, WordCount(" one two\tthree "))
}

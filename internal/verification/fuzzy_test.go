package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	t.Run("identical strings score 100", func(t *testing.T) {
		for _, s := range []string{"liam", "Johnson", "  Ava  ", "o'neil"} {
			assert.Equal(t, 100, Score(s, s), s)
		}
	})

	t.Run("case and whitespace are ignored", func(t *testing.T) {
		assert.Equal(t, 100, Score(" LIAM ", "liam"))
	})

	t.Run("symmetric", func(t *testing.T) {
		pairs := [][2]string{
			{"johnson", "johnsen"},
			{"liam", "william"},
			{"ava", "eva marie"},
			{"smith", "smyth"},
		}
		for _, p := range pairs {
			assert.Equal(t, Score(p[0], p[1]), Score(p[1], p[0]), p)
		}
	})

	t.Run("single substitution stays above ninety", func(t *testing.T) {
		assert.GreaterOrEqual(t, Score("johnsen", "johnson"), 90)
	})

	t.Run("empty side scores zero", func(t *testing.T) {
		assert.Equal(t, 0, Score("", "liam"))
		assert.Equal(t, 0, Score("liam", "   "))
	})

	t.Run("unrelated names fall below threshold", func(t *testing.T) {
		assert.Less(t, Score("liam", "margaret"), NameThreshold)
	})
}

func TestNameMatches(t *testing.T) {
	assert.True(t, NameMatches(80, 0, "Liam", "Johnson"))
	assert.True(t, NameMatches(0, 75, "Liam", "Johnson"))
	assert.False(t, NameMatches(74, 74, "Liam", "Johnson"))
	assert.True(t, NameMatches(0, 0, "", " "), "record without a name matches")
}

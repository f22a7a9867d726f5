package verification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(1986, time.March, 25, 0, 0, 0, 0, time.UTC)

	accepted := []string{
		"1986-03-25",
		"25 March, 1986",
		"March 25, 1986",
		"march 25th 1986",
		"25th of March 1986",
		"Mar 25 1986",
		"03/25/1986",
		"3/25/1986",
		"3/25/86",
		"1986/03/25",
		"25/03/1986",
		"25-03-1986",
		"25.03.1986",
	}
	for _, in := range accepted {
		t.Run(in, func(t *testing.T) {
			got, err := ParseDate(in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	t.Run("month and year resolve to the first", func(t *testing.T) {
		got, err := ParseDate("March 1986")
		require.NoError(t, err)
		assert.Equal(t, time.Date(1986, time.March, 1, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("ambiguous numeric dates read month first", func(t *testing.T) {
		got, err := ParseDate("03/04/1986")
		require.NoError(t, err)
		assert.Equal(t, time.Date(1986, time.March, 4, 0, 0, 0, 0, time.UTC), got)
	})

	for _, in := range []string{"", "   ", "1986", "not a date", "sometime last spring"} {
		t.Run("rejects "+in, func(t *testing.T) {
			_, err := ParseDate(in)
			assert.ErrorIs(t, err, ErrUnparseableDate)
		})
	}
}

func TestSameDate(t *testing.T) {
	assert.True(t, SameDate("25 March, 1986", "1986-03-25"))
	assert.False(t, SameDate("26 March, 1986", "1986-03-25"))
	assert.False(t, SameDate("garbage", "1986-03-25"))
	assert.False(t, SameDate("1986-03-25", ""))
}

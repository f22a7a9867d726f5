package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCents(t *testing.T) {
	cases := map[string]Cents{
		"1234.56":  123456,
		"$1,234.5": 123450,
		"12":       1200,
		".5":       50,
		"-3.07":    -307,
		" 250.00 ": 25000,
	}
	for in, want := range cases {
		got, err := ParseCents(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "abc", "1.234", "1.2.3"} {
		_, err := ParseCents(bad)
		assert.Error(t, err, bad)
	}
}

func TestCents_String(t *testing.T) {
	assert.Equal(t, "1234.56", Cents(123456).String())
	assert.Equal(t, "0.05", Cents(5).String())
	assert.Equal(t, "-3.07", Cents(-307).String())
	assert.Equal(t, Cents(9999), CentsFromFloat(99.99))
	assert.Equal(t, Cents(123450), CentsFromFloat(1234.5))
}

func TestCents_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Balance Cents `json:"balance"`
	}{Balance: 4250})
	require.NoError(t, err)
	assert.JSONEq(t, `{"balance":"42.50"}`, string(b))
}

package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "dunning/pkg/domain-errors"
)

func TestParseResidentID(t *testing.T) {
	t.Run("rejects blank", func(t *testing.T) {
		_, err := ParseResidentID("   ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects oversized", func(t *testing.T) {
		_, err := ParseResidentID(strings.Repeat("9", 65))
		require.Error(t, err)
	})

	t.Run("trims surrounding space", func(t *testing.T) {
		id, err := ParseResidentID(" 600999 ")
		require.NoError(t, err)
		assert.Equal(t, ResidentID("600999"), id)
	})
}

func TestParseCallID(t *testing.T) {
	_, err := ParseCallID("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	id, err := ParseCallID("call_abc")
	require.NoError(t, err)
	assert.Equal(t, "call_abc", id.String())
}

func TestParseOperatorID(t *testing.T) {
	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseOperatorID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseOperatorID("not-a-uuid")
		require.Error(t, err)
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		u := uuid.New()
		id, err := ParseOperatorID(u.String())
		require.NoError(t, err)
		assert.Equal(t, OperatorID(u), id)
		assert.False(t, id.IsNil())
	})
}

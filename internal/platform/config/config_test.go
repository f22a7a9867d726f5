package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("VOICE_PROVIDER", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "America/Denver", cfg.Compliance.Zone)
	assert.Equal(t, 8, cfg.Compliance.StartHour)
	assert.Equal(t, 21, cfg.Compliance.EndHour)
	assert.Equal(t, VoiceProviderVapi, cfg.Voice.Provider)
	assert.Equal(t, 10*time.Second, cfg.Voice.PollWait)
	assert.Equal(t, "Healthcare Corporation", cfg.Outreach.OrgName)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("VOICE_PROVIDER", "RETELL")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("VOICE_POLL_WAIT", "2s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, VoiceProviderRetell, cfg.Voice.Provider)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Voice.PollWait)
}

func TestFromEnv_Errors(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("VOICE_POLL_WAIT", "ten seconds")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "VOICE_POLL_WAIT")
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("VOICE_PROVIDER", "bland")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "VOICE_PROVIDER")
	})

	t.Run("production requires secrets", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("DATABASE_URL", "")
		_, err := FromEnv()
		require.Error(t, err)
		assert.ErrorContains(t, err, "DATABASE_URL")
		assert.ErrorContains(t, err, "PHI_ENCRYPTION_KEY")
	})

	t.Run("invalid window", func(t *testing.T) {
		t.Setenv("COMPLIANCE_START_HOUR", "21")
		t.Setenv("COMPLIANCE_END_HOUR", "8")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "compliance window")
	})
}

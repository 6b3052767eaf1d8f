package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "2985", cfg.AdminPIN)
	assert.Equal(t, "DZ", cfg.RoomCodePrefix)
	assert.Equal(t, 2*time.Hour, cfg.RoomIdleTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.True(t, cfg.Configured())
	assert.False(t, cfg.Development())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PORT":              "9000",
		"ENV":               "development",
		"STORE_DRIVER":      "Redis",
		"STORE_URL":         "redis://cache:6379/0",
		"ADMIN_PIN":         "1234",
		"SHUFFLE_QUESTIONS": "true",
		"ROOM_IDLE_TTL":     "45m",
		"PUBLIC_URL":        "https://feud.example/",
		"ALLOWED_ORIGINS":   "https://a.example, https://b.example",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, DriverRedis, cfg.StoreDriver)
	assert.True(t, cfg.ShuffleQuestions)
	assert.Equal(t, 45*time.Minute, cfg.RoomIdleTTL)
	assert.Equal(t, "https://feud.example", cfg.PublicURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.Development())
	assert.True(t, cfg.Configured())
}

func TestFromEnv_MalformedValuesFallBack(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"ROOM_IDLE_TTL":     "soon",
		"SHUFFLE_QUESTIONS": "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROOM_IDLE_TTL")
	assert.Contains(t, err.Error(), "SHUFFLE_QUESTIONS")
	assert.Equal(t, 2*time.Hour, cfg.RoomIdleTTL)
	assert.False(t, cfg.ShuffleQuestions)
}

func TestMissing(t *testing.T) {
	cases := []struct {
		driver, url string
		want        []string
	}{
		{DriverMemory, "", nil},
		{DriverRedis, "", []string{"STORE_URL"}},
		{DriverPostgres, "", []string{"STORE_URL"}},
		{DriverPostgres, "postgres://db/feud", nil},
		{"etcd", "", []string{"STORE_DRIVER"}},
	}
	for _, tc := range cases {
		cfg := Config{StoreDriver: tc.driver, StoreURL: tc.url}
		assert.Equal(t, tc.want, cfg.Missing(), tc.driver)
		assert.Equal(t, len(tc.want) == 0, cfg.Configured(), tc.driver)
	}
}

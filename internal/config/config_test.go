package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresAPIKey(t *testing.T) {
	os.Unsetenv("API_KEY")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 6334, cfg.QdrantPort)
	require.Equal(t, 512, cfg.ChunkMaxTokens)
	require.Equal(t, 90, cfg.DefaultEffectiveDays)
	require.Equal(t, []string{"http://localhost:3000", "http://localhost:8080"}, cfg.CORSOrigins)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("CHUNK_MAX_TOKENS", "256")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 256, cfg.ChunkMaxTokens)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

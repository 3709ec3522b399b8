package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadOverlaysFileAndFlags(t *testing.T) {
	path := writeConfig(t, `{"JwtSecret":"0123456789abcdef","Port":"4000","Database":"mysql","DbUser":"chat"}`)

	cfg, err := Load([]string{"-config", path, "-port", "5000"})
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "mysql", cfg.Database)
	assert.Equal(t, "chat", cfg.DbUser)
	assert.Equal(t, "0.0.0.0", cfg.Address)
	assert.True(t, cfg.SelfContained)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load([]string{"-config", filepath.Join(t.TempDir(), "nope.json")})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"JwtSecret":"0123456789abcdef"}`},
		{name: "short secret", body: `{"JwtSecret":"short"}`, wantErr: true},
		{name: "unknown database", body: `{"JwtSecret":"0123456789abcdef","Database":"oracle"}`, wantErr: true},
		{name: "bad lifetime", body: `{"JwtSecret":"0123456789abcdef","JwtLifetime":"soon"}`, wantErr: true},
		{name: "bad log level", body: `{"JwtSecret":"0123456789abcdef","LogLevel":"loud"}`, wantErr: true},
		{name: "broken json", body: `{"JwtSecret":`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]string{"-config", writeConfig(t, tc.body)})
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJwtLifetime(t *testing.T) {
	path := writeConfig(t, `{"JwtSecret":"0123456789abcdef","JwtLifetime":"2h"}`)
	cfg, err := Load([]string{"-config", path})
	require.NoError(t, err)

	lifetime, err := JwtLifetime(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, lifetime)
	assert.False(t, IsHttps(cfg))
}

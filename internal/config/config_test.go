package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("HTTP_ADDR", ":9999")

	cfg, err := Load("users")
	require.NoError(t, err)
	assert.Equal(t, "users", cfg.ServiceName)
	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "users", cfg.QueueGroup())
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENVIRONMENT", "test")

	_, err := Load("users")
	assert.Error(t, err)
}

func TestValidateRejectsUnknownEnvironment(t *testing.T) {
	cfg := &Config{ServiceName: "users", Environment: "staging", JWTSecret: "x"}
	assert.Error(t, cfg.Validate())
}

package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSecretResolver_ResolvesExistingVariable(t *testing.T) {
	t.Setenv("DB_PASSWORD", "hunter2")

	r := EnvSecretResolver{}
	value, err := r.Resolve(context.Background(), "https://vault.example.com", "db-password", "")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", value)
}

func TestEnvSecretResolver_MissingVariable(t *testing.T) {
	r := EnvSecretResolver{}
	_, err := r.Resolve(context.Background(), "https://vault.example.com", "nonexistent-secret", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NONEXISTENT_SECRET")
}

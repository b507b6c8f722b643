package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSSHFlusher_ClientConfig tests auth method assembly.
func TestSSHFlusher_ClientConfig(t *testing.T) {
	f := SSHFlusher{Config: SSHConfig{Host: "db-01", Username: "bench"}}
	_, err := f.clientConfig()
	assert.ErrorIs(t, err, ErrNoAuthMethod)

	f.Config.Password = "secret"
	config, err := f.clientConfig()
	require.NoError(t, err)
	assert.Equal(t, "bench", config.User)
	assert.Len(t, config.Auth, 1)
}

// TestSSHFlusher_ClientConfigBadKey tests that an unreadable key file fails
// before any dial happens.
func TestSSHFlusher_ClientConfigBadKey(t *testing.T) {
	f := SSHFlusher{Config: SSHConfig{
		Host:     "db-01",
		Username: "bench",
		KeyPath:  "/nonexistent/id_ed25519",
	}}
	_, err := f.clientConfig()
	assert.Error(t, err)
}

package vault

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benyonsports/docstore/internal/config"
)

func TestDisabledClient(t *testing.T) {
	t.Parallel()

	c, err := NewClient(config.VaultConfig{}, nil)
	require.NoError(t, err)

	assert.False(t, c.IsEnabled())

	_, err = c.ReadKVSecret(context.Background(), "docstore/keycloak", "clientSecret")
	assert.Error(t, err)
}

func TestReadKVSecret(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/docstore/keycloak" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {
				"data": {"clientSecret": "s3cret"},
				"metadata": {"version": 1}
			}
		}`))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(config.VaultConfig{
		Enabled: true,
		Addr:    server.URL,
		Token:   "test-token",
		Timeout: config.Duration(5 * time.Second),
	}, nil)
	require.NoError(t, err)
	assert.True(t, c.IsEnabled())

	secret, err := c.ReadKVSecret(context.Background(), "docstore/keycloak", "clientSecret")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret)

	_, err = c.ReadKVSecret(context.Background(), "docstore/keycloak", "missingField")
	assert.ErrorIs(t, err, ErrFieldNotFound)

	_, err = c.ReadKVSecret(context.Background(), "docstore/absent", "clientSecret")
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, path, addr string) {
	t.Helper()
	content := "server:\n  addr: \"" + addr + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWatcherReloadsOnChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "docstore.yaml")
	writeConfigFile(t, path, ":8000")

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}, WithDebounceDelay(50*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	writeConfigFile(t, path, ":9000")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, ":9000", cfg.Server.Addr)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback was not invoked")
	}
}

func TestWatcherInvalidReloadKeepsRunning(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "docstore.yaml")
	writeConfigFile(t, path, ":8000")

	reloaded := make(chan *Config, 1)
	errored := make(chan error, 1)

	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	},
		WithDebounceDelay(50*time.Millisecond),
		WithErrorCallback(func(err error) {
			select {
			case errored <- err:
			default:
			}
		}),
	)
	require.NoError(t, err)

	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	// Break the config: an empty keycloak url fails validation.
	require.NoError(t, os.WriteFile(path, []byte("keycloak:\n  url: \"\"\n"), 0o644))

	select {
	case err := <-errored:
		assert.ErrorIs(t, err, ErrMissingKeycloakURL)
	case <-time.After(5 * time.Second):
		t.Fatal("error callback was not invoked")
	}

	// A subsequent good write still reloads.
	writeConfigFile(t, path, ":9100")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, ":9100", cfg.Server.Addr)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback was not invoked after recovery")
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "docstore.yaml")
	writeConfigFile(t, path, ":8000")

	w, err := NewWatcher(path, func(*Config) {})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

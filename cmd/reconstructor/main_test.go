package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Avi18971911/Reconstructor/internal/config"
	"github.com/Avi18971911/Reconstructor/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "reconstructor dev")
}

func TestSetup(t *testing.T) {
	t.Run("Rejects an invalid configuration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("persistence:\n  backend: cassandra\n"), 0o600))

		_, _, err := setup(&rootOptions{configPath: path})
		assert.ErrorIs(t, err, config.ErrUnknownBackend)
	})

	t.Run("Uses defaults without a config file", func(t *testing.T) {
		cfg, logger, err := setup(&rootOptions{dev: true})
		require.NoError(t, err)
		assert.NotNil(t, logger)
		assert.Equal(t, config.TransportNats, cfg.Stream.Transport)
	})
}

func TestNewTransport(t *testing.T) {
	t.Run("Builds the in-process transport", func(t *testing.T) {
		tr, closeTransport, err := newTransport(config.StreamConfig{Transport: config.TransportMemory}, zap.NewNop())
		require.NoError(t, err)
		defer closeTransport()

		received := make(chan stream.Message, 1)
		sub, err := tr.Subscribe("topic", func(msg stream.Message) { received <- msg })
		require.NoError(t, err)
		defer sub.Unsubscribe()

		require.NoError(t, tr.Publish(context.Background(), "topic", stream.Message{Key: "k"}))
		assert.Equal(t, "k", (<-received).Key)
	})

	t.Run("Rejects unknown transports", func(t *testing.T) {
		_, _, err := newTransport(config.StreamConfig{Transport: "kafka"}, zap.NewNop())
		assert.ErrorIs(t, err, config.ErrUnknownTransport)
	})
}

func TestNewRecordStore(t *testing.T) {
	_, _, err := newRecordStore(config.PersistenceConfig{Backend: "cassandra"}, zap.NewNop())
	assert.ErrorIs(t, err, config.ErrUnknownBackend)
}

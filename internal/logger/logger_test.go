package logger_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

func TestNew_WritesToOutputPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "curator.log")
	log, err := logger.New(logger.Config{Level: "debug", OutputPaths: []string{path}})
	require.NoError(t, err)

	log.With(logger.EntryID("e-1")).Info("entry locked", logger.Error(errors.New("boom")))
	_ = log.Sync()

	assert.FileExists(t, path)
}

func TestNewNop(t *testing.T) {
	t.Parallel()

	log := logger.NewNop()
	log.With(logger.JobID("j-1")).Error("ignored")
	assert.NoError(t, log.Sync())
}

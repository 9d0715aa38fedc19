package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/ghpsync/internal/config"
)

func TestNewOutput_Fallback(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(config.LogConfig{}, &buf)

	out.Logger("sync").Println("pulled 3 items")

	assert.Contains(t, buf.String(), "[sync] ")
	assert.Contains(t, buf.String(), "pulled 3 items")
	assert.NoError(t, out.Close())
}

func TestNewOutput_NilFallbackDiscards(t *testing.T) {
	out := NewOutput(config.LogConfig{}, nil)

	assert.Equal(t, io.Discard, out.Writer())
}

func TestNewOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ghpsync.log")
	out := NewOutput(config.LogConfig{File: path, MaxSizeMB: 1, MaxBackups: 1}, nil)

	out.Logger("gh").Println("request failed")
	out.Logger("sync").Println("sync started")
	require.NoError(t, out.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[gh] ")
	assert.Contains(t, string(data), "sync started")
}

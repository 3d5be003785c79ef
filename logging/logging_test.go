package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingWriter_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	w, err := NewRotatingWriter(path, 16)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = w.Write([]byte("abcdefghij"))
	require.NoError(t, err)

	backup, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdefghij", string(backup))

	_, err = w.Write([]byte("next"))
	require.NoError(t, err)
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "next", string(current))
}

func TestNewRotatingWriter_TruncatesOversized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0644))

	w, err := NewRotatingWriter(path, 32)
	require.NoError(t, err)
	defer w.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestDebugf(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetOutput(prev)
		SetLevel("info")
	})

	SetLevel("info")
	Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetLevel("DEBUG")
	assert.True(t, DebugEnabled())
	Debugf("shown %d", 2)
	assert.Contains(t, buf.String(), "[debug] shown 2")
}

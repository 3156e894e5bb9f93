package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Setup(&Settings{
		Path:       dir,
		Name:       "gomux",
		Ext:        ".log",
		TimeFormat: "2006-01-02",
		Level:      "debug",
	}))
	defer SetOutput(os.Stderr)

	Debug("hello file")

	matches, err := filepath.Glob(filepath.Join(dir, "gomux-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello file")
}

func TestSetupRejectsBadLevel(t *testing.T) {
	assert.Error(t, Setup(&Settings{Level: "loud"}))
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(logrus.InfoLevel)
	defer SetOutput(os.Stderr)

	WithFields(Fields{"fd": 7}).Warn("read failed")
	assert.Contains(t, buf.String(), "fd=7")
	assert.Contains(t, buf.String(), "read failed")
}

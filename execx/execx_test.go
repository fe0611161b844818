package execx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	stdout := &bytes.Buffer{}
	r := NewOSRunner(stdout, &bytes.Buffer{})
	err := r.Run(t.TempDir(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", stdout.String())
}

func TestRunFailureIncludesStderr(t *testing.T) {
	r := NewOSRunner(&bytes.Buffer{}, &bytes.Buffer{})
	err := r.Run(t.TempDir(), "sh", "-c", "echo broken >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRunRespectsDir(t *testing.T) {
	dir := t.TempDir()
	stdout := &bytes.Buffer{}
	r := NewOSRunner(stdout, &bytes.Buffer{})
	require.NoError(t, r.Run(dir, "pwd"))
	assert.Equal(t, dir, strings.TrimSpace(stdout.String()))
}

func TestOutput(t *testing.T) {
	r := NewOSRunner(&bytes.Buffer{}, &bytes.Buffer{})
	out, err := r.Output(t.TempDir(), "sh", "-c", "echo '{\"a\":1}'")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(out))
}

func TestOutputMissingBinary(t *testing.T) {
	r := NewOSRunner(&bytes.Buffer{}, &bytes.Buffer{})
	_, err := r.Output(t.TempDir(), "definitely-not-a-real-binary")
	assert.Error(t, err)
}

package sshkey

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureGeneratesKeyPair(t *testing.T) {
	dir := t.TempDir()
	kp, err := Ensure(dir, "aws-network-benchmark", true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "aws-network-benchmark"), kp.PrivateKeyPath)
	assert.Equal(t, filepath.Join(dir, "aws-network-benchmark.pub"), kp.PublicKeyPath)

	pub, err := os.ReadFile(kp.PublicKeyPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pub), "ssh-ed25519 "))

	signer, err := kp.Signer()
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519", signer.PublicKey().Type())
}

func TestEnsureReusesExistingKey(t *testing.T) {
	dir := t.TempDir()
	kp, err := Ensure(dir, "bench", true)
	require.NoError(t, err)
	first, err := os.ReadFile(kp.PrivateKeyPath)
	require.NoError(t, err)

	again, err := Ensure(dir, "bench", true)
	require.NoError(t, err)
	second, err := os.ReadFile(again.PrivateKeyPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnsureMissingKeyWithoutCreate(t *testing.T) {
	_, err := Ensure(t.TempDir(), "bench", false)
	assert.Error(t, err)
}

func TestSignerMissingKey(t *testing.T) {
	kp := &KeyPair{PrivateKeyPath: filepath.Join(t.TempDir(), "nope")}
	_, err := kp.Signer()
	assert.Error(t, err)
}

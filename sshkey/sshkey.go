// Package sshkey manages the key pair shared by every instance in a run.
package sshkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// KeyPair points at the on-disk key material for a run. The public key is
// imported into every region by the generated terraform; the private key
// authenticates the SSH targets.
type KeyPair struct {
	Name           string
	PrivateKeyPath string
	PublicKeyPath  string
}

// Ensure returns the key pair named name inside dir, generating an ed25519
// pair when create is set and the private key does not exist yet.
func Ensure(dir, name string, create bool) (*KeyPair, error) {
	kp := &KeyPair{
		Name:           name,
		PrivateKeyPath: filepath.Join(dir, name),
		PublicKeyPath:  filepath.Join(dir, name+".pub"),
	}

	if _, err := os.Stat(kp.PrivateKeyPath); err == nil {
		slog.Debug("using existing SSH key", slog.String("path", kp.PrivateKeyPath))
		return kp, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if !create {
		return nil, fmt.Errorf("SSH key %s not found and create_ssh_key is false", kp.PrivateKeyPath)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := generate(kp); err != nil {
		return nil, fmt.Errorf("generating SSH key pair: %w", err)
	}
	slog.Info("generated SSH key pair", slog.String("path", kp.PrivateKeyPath))
	return kp, nil
}

func generate(kp *KeyPair) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return err
	}
	if err := os.WriteFile(kp.PrivateKeyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return err
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return err
	}
	return os.WriteFile(kp.PublicKeyPath, ssh.MarshalAuthorizedKey(sshPub), 0o644)
}

// Signer loads the private key for SSH authentication.
func (kp *KeyPair) Signer() (ssh.Signer, error) {
	data, err := os.ReadFile(kp.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parsing private key %s: %w", kp.PrivateKeyPath, err)
	}
	return signer, nil
}

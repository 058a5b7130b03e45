// Package secrets seals configuration values with a local age key so that
// credentials such as JWT_SECRET never sit in plain text in the .env file.
package secrets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"github.com/dohr-michael/taskflow/internal/config"
)

const (
	sealPrefix = "ENC[age:"
	sealSuffix = "]"
)

// ErrNoKey is returned when a sealed value is read but no key file exists.
var ErrNoKey = errors.New("no age key: run `taskflow secret set` first")

// KeyPath returns the identity file, $TASKFLOW_PATH/.age-key.
func KeyPath() string {
	return filepath.Join(config.TaskflowPath(), ".age-key")
}

// Keyring holds the X25519 identity that seals and opens values.
type Keyring struct {
	identity *age.X25519Identity
}

// OpenKeyring reads the identity at path. With create set, a missing file
// is generated (0600) instead of reported as ErrNoKey.
func OpenKeyring(path string, create bool) (*Keyring, error) {
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err) && create:
		return generate(path)
	case os.IsNotExist(err):
		return nil, ErrNoKey
	case err != nil:
		return nil, fmt.Errorf("read age key: %w", err)
	}

	ids, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse age key %s: %w", path, err)
	}
	for _, id := range ids {
		if x, ok := id.(*age.X25519Identity); ok {
			return &Keyring{identity: x}, nil
		}
	}
	return nil, fmt.Errorf("no X25519 identity in %s", path)
}

func generate(path string) (*Keyring, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate age key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	content := fmt.Sprintf("# taskflow secret key\n# public key: %s\n%s\n", id.Recipient(), id)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("write age key: %w", err)
	}
	return &Keyring{identity: id}, nil
}

// Recipient returns the public half of the key.
func (k *Keyring) Recipient() string {
	return k.identity.Recipient().String()
}

// Seal encrypts plaintext into an ENC[age:...] value.
func (k *Keyring) Seal(plaintext string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, k.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	return sealPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()) + sealSuffix, nil
}

// Open decrypts a sealed value. Plain values are returned unchanged.
func (k *Keyring) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSuffix(strings.TrimPrefix(value, sealPrefix), sealSuffix))
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), k.identity)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plain), nil
}

// IsSealed reports whether s looks like an ENC[age:...] value.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, sealPrefix) && strings.HasSuffix(s, sealSuffix)
}

// Reveal opens value with the key at path when it is sealed, and returns
// plain values as is without touching the key file.
func Reveal(value, path string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	k, err := OpenKeyring(path, false)
	if err != nil {
		return "", err
	}
	return k.Open(value)
}

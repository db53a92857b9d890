// Package vault implements symmetric authenticated encryption for OAuth
// secrets stored at rest, the way internal/social/encryption.go encrypted
// platform tokens in the starting codebase, reworked to the three-field
// hex envelope the store expects.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNoSecret is returned by New when no process-wide key is configured.
// Callers MUST treat this as a fatal startup error.
var ErrNoSecret = errors.New("vault: no encryption secret configured")

const keySize = 32 // AES-256

// Vault encrypts and decrypts short secret strings (OAuth tokens) with
// AES-256-GCM. The ciphertext envelope is three hex fields joined by ":":
// nonce, ciphertext, authTag.
type Vault struct {
	key    []byte
	logger *logrus.Entry
}

// New derives a 32-byte key from secret. If secret is not exactly 32 bytes,
// it is hashed with SHA-256 and the digest used instead; this fallback is
// logged once so operators notice a misconfigured key length.
func New(secret string, logger *logrus.Entry) (*Vault, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	key := []byte(secret)
	if len(key) != keySize {
		logger.Warn("vault: configured secret is not 32 bytes, deriving key via SHA-256")
		sum := sha256.Sum256(key)
		key = sum[:]
	}

	return &Vault{key: key, logger: logger}, nil
}

// Encrypt returns the hex envelope for plaintext, or ("", nil) if plaintext
// is empty — callers treat an empty string as "no secret to store".
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("vault: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: init gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	tagStart := len(sealed) - gcm.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	envelope := strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(ciphertext),
		hex.EncodeToString(tag),
	}, ":")
	return envelope, nil
}

// Decrypt reverses Encrypt. A malformed or tampered envelope never panics
// or propagates into the caller's happy path: it logs and returns ("", nil)
// so callers can treat it the same as "token unavailable".
func (v *Vault) Decrypt(envelope string) (string, error) {
	if envelope == "" {
		return "", nil
	}

	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		v.logger.Error("vault: malformed envelope, expected 3 fields")
		return "", nil
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		v.logger.WithError(err).Error("vault: bad nonce hex")
		return "", nil
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		v.logger.WithError(err).Error("vault: bad ciphertext hex")
		return "", nil
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil {
		v.logger.WithError(err).Error("vault: bad auth tag hex")
		return "", nil
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		v.logger.WithError(err).Error("vault: init cipher")
		return "", nil
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		v.logger.WithError(err).Error("vault: init gcm")
		return "", nil
	}

	sealed := append(ciphertext, tag...)
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		v.logger.WithError(err).Error("vault: decrypt failed, tampered or wrong key")
		return "", nil
	}

	return string(plaintext), nil
}

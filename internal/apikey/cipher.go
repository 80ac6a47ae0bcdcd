package apikey

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/suPer8Hu/ai-studio/internal/ai"
	"golang.org/x/crypto/hkdf"
)

const (
	keyInfo   = "ai-studio/user-api-keys/v1"
	delimiter = ":"
)

// DecryptionError means a stored value exists but cannot be turned back into a
// key: corrupt iv:ciphertext structure, bad hex, or a rotated server secret.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decrypt api key: %s: %v", e.Reason, e.Err)
	}
	return "decrypt api key: " + e.Reason
}

func (e *DecryptionError) Unwrap() error { return e.Err }

func (e *DecryptionError) Is(target error) bool { return target == ai.ErrCredentialUnreadable }

// Cipher encrypts user keys with AES-256-GCM under a key derived from the
// server-wide secret. Stored form is hex(iv) + ":" + hex(ciphertext).
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, errors.Wrap(err, "derive key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "new aes cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "new gcm")
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", errors.Wrap(err, "read iv")
	}
	ct := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	return hex.EncodeToString(iv) + delimiter + hex.EncodeToString(ct), nil
}

func (c *Cipher) Decrypt(stored string) (string, error) {
	ivHex, ctHex, ok := strings.Cut(stored, delimiter)
	if !ok || ivHex == "" || ctHex == "" {
		return "", &DecryptionError{Reason: "malformed iv:ciphertext"}
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", &DecryptionError{Reason: "iv is not hex", Err: err}
	}
	if len(iv) != c.aead.NonceSize() {
		return "", &DecryptionError{Reason: fmt.Sprintf("iv has %d bytes", len(iv))}
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", &DecryptionError{Reason: "ciphertext is not hex", Err: err}
	}
	pt, err := c.aead.Open(nil, iv, ct, nil)
	if err != nil {
		return "", &DecryptionError{Reason: "authentication failed", Err: err}
	}
	return string(pt), nil
}

// internal/security/encryption.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"custody-service/pkg/apperr"
)

const masterKeySize = 32

// Encryption is the key vault: AES-256-GCM with one process-lifetime key.
// Changing the key orphans every stored ciphertext; there is no rotation path.
type Encryption struct {
	masterKey []byte
	version   string
}

// NewEncryption creates a new encryption instance
// masterKey must be base64 of exactly 32 bytes
func NewEncryption(masterKey string) (*Encryption, error) {
	keyBytes, err := decodeMasterKey(masterKey)
	if err != nil {
		return nil, err
	}

	return &Encryption{
		masterKey: keyBytes,
		version:   "v1",
	}, nil
}

func decodeMasterKey(masterKey string) ([]byte, error) {
	if masterKey == "" {
		return nil, fmt.Errorf("master key is empty")
	}

	keyBytes, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid base64: %w", err)
	}

	if len(keyBytes) != masterKeySize {
		return nil, fmt.Errorf("invalid master key length: must be %d bytes for AES-256, got %d", masterKeySize, len(keyBytes))
	}
	return keyBytes, nil
}

func (e *Encryption) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt encrypts plaintext using AES-256-GCM
// Returns base64 encoded ciphertext with nonce prepended
func (e *Encryption) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext cannot be empty")
	}

	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts base64 encoded ciphertext using AES-256-GCM.
// Every failure is an integrity error; nothing is returned on partial success.
func (e *Encryption) Decrypt(ciphertext string) (string, error) {
	const op = "security.Decrypt"

	if ciphertext == "" {
		return "", apperr.New(apperr.CodeIntegrity, op, "ciphertext cannot be empty")
	}

	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeIntegrity, op, fmt.Errorf("failed to decode base64: %w", err))
	}

	gcm, err := e.gcm()
	if err != nil {
		return "", apperr.Wrap(apperr.CodeIntegrity, op, err)
	}

	nonceSize := gcm.NonceSize()
	if len(decoded) < nonceSize+gcm.Overhead() {
		return "", apperr.New(apperr.CodeIntegrity, op, "ciphertext too short")
	}

	nonce, sealed := decoded[:nonceSize], decoded[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeIntegrity, op, fmt.Errorf("decryption failed: %w", err))
	}

	return string(plaintext), nil
}

// DeriveKey returns HMAC-SHA256(masterKey, purpose) for subkeys such as the
// intent token signing key.
func (e *Encryption) DeriveKey(purpose string) []byte {
	mac := hmac.New(sha256.New, e.masterKey)
	mac.Write([]byte(purpose))
	return mac.Sum(nil)
}

// GetVersion returns the encryption version
func (e *Encryption) GetVersion() string {
	return e.version
}

// GenerateMasterKey generates a random 32-byte master key for AES-256
func GenerateMasterKey() (string, error) {
	key := make([]byte, masterKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(key), nil
}

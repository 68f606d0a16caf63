package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"

	"golang.org/x/crypto/argon2"
)

// ErrUndecryptable marks a sealed value that does not open under the current
// key, e.g. after a key rotation or corruption.
var ErrUndecryptable = errors.New("sealed value failed authentication")

// SecretVault protects processor credentials and sub-account identifiers at rest.
type SecretVault interface {
	Encrypt(plaintext string) (string, error)
	// Decrypt returns the plaintext and whether the stored value was a legacy
	// unencrypted value returned unchanged. Values in sealed form that fail to
	// authenticate return ErrUndecryptable and must never be re-encrypted.
	Decrypt(value string) (string, bool, error)
	BlindIndex(value string) string
}

// Config holds vault configuration
type Config struct {
	MasterKey string
	Salt      []byte
}

// Vault implements SecretVault with AES-256-GCM.
type Vault struct {
	aead     cipher.AEAD
	indexKey []byte
}

// New derives the encryption and index keys from the master key.
func New(config Config) (*Vault, error) {
	if config.MasterKey == "" {
		return nil, errors.New("Master Key Required")
	}
	if len(config.Salt) == 0 {
		return nil, errors.New("vault salt required")
	}

	encKey := deriveKey(config.MasterKey, string(config.Salt)+":enc", 32)
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Vault{
		aead:     gcm,
		indexKey: deriveKey(config.MasterKey, string(config.Salt)+":idx", 32),
	}, nil
}

var _ SecretVault = (*Vault)(nil)

// Encrypt seals plaintext as base64(nonce || ciphertext).
// Callers must only pass values they hold in plaintext form.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Values that are not in sealed
// form (not base64, or shorter than nonce plus tag) are legacy plaintext and
// returned unchanged.
func (v *Vault) Decrypt(value string) (string, bool, error) {
	if value == "" {
		return "", false, nil
	}

	data, ok := v.sealedForm(value)
	if !ok {
		log.Printf("[VAULT] Value is not in sealed form, treating as legacy plaintext")
		return value, true, nil
	}

	nonce, ciphertext := data[:v.aead.NonceSize()], data[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUndecryptable, err)
	}
	return string(plaintext), false, nil
}

func (v *Vault) sealedForm(value string) ([]byte, bool) {
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, false
	}
	if len(data) < v.aead.NonceSize()+v.aead.Overhead() {
		return nil, false
	}
	return data, true
}

// BlindIndex returns a deterministic keyed hash of value for equality lookups
// on encrypted columns.
func (v *Vault) BlindIndex(value string) string {
	mac := hmac.New(sha256.New, v.indexKey)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

func deriveKey(password, salt string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), []byte(salt), 3, 32*1024, 4, keyLen)
}

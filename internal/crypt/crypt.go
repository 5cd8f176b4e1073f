package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	mu     sync.RWMutex
	aesGCM cipher.AEAD
)

// ErrShortCiphertext is returned when the payload is smaller than a nonce.
var ErrShortCiphertext = errors.New("ciphertext too short")

// Init sets up the AES-GCM cipher from a base64-encoded 32 byte key. An empty
// key disables encryption.
func Init(keyB64 string) error {
	mu.Lock()
	defer mu.Unlock()
	if keyB64 == "" {
		aesGCM = nil
		return nil
	}
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return fmt.Errorf("decode master key: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("master key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("cipher.NewGCM: %w", err)
	}
	aesGCM = gcm
	return nil
}

// Enabled reports whether a key has been configured.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return aesGCM != nil
}

// Encrypt returns a base64 ciphertext of the provided plaintext.
func Encrypt(plain string) (string, error) {
	mu.RLock()
	gcm := aesGCM
	mu.RUnlock()
	if gcm == nil {
		return "", errors.New("encryption is not configured")
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt converts a base64 ciphertext back to plaintext.
func Decrypt(ciphertextB64 string) (string, error) {
	mu.RLock()
	gcm := aesGCM
	mu.RUnlock()
	if gcm == nil {
		return "", errors.New("encryption is not configured")
	}
	data, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrShortCiphertext
	}
	nonce, ct := data[:nonceSize], data[nonceSize:]
	pt, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

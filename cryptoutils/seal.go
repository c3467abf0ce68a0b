package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters: time=1, memory=64*1024, threads=4, keyLen=32.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32

	sealSaltLen  = 16
	sealNonceLen = 12
)

// SealWithPassphrase encrypts data under a passphrase using Argon2id for key
// derivation and AES-GCM for authenticated encryption. A fresh random salt
// and nonce are drawn per call.
//
// Format: [salt (16 bytes)][nonce (12 bytes)][ciphertext].
func SealWithPassphrase(passphrase, data []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("passphrase must not be empty")
	}

	salt := make([]byte, sealSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	aesBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(aesBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, sealNonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	result := make([]byte, 0, sealSaltLen+sealNonceLen+len(data)+aesGCM.Overhead())
	result = append(result, salt...)
	result = append(result, nonce...)
	result = aesGCM.Seal(result, nonce, data, nil)
	return result, nil
}

// OpenWithPassphrase decrypts data sealed by SealWithPassphrase. A wrong
// passphrase or tampered ciphertext fails authentication.
func OpenWithPassphrase(passphrase, sealed []byte) ([]byte, error) {
	if len(sealed) < sealSaltLen+sealNonceLen {
		return nil, errors.New("sealed data too short")
	}

	salt := sealed[:sealSaltLen]
	nonce := sealed[sealSaltLen : sealSaltLen+sealNonceLen]
	ciphertext := sealed[sealSaltLen+sealNonceLen:]

	key := argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	aesBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(aesBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

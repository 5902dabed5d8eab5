package registry

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// applicationSalt is fixed per spec.md §4.3 ("a fixed application
// salt"): the salt's job here is domain separation from other uses of
// the same passphrase, not per-installation uniqueness, so a constant is
// correct and matches the original's hard-coded salt.
const applicationSalt = "sherpa-dns"

const (
	pbkdf2Iterations = 100_000
	keyLength        = 32
)

func deriveKey(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(applicationSalt), pbkdf2Iterations, keyLength, sha256.New)
}

func newGCM(passphrase string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase))
	if err != nil {
		return nil, fmt.Errorf("registry: build AES cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// encrypt seals plaintext and returns base64(nonce || ciphertext || tag),
// matching spec.md §4.3's on-wire form exactly.
func encrypt(passphrase, plaintext string) (string, error) {
	gcm, err := newGCM(passphrase)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("registry: generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// decrypt reverses encrypt. Any failure (bad base64, wrong key, wrong
// length, tampered payload) is returned as an error; the caller treats
// that as "sidecar present but undecryptable" per spec.md §4.3.
func decrypt(passphrase, wire string) (string, error) {
	gcm, err := newGCM(passphrase)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(wire)
	if err != nil {
		return "", fmt.Errorf("registry: decode sidecar payload: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("registry: sidecar payload too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("registry: decrypt sidecar payload: %w", err)
	}
	return string(plaintext), nil
}

// Package cryptox holds the key derivation and AEAD helpers behind sealed
// document references.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/argon2"
)

// DeriveKey stretches a configured secret into a 32-byte AES-256 key with
// Argon2id. Same inputs always give the same key.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// SealDeterministic encrypts plaintext with AES-GCM using a nonce derived
// from HMAC-SHA256(key, plaintext), so equal plaintexts under one key seal to
// equal outputs. The result is nonce || ciphertext.
//
// Deterministic sealing leaks equality of plaintexts and nothing else; it is
// meant for values that are themselves unique, such as content hashes.
//
// Example:
//
//	key := DeriveKey([]byte("deployment secret"), []byte("docattest-reference"))
//	sealed, err := SealDeterministic(key, []byte(contentHash))
//	if err != nil {
//	    return err
//	}
//	plain, err := Open(key, sealed)
func SealDeterministic(key, plaintext []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(plaintext)
	nonce := append([]byte(nil), mac.Sum(nil)[:aesgcm.NonceSize()]...)

	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses SealDeterministic.
func Open(key, sealed []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aesgcm.NonceSize() {
		return nil, errors.New("sealed value too short")
	}

	nonce, ciphertext := sealed[:aesgcm.NonceSize()], sealed[aesgcm.NonceSize():]
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

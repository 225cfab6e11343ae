// Package crypto seals settings export documents with a passphrase.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// MagicBytes prefixes every sealed document.
	MagicBytes = "XRCR"

	// FormatVersion of the sealed layout.
	FormatVersion = 1

	// Argon2id parameters (OWASP recommended)
	Argon2Time    = 3
	Argon2Memory  = 64 * 1024 // 64 MB
	Argon2Threads = 4
	Argon2KeyLen  = 32 // AES-256

	SaltSize  = 16
	NonceSize = 12 // GCM standard nonce size

	// HeaderSize is magic(4) + version(2) + salt(16) + nonce(12).
	HeaderSize = 4 + 2 + SaltSize + NonceSize
)

var (
	ErrNotSealed       = errors.New("not a sealed xreply export")
	ErrInvalidVersion  = errors.New("unsupported sealed export version")
	ErrOpenFailed      = errors.New("cannot open export: wrong passphrase or corrupted data")
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")
)

// DeriveKey derives an AES-256 key from a passphrase using Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts an export document with AES-256-GCM. The header is bound to
// the ciphertext as additional data, so tampering with it fails Open.
func Seal(document []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	header := make([]byte, HeaderSize)
	copy(header[0:4], MagicBytes)
	binary.BigEndian.PutUint16(header[4:6], FormatVersion)
	salt := header[6 : 6+SaltSize]
	nonce := header[6+SaltSize:]
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	out := make([]byte, HeaderSize, HeaderSize+len(document)+gcm.Overhead())
	copy(out, header)
	return gcm.Seal(out, nonce, document, header), nil
}

// Open decrypts data produced by Seal.
func Open(data []byte, passphrase string) ([]byte, error) {
	if !IsSealed(data) || len(data) < HeaderSize {
		return nil, ErrNotSealed
	}
	if binary.BigEndian.Uint16(data[4:6]) != FormatVersion {
		return nil, ErrInvalidVersion
	}

	header := data[:HeaderSize]
	salt := header[6 : 6+SaltSize]
	nonce := header[6+SaltSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[HeaderSize:], header)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}

// IsSealed reports whether data starts with the sealed export magic.
func IsSealed(data []byte) bool {
	return len(data) >= len(MagicBytes) && string(data[:len(MagicBytes)]) == MagicBytes
}

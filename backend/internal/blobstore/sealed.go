// Encrypts blobs at rest with XChaCha20-Poly1305.

package blobstore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the key length accepted by Sealed.
const KeySize = chacha20poly1305.KeySize

var errShortCiphertext = errors.New("sealed blob too short")

type sealedStore struct {
	inner Store
	aead  cipher.AEAD
}

// Sealed wraps inner so that every blob is encrypted before Put and
// authenticated and decrypted after Get.
//
// The stored format is nonce || ciphertext. Metadata is passed through in
// clear.
func Sealed(inner Store, key []byte) (Store, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &sealedStore{inner: inner, aead: aead}, nil
}

func (s *sealedStore) Put(ctx context.Context, data []byte, md Metadata) (Handle, error) {
	ns := s.aead.NonceSize()
	buf := make([]byte, ns, ns+len(data)+s.aead.Overhead())
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.inner.Put(ctx, s.aead.Seal(buf, buf, data, nil), md)
}

func (s *sealedStore) Get(ctx context.Context, h Handle) ([]byte, error) {
	data, err := s.inner.Get(ctx, h)
	if err != nil {
		return nil, err
	}
	ns := s.aead.NonceSize()
	if len(data) < ns {
		return nil, errShortCiphertext
	}
	out, err := s.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed blob %s: %w", h, err)
	}
	return out, nil
}

func (s *sealedStore) Close() error {
	return Close(s.inner)
}

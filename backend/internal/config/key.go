package config

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/maruel/fieldblob/backend/internal/blobstore"
)

// GenerateKey returns a random hex encoded key for store.key_file.
func GenerateKey() (string, error) {
	b := make([]byte, blobstore.KeySize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

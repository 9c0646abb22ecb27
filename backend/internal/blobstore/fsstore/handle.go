// Defines the content-addressed handle format used by the file store.

package fsstore

import (
	"encoding/base32"

	"github.com/maruel/fieldblob/backend/internal/blobstore"
)

// base32Enc uses base32 "Extended Hex" alphabet (0-9A-V) which is ASCII-sorted
// and case-insensitive safe for filesystems.
var base32Enc = base32.HexEncoding.WithPadding(base32.NoPadding)

const (
	handlePrefix = "sha256:"

	// emptyHandle is the handle for empty content (SHA-256 of nothing with size 0).
	// No file is ever written for it.
	emptyHandle = blobstore.Handle("sha256:SEOC8GKOVGE196NRUJ49IRTP4GJQSGF4CIDP6J54IMCHMU2IN1AG-0")
)

// validate checks that h has the form "sha256:<hash>-<size>" where hash is 52
// uppercase base32 hex chars (0-9, A-V) and size is decimal digits.
func validate(h blobstore.Handle) error {
	// "sha256:" (7) + 52 base32 + "-" + at least 1 digit = 61 minimum
	if len(h) < 61 || h[:7] != handlePrefix || h[59] != '-' {
		return blobstore.ErrInvalidHandle
	}
	for i := 7; i < 59; i++ {
		if !isBase32HexChar(h[i]) {
			return blobstore.ErrInvalidHandle
		}
	}
	for i := 60; i < len(h); i++ {
		if h[i] < '0' || h[i] > '9' {
			return blobstore.ErrInvalidHandle
		}
	}
	return nil
}

// isBase32HexChar checks if a byte is a valid base32 hex character (0-9, A-V uppercase only).
func isBase32HexChar(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'V')
}

package imaging

import (
	"crypto/sha256"
	"image"

	"github.com/corona10/goimagehash"

	"github.com/pwalhed/photodex/internal/errors"
)

// ContentHashSize is the width of the content fingerprint in bytes.
const ContentHashSize = sha256.Size

// Fingerprints derives both catalog fingerprints from normalized pixels:
// the sha256 content hash over canonical bytes (exact-duplicate key) and
// the 64-bit DCT perception hash (reserved for near-duplicate lookups).
// The perception hash is reinterpreted as a signed integer so it fits a
// SQLite INTEGER column.
func Fingerprints(img *image.NRGBA) (contentHash []byte, perceptualHash int64, err error) {
	canonical, err := CanonicalBytes(img)
	if err != nil {
		return nil, 0, err
	}
	sum := sha256.Sum256(canonical)

	phash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return sum[:], int64(phash.GetHash()), nil
}

// Package imaging normalizes image pixel data and derives the fingerprints
// and thumbnails the catalog stores. All hashing and dimension recording
// happens on orientation-normalized pixels, never on raw file bytes, so two
// differently-rotated encodings of the same photo are dedup-identical.
package imaging

import (
	"bytes"
	"image"
	"image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/pwalhed/photodex/internal/errors"
)

// Normalized holds the canonical form of a source image.
type Normalized struct {
	Image              *image.NRGBA
	Width              int // after orientation is applied
	Height             int
	OrientationApplied bool // true when the stored orientation required a transform
	SizeBytes          int64
}

// Normalizer decodes source files into canonical pixel data.
type Normalizer struct {
	// ThumbMaxEdge bounds the longest edge of generated thumbnails.
	ThumbMaxEdge int
}

// NewNormalizer returns a Normalizer with the given thumbnail bound.
func NewNormalizer(thumbMaxEdge int) *Normalizer {
	return &Normalizer{ThumbMaxEdge: thumbMaxEdge}
}

// Load reads and decodes the file at path, applies its stored EXIF
// orientation, and converts the pixels to NRGBA. Decode and read failures
// come back as DECODE_FAILED; they are per-file, recoverable conditions.
func (n *Normalizer) Load(path string) (*Normalized, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewDecodeFailed(path, err)
	}

	orientation := readOrientation(raw)

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.NewDecodeFailed(path, err)
	}

	normalized := applyOrientation(img, orientation)
	bounds := normalized.Bounds()

	return &Normalized{
		Image:              normalized,
		Width:              bounds.Dx(),
		Height:             bounds.Dy(),
		OrientationApplied: orientation > 1,
		SizeBytes:          int64(len(raw)),
	}, nil
}

// readOrientation extracts the EXIF orientation value (1..8).
// Missing or unreadable EXIF means 1 (no transform).
func readOrientation(raw []byte) int {
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil || orientation < 1 || orientation > 8 {
		return 1
	}
	return orientation
}

// applyOrientation maps the EXIF orientation value onto the corresponding
// pixel transform. Every branch returns NRGBA pixels.
func applyOrientation(img image.Image, orientation int) *image.NRGBA {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		// 90 degrees clockwise
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		// 90 degrees counter-clockwise
		return imaging.Rotate90(img)
	default:
		return imaging.Clone(img)
	}
}

// CanonicalBytes encodes normalized pixels deterministically. These bytes
// are the content-hash input: identical pixels always produce identical
// bytes regardless of the source file's container format or rotation.
func CanonicalBytes(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.NewInternal(err)
	}
	return buf.Bytes(), nil
}

// Thumbnail produces a JPEG thumbnail bounded by ThumbMaxEdge on its
// longest edge. Images already within the bound are not upscaled.
func (n *Normalizer) Thumbnail(img *image.NRGBA) ([]byte, error) {
	thumb := imaging.Fit(img, n.ThumbMaxEdge, n.ThumbMaxEdge, imaging.Lanczos)

	var buf bytes.Buffer
	err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return buf.Bytes(), nil
}

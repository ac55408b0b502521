// Package testutil synthesizes image fixtures for tests. No real photo
// assets are checked in; every test builds the bytes it needs.
package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"testing"
)

// MakeGradient returns a w x h NRGBA image with position-dependent pixels,
// so rotations and flips produce distinct pixel data.
func MakeGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

// WritePNG writes img to path as PNG (lossless).
func WritePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// WriteJPEG writes img to path as JPEG without any EXIF segment.
func WriteJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := os.WriteFile(path, EncodeJPEG(t, img), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// WriteJPEGWithOrientation writes img to path as JPEG carrying an EXIF
// orientation tag. The APP1 segment is spliced in directly after SOI.
func WriteJPEGWithOrientation(t *testing.T, path string, img image.Image, orientation int) {
	t.Helper()
	plain := EncodeJPEG(t, img)

	var out bytes.Buffer
	out.Write(plain[:2]) // SOI
	out.Write(exifSegment(orientation))
	out.Write(plain[2:])

	if err := os.WriteFile(path, out.Bytes(), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// EncodeJPEG encodes img at quality 90.
func EncodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// OrientationTIFF returns a minimal little-endian TIFF blob whose IFD0
// contains only the orientation tag. Parses with goexif.
func OrientationTIFF(orientation int) []byte {
	var buf bytes.Buffer
	// Writes to bytes.Buffer cannot fail.
	buf.WriteString("II")
	binary.Write(&buf, binary.LittleEndian, uint16(42))
	binary.Write(&buf, binary.LittleEndian, uint32(8)) // IFD0 offset

	binary.Write(&buf, binary.LittleEndian, uint16(1)) // one entry
	binary.Write(&buf, binary.LittleEndian, uint16(0x0112))
	binary.Write(&buf, binary.LittleEndian, uint16(3)) // SHORT
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint16(orientation))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // no next IFD
	return buf.Bytes()
}

// exifSegment wraps an orientation-only TIFF in a JPEG APP1 marker.
func exifSegment(orientation int) []byte {
	tiff := OrientationTIFF(orientation)
	payload := append([]byte("Exif\x00\x00"), tiff...)

	var seg bytes.Buffer
	seg.Write([]byte{0xFF, 0xE1})
	binary.Write(&seg, binary.BigEndian, uint16(len(payload)+2))
	seg.Write(payload)
	return seg.Bytes()
}

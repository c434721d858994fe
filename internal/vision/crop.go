// Package vision loads annotated images and extracts bounding-box regions
// as JPEG payloads for classification.
package vision

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png" // register PNG decoding
	"os"
)

// jpegQuality balances payload size against enough detail for species
// classification.
const jpegQuality = 90

// LoadImage decodes the image at path. JPEG and PNG are supported.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

// CropRegion extracts the COCO bbox [x, y, w, h] from img as a standalone
// RGBA image. The box is clamped to the image bounds; a degenerate box
// (zero or negative size after clamping) falls back to the whole image,
// since showing the model full context beats failing the annotation.
func CropRegion(img image.Image, bbox []float64) image.Image {
	bounds := img.Bounds()
	rect := bounds
	if len(bbox) == 4 {
		x0 := bounds.Min.X + int(bbox[0])
		y0 := bounds.Min.Y + int(bbox[1])
		x1 := x0 + int(bbox[2])
		y1 := y0 + int(bbox[3])
		r := image.Rect(x0, y0, x1, y1).Intersect(bounds)
		if !r.Empty() {
			rect = r
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

// EncodeJPEG renders img as a JPEG payload.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Region is a classified image crop ready for the agent boundary.
type Region struct {
	// JPEG is the encoded crop payload.
	JPEG []byte

	// Fingerprint is the sha256 of the payload, used as the decision
	// cache key.
	Fingerprint string
}

// ExtractRegion loads the image at path, crops the bbox, and returns the
// encoded region with its fingerprint.
func ExtractRegion(path string, bbox []float64) (*Region, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	data, err := EncodeJPEG(CropRegion(img, bbox))
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return &Region{JPEG: data, Fingerprint: hex.EncodeToString(sum[:])}, nil
}

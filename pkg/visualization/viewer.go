// Package visualization renders and exports segmented images.
package visualization

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"fieldseg/internal/models"
)

// GeneratedSuffix is appended to the identifier of a saved result
const GeneratedSuffix = "_generated"

// Viewer gives access to a stitched canvas
type Viewer struct {
	img *image.NRGBA

	// source extent inside the padded canvas
	width  int
	height int
}

// NewViewer creates a viewer over the image of res
func NewViewer(res *models.Result) *Viewer {
	return &Viewer{
		img:    res.Image,
		width:  res.SourceWidth,
		height: res.SourceHeight,
	}
}

// Image returns the full padded canvas
func (v *Viewer) Image() *image.NRGBA {
	return v.img
}

// ExtractRegion copies the w x h rectangle at (x, y) out of the canvas
func (v *Viewer) ExtractRegion(x, y, w, h int) (*image.NRGBA, error) {
	if x < 0 || y < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	b := v.img.Bounds()
	if x+w > b.Dx() || y+h > b.Dy() {
		return nil, fmt.Errorf("region %dx%d at (%d, %d) extends beyond %dx%d canvas", w, h, x, y, b.Dx(), b.Dy())
	}
	return imaging.Crop(v.img, image.Rect(x, y, x+w, y+h).Add(b.Min)), nil
}

// CropToSource returns the canvas cut back to the source image extent
func (v *Viewer) CropToSource() (*image.NRGBA, error) {
	return v.ExtractRegion(0, 0, v.width, v.height)
}

// Output returns the image that should be exported: the padded canvas, or
// the source extent when crop is set
func (v *Viewer) Output(crop bool) (*image.NRGBA, error) {
	if crop {
		return v.CropToSource()
	}
	return v.img, nil
}

// Save writes img to path. The format follows the file extension.
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image %s: %w", path, err)
	}
	return nil
}

// SaveResult writes res as <identifier>_generated.png under dir and returns
// the path
func SaveResult(res *models.Result, dir string, crop bool) (string, error) {
	img, err := NewViewer(res).Output(crop)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, res.Identifier+GeneratedSuffix+".png")
	return path, Save(img, path)
}

// EncodePNG returns img as PNG bytes
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64 returns img as a base64 encoded PNG
func EncodeBase64(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

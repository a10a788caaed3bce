package visualization

import (
	"encoding/base64"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldseg/internal/models"
)

var (
	sorghum    = color.NRGBA{R: 31, G: 119, B: 189, A: 255}
	background = color.NRGBA{R: 195, G: 195, B: 195, A: 255}
)

// result returns a 512x512 canvas whose top-left 300x300 is sorghum
func result() *models.Result {
	canvas := imaging.New(512, 512, background)
	canvas = imaging.Paste(canvas, imaging.New(300, 300, sorghum), image.Pt(0, 0))
	return &models.Result{
		Identifier:   "field1",
		Image:        canvas,
		SourceWidth:  300,
		SourceHeight: 300,
	}
}

func TestExtractRegion(t *testing.T) {
	v := NewViewer(result())

	region, err := v.ExtractRegion(290, 290, 20, 20)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 20), region.Bounds())
	assert.Equal(t, sorghum, region.NRGBAAt(0, 0))
	assert.Equal(t, background, region.NRGBAAt(19, 19))

	tests := []struct {
		name       string
		x, y, w, h int
	}{
		{"negative start", -1, 0, 10, 10},
		{"zero size", 0, 0, 0, 10},
		{"beyond canvas", 500, 0, 20, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ExtractRegion(tt.x, tt.y, tt.w, tt.h)
			assert.Error(t, err)
		})
	}
}

func TestOutputCropIsOptIn(t *testing.T) {
	v := NewViewer(result())

	full, err := v.Output(false)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 512, 512), full.Bounds())

	cropped, err := v.Output(true)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 300, 300), cropped.Bounds())
	assert.Equal(t, sorghum, cropped.NRGBAAt(299, 299))
}

func TestSaveResult(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	path, err := SaveResult(result(), dir, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "field1_generated.png"), path)

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 512, img.Bounds().Dx())

	path, err = SaveResult(result(), dir, true)
	require.NoError(t, err)
	img, err = imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
}

func TestEncodeBase64RoundTrip(t *testing.T) {
	res := result()
	s, err := EncodeBase64(res.Image)
	require.NoError(t, err)

	data, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	direct, err := EncodePNG(res.Image)
	require.NoError(t, err)
	assert.Equal(t, direct, data)
}

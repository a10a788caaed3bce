package stitching

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"fieldseg/internal/models"
)

func solid(size int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func shade(row, col int) color.NRGBA {
	return color.NRGBA{R: uint8(10 + row), G: uint8(20 + col), B: 30, A: 255}
}

func grid(id string, rows, cols, size int) []models.Record {
	var out []models.Record
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out = append(out, models.Record{Identifier: id, Row: r, Col: c, Image: solid(size, shade(r, c))})
		}
	}
	return out
}

func newStitcher(t *testing.T, size int, strict bool) *Stitcher {
	t.Helper()
	s, err := NewStitcher(Params{PatchSize: size, Strict: strict})
	require.NoError(t, err)
	return s
}

func TestStitchCanvasExtentAndPlacement(t *testing.T) {
	s := newStitcher(t, 256, false)
	canvas, err := s.Stitch("field1", grid("field1", 3, 2, 256))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 512, 768), canvas.Bounds())

	// tile (row=1, col=0) fills rows 256..512, cols 0..256 exactly
	want := shade(1, 0)
	for y := 256; y < 512; y++ {
		for x := 0; x < 256; x++ {
			require.Equal(t, want, canvas.NRGBAAt(x, y))
		}
	}
	assert.Equal(t, shade(0, 0), canvas.NRGBAAt(255, 255))
	assert.Equal(t, shade(2, 1), canvas.NRGBAAt(511, 767))
}

func TestStitchFiltersByIdentifier(t *testing.T) {
	records := append(grid("a", 1, 1, 4), grid("b", 2, 3, 4)...)
	s := newStitcher(t, 4, false)

	canvas, err := s.Stitch("a", records)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), canvas.Bounds())

	canvas, err = s.Stitch("b", records)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 12, 8), canvas.Bounds())
}

func TestStitchNoTiles(t *testing.T) {
	s := newStitcher(t, 4, false)
	_, err := s.Stitch("missing", grid("other", 1, 1, 4))
	assert.ErrorIs(t, err, ErrNoTilesFound)

	_, err = s.Stitch("missing", nil)
	assert.ErrorIs(t, err, ErrNoTilesFound)
}

func TestStitchGapFailOpen(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s, err := NewStitcher(Params{PatchSize: 4, Logger: zap.New(core)})
	require.NoError(t, err)

	records := grid("f", 2, 2, 4)
	records = append(records[:1], records[2:]...) // drop (0,1)

	canvas, err := s.Stitch("f", records)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), canvas.Bounds())
	assert.Equal(t, color.NRGBA{A: 255}, canvas.NRGBAAt(5, 1))
	assert.Equal(t, 1, logs.FilterMessage("stitching with missing tiles").Len())
}

func TestStitchGapStrict(t *testing.T) {
	s := newStitcher(t, 4, true)
	records := grid("f", 2, 2, 4)[:3]

	_, err := s.Stitch("f", records)
	assert.ErrorIs(t, err, ErrMissingTiles)
}

func TestStitchLastWriterWins(t *testing.T) {
	s := newStitcher(t, 4, true)
	red := color.NRGBA{R: 255, A: 255}
	records := append(grid("f", 1, 1, 4), models.Record{Identifier: "f", Image: solid(4, red)})

	canvas, err := s.Stitch("f", records)
	require.NoError(t, err)
	assert.Equal(t, red, canvas.NRGBAAt(2, 2))
}

func TestStitchRejectsWrongTileSize(t *testing.T) {
	s := newStitcher(t, 4, false)
	_, err := s.Stitch("f", []models.Record{{Identifier: "f", Image: solid(3, shade(0, 0))}})
	assert.ErrorIs(t, err, ErrTileSize)
}

func TestGroupAndIdentifiers(t *testing.T) {
	records := append(grid("b", 1, 2, 2), grid("a", 1, 1, 2)...)
	groups := Group(records)
	assert.Len(t, groups["a"], 1)
	assert.Len(t, groups["b"], 2)
	assert.Equal(t, []string{"a", "b"}, Identifiers(records))

	maxRow, maxCol := Extent(groups["b"])
	assert.Equal(t, 0, maxRow)
	assert.Equal(t, 1, maxCol)
}

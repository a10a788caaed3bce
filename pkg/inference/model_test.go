package inference

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldseg/pkg/classmap"
)

func TestArgmax(t *testing.T) {
	s := NewScores(3, 2, 2)
	// pixel 0 -> class 2, pixel 1 -> class 1, pixel 2 -> class 0, pixel 3 tie -> class 0
	s.Planes[0] = []float64{0.1, 0.2, 0.9, 0.5}
	s.Planes[1] = []float64{0.2, 0.7, 0.0, 0.5}
	s.Planes[2] = []float64{0.7, 0.1, 0.1, 0.5}

	m, err := Argmax(s)
	require.NoError(t, err)
	assert.Equal(t, []uint8{2, 1, 0, 0}, m.IDs)
	assert.Equal(t, 2, m.Width)
	assert.Equal(t, 2, m.Height)
}

func TestArgmaxRejectsBadShape(t *testing.T) {
	s := NewScores(2, 2, 2)
	s.Planes[1] = s.Planes[1][:3]
	_, err := Argmax(s)
	assert.ErrorIs(t, err, ErrScoreShape)

	_, err = Argmax(&Scores{Width: 1, Height: 1})
	assert.ErrorIs(t, err, ErrScoreShape)
}

func TestPredictChecksTileSize(t *testing.T) {
	model := ModelFunc(func(ctx context.Context, tile image.Image) (*Scores, error) {
		return NewScores(3, 4, 4), nil
	})
	_, err := Predict(context.Background(), model, image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	assert.ErrorIs(t, err, ErrScoreShape)
}

func TestPaletteModelReproducesMask(t *testing.T) {
	table := classmap.DefaultTable()
	mask := classmap.NewClassMap(4, 3)
	mask.Set(1, 0, 1)
	mask.Set(3, 2, 2)
	img, err := table.Encode(mask)
	require.NoError(t, err)
	// alias colour still lands on sorghum
	img.SetNRGBA(2, 1, color.NRGBA{R: 31, G: 119, B: 180, A: 255})
	mask.Set(2, 1, 1)

	got, err := Predict(context.Background(), NewPaletteModel(table), img)
	require.NoError(t, err)
	assert.Equal(t, mask, got)
}

func TestPaletteModelHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPaletteModel(classmap.DefaultTable()).Predict(ctx, image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPaletteModelPaddingIsBackground(t *testing.T) {
	tile := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	tile.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 127, B: 14, A: 255})

	got, err := Predict(context.Background(), NewPaletteModel(classmap.DefaultTable()), tile)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 2}, got.IDs)
}

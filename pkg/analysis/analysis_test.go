package analysis

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldseg/pkg/classmap"
)

func paint(t *testing.T, table *classmap.Table, m classmap.ClassMap) *image.NRGBA {
	t.Helper()
	img, err := table.Encode(m)
	require.NoError(t, err)
	return img
}

func TestRatiosSingleClass(t *testing.T) {
	table := classmap.DefaultTable()
	m := classmap.NewClassMap(10, 10)
	for i := range m.IDs {
		m.IDs[i] = 2
	}

	got := NewAnalyzer(table).Ratios(paint(t, table, m))
	assert.Equal(t, Coverage{"background": 0, "sorghum": 0, "weeds": 100}, got)
	assert.InDelta(t, 100, got.Total(), 1e-9)
}

func TestRatiosMixedSumsToHundred(t *testing.T) {
	table := classmap.DefaultTable()
	m := classmap.NewClassMap(20, 10)
	for i := range m.IDs {
		m.IDs[i] = uint8(i % 3)
	}

	got := NewAnalyzer(table).Ratios(paint(t, table, m))
	assert.InDelta(t, 100, got.Total(), 1e-9)
	assert.InDelta(t, 67.0/200*100, got["background"], 1e-9)
	assert.InDelta(t, 67.0/200*100, got["sorghum"], 1e-9)
	assert.InDelta(t, 66.0/200*100, got["weeds"], 1e-9)
}

func TestRatiosCountPaddingInTotal(t *testing.T) {
	table := classmap.DefaultTable()
	m := classmap.NewClassMap(4, 4)
	img := paint(t, table, m)
	// bottom half is stitching padding
	for y := 2; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}

	got := NewAnalyzer(table).Ratios(img)
	assert.InDelta(t, 50, got["background"], 1e-9)
	assert.InDelta(t, 50, got.Total(), 1e-9)
}

func TestRatiosTolerance(t *testing.T) {
	table := classmap.DefaultTable()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 250, G: 120, B: 20, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 31, G: 119, B: 180, A: 255})

	got := NewAnalyzer(table).Ratios(img)
	assert.Equal(t, Coverage{"background": 0, "sorghum": 50, "weeds": 50}, got)
	assert.Equal(t, []string{"background", "sorghum", "weeds"}, got.Names())
}

func TestEvaluatePerfectPrediction(t *testing.T) {
	table := classmap.DefaultTable()
	m := classmap.NewClassMap(4, 4)
	m.Set(1, 1, 1)
	m.Set(2, 2, 2)

	metrics, err := Evaluate(m, m, table)
	require.NoError(t, err)
	require.Len(t, metrics, 3)
	for _, cm := range metrics {
		assert.InDelta(t, 1, cm.IoU, 1e-6, cm.Class)
		assert.InDelta(t, 1, cm.Precision, 1e-6, cm.Class)
		assert.InDelta(t, 1, cm.Recall, 1e-6, cm.Class)
	}
	assert.Equal(t, "weeds", metrics[2].Class)
}

func TestConfusionAccumulates(t *testing.T) {
	table := classmap.DefaultTable()
	truth := classmap.NewClassMap(2, 2)
	truth.IDs = []uint8{1, 1, 0, 0}
	pred := classmap.NewClassMap(2, 2)
	pred.IDs = []uint8{1, 0, 0, 0}

	c := NewConfusion(table.Len())
	require.NoError(t, c.Add(pred, truth))
	require.NoError(t, c.Add(truth, truth))
	assert.Equal(t, 8, c.Pixels())

	metrics := c.Metrics(table)
	sorghum := metrics[1]
	// tp=3 fp=0 fn=1
	assert.InDelta(t, 0.75, sorghum.IoU, 1e-6)
	assert.InDelta(t, 1.0, sorghum.Precision, 1e-6)
	assert.InDelta(t, 0.75, sorghum.Recall, 1e-6)

	summary := Summarize(metrics)
	assert.Greater(t, summary.MeanIoU, 0.0)
	assert.Greater(t, summary.StdDevIoU, 0.0)
}

func TestConfusionRejectsMismatch(t *testing.T) {
	c := NewConfusion(3)
	assert.Error(t, c.Add(classmap.NewClassMap(2, 2), classmap.NewClassMap(2, 3)))

	bad := classmap.NewClassMap(1, 1)
	bad.IDs[0] = 7
	assert.ErrorIs(t, c.Add(bad, classmap.NewClassMap(1, 1)), classmap.ErrUnknownClass)
}

package classmap

import (
	"fmt"
	"image"
)

// ClassMap is a dense grid of class ids in row-major order
type ClassMap struct {
	Width  int
	Height int
	IDs    []uint8
}

// NewClassMap returns a background-filled class map
func NewClassMap(width, height int) ClassMap {
	return ClassMap{
		Width:  width,
		Height: height,
		IDs:    make([]uint8, width*height),
	}
}

// At returns the class id at x, y
func (m ClassMap) At(x, y int) int {
	return int(m.IDs[y*m.Width+x])
}

// Set stores class id at x, y
func (m ClassMap) Set(x, y, id int) {
	m.IDs[y*m.Width+x] = uint8(id)
}

// Encode renders a class map with the canonical class colours.
// The result is opaque with hard class edges.
func (t *Table) Encode(m ClassMap) (*image.NRGBA, error) {
	img := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i, id := range m.IDs {
		c, err := t.ColorOf(int(id))
		if err != nil {
			return nil, fmt.Errorf("pixel %d: %w", i, err)
		}
		off := i * 4
		img.Pix[off] = c.R
		img.Pix[off+1] = c.G
		img.Pix[off+2] = c.B
		img.Pix[off+3] = 255
	}
	return img, nil
}

// Decode converts a colour label image into class ids using Classify
func (t *Table) Decode(img image.Image) ClassMap {
	b := img.Bounds()
	m := NewClassMap(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			m.Set(x, y, t.Classify(img.At(b.Min.X+x, b.Min.Y+y)))
		}
	}
	return m
}

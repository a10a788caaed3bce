// Package inference defines the boundary to the segmentation network.
//
// The network itself is opaque: it takes one tile and returns a score plane
// per class. Everything downstream works on the per-pixel argmax.
package inference

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gonum.org/v1/gonum/floats"

	"fieldseg/pkg/classmap"
)

// ErrScoreShape is returned when a score tensor does not match its tile
var ErrScoreShape = errors.New("score tensor shape mismatch")

// Model predicts per-class scores for a single tile
type Model interface {
	Predict(ctx context.Context, tile image.Image) (*Scores, error)
}

// ModelFunc adapts a plain function to the Model interface
type ModelFunc func(ctx context.Context, tile image.Image) (*Scores, error)

// Predict calls f
func (f ModelFunc) Predict(ctx context.Context, tile image.Image) (*Scores, error) {
	return f(ctx, tile)
}

// Scores holds K score planes of Width x Height values.
// Planes[k][y*Width+x] is the score of class k at x, y.
type Scores struct {
	Width  int
	Height int
	Planes [][]float64
}

// NewScores allocates zeroed score planes for k classes
func NewScores(k, width, height int) *Scores {
	planes := make([][]float64, k)
	for i := range planes {
		planes[i] = make([]float64, width*height)
	}
	return &Scores{Width: width, Height: height, Planes: planes}
}

// Classes returns the number of score planes
func (s *Scores) Classes() int {
	return len(s.Planes)
}

// Validate checks that every plane holds Width*Height values
func (s *Scores) Validate() error {
	if len(s.Planes) == 0 {
		return fmt.Errorf("%w: no class planes", ErrScoreShape)
	}
	n := s.Width * s.Height
	for k, p := range s.Planes {
		if len(p) != n {
			return fmt.Errorf("%w: plane %d has %d values, want %d", ErrScoreShape, k, len(p), n)
		}
	}
	return nil
}

// Argmax reduces scores to a class map holding the best class per pixel.
// Ties resolve to the lowest class id.
func Argmax(s *Scores) (classmap.ClassMap, error) {
	if err := s.Validate(); err != nil {
		return classmap.ClassMap{}, err
	}
	if s.Classes() > 256 {
		return classmap.ClassMap{}, fmt.Errorf("%w: %d classes exceed the 8-bit id range", ErrScoreShape, s.Classes())
	}

	m := classmap.NewClassMap(s.Width, s.Height)
	column := make([]float64, s.Classes())
	for i := range m.IDs {
		for k, p := range s.Planes {
			column[k] = p[i]
		}
		m.IDs[i] = uint8(floats.MaxIdx(column))
	}
	return m, nil
}

// Predict runs model on tile and returns the argmax class map, checking the
// scores cover the tile
func Predict(ctx context.Context, model Model, tile image.Image) (classmap.ClassMap, error) {
	scores, err := model.Predict(ctx, tile)
	if err != nil {
		return classmap.ClassMap{}, err
	}
	b := tile.Bounds()
	if scores.Width != b.Dx() || scores.Height != b.Dy() {
		return classmap.ClassMap{}, fmt.Errorf("%w: scores %dx%d for a %dx%d tile",
			ErrScoreShape, scores.Width, scores.Height, b.Dx(), b.Dy())
	}
	return Argmax(scores)
}

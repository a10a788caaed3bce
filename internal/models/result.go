package models

import (
	"image"
)

// Result is the terminal artifact for one source image
type Result struct {
	// Identifier of the processed source image
	Identifier string

	// Image is the reconstructed class map rendered with the class colours.
	// Its dimensions are multiples of the patch size and never smaller than
	// the source.
	Image *image.NRGBA

	// SourceWidth and SourceHeight record the original extent so callers can
	// crop the padded canvas if they choose to
	SourceWidth  int
	SourceHeight int

	// Ratios maps class name to the percentage of canvas pixels of that class
	Ratios map[string]float64

	// Tiles is the number of tiles that went through the model
	Tiles int
}

// Outcome reports the result of one image in a batch.
// Exactly one of Result and Err is set.
type Outcome struct {
	Identifier string
	Result     *Result
	Err        error
}

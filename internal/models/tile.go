package models

import (
	"image"
)

// SourceImage is a single aerial image supplied for segmentation
type SourceImage struct {
	// Image is the decoded source pixels
	Image image.Image

	// Identifier groups every tile and prediction back to this image.
	// It is the original filename without its extension.
	Identifier string

	// Filename is the original filename of the image, if any
	Filename string
}

// Tile is a fixed-size square piece of a source image
type Tile struct {
	// Identifier of the source image this tile was cut from
	Identifier string

	// Row and Col are zero-based tile indices in the source grid
	Row int
	Col int

	// Image holds exactly PatchSize x PatchSize pixels, zero-padded
	// where the grid cell overhangs the source edge
	Image *image.NRGBA

	// Label is the co-located label tile, nil when no mask was supplied
	Label *image.NRGBA
}

// Record is a manifest entry describing one predicted tile.
// Stitching consumes records directly so that spatial placement never has
// to be re-derived from storage names.
type Record struct {
	Identifier string
	Row        int
	Col        int

	// Image is the colour-encoded predicted tile
	Image image.Image
}

// RecordOf returns the manifest record for a tile carrying img
func RecordOf(t Tile, img image.Image) Record {
	return Record{
		Identifier: t.Identifier,
		Row:        t.Row,
		Col:        t.Col,
		Image:      img,
	}
}

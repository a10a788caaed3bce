// Package stitching reassembles full-resolution images from predicted tiles.
package stitching

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"fieldseg/internal/models"
)

var (
	// ErrNoTilesFound is returned when no record matches the identifier
	ErrNoTilesFound = errors.New("no tiles found")

	// ErrMissingTiles is returned in strict mode when the observed grid has
	// holes
	ErrMissingTiles = errors.New("missing tiles")

	// ErrTileSize is returned for records whose image is not patch sized
	ErrTileSize = errors.New("tile has wrong size")
)

// Params configures a Stitcher
type Params struct {
	// PatchSize is the edge length of every tile
	PatchSize int

	// Strict turns grid holes into ErrMissingTiles. When false a missing
	// tile leaves its canvas region zero and is only logged.
	Strict bool

	// Logger receives warnings about holes. Nil disables logging.
	Logger *zap.Logger
}

// Stitcher places tiles on a canvas using their recorded row and column
type Stitcher struct {
	params Params
	logger *zap.Logger
}

// NewStitcher creates a stitcher
func NewStitcher(params Params) (*Stitcher, error) {
	if params.PatchSize <= 0 {
		return nil, fmt.Errorf("invalid patch size %d", params.PatchSize)
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stitcher{params: params, logger: logger}, nil
}

// Group splits a manifest by identifier, keeping record order within each
// group
func Group(records []models.Record) map[string][]models.Record {
	groups := make(map[string][]models.Record)
	for _, r := range records {
		groups[r.Identifier] = append(groups[r.Identifier], r)
	}
	return groups
}

// Identifiers returns the distinct identifiers of a manifest in sorted order
func Identifiers(records []models.Record) []string {
	groups := Group(records)
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Extent returns the largest row and column observed among records
func Extent(records []models.Record) (maxRow, maxCol int) {
	for _, r := range records {
		maxRow = max(maxRow, r.Row)
		maxCol = max(maxCol, r.Col)
	}
	return maxRow, maxCol
}

// Stitch reassembles the image of identifier from the matching records.
//
// The canvas spans (maxRow+1) x (maxCol+1) tiles of the rows and columns
// observed, is opaque black where nothing was placed, and is not cropped to
// the source extent. When two records share a position the later one wins.
func (s *Stitcher) Stitch(identifier string, records []models.Record) (*image.NRGBA, error) {
	var tiles []models.Record
	for _, r := range records {
		if r.Identifier == identifier {
			tiles = append(tiles, r)
		}
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoTilesFound, identifier)
	}

	p := s.params.PatchSize
	maxRow, maxCol := Extent(tiles)

	present := make([]bool, (maxRow+1)*(maxCol+1))
	for _, r := range tiles {
		if r.Row < 0 || r.Col < 0 {
			return nil, fmt.Errorf("tile (%d, %d) of %q has a negative position", r.Row, r.Col, identifier)
		}
		if r.Image == nil {
			return nil, fmt.Errorf("tile (%d, %d) of %q has no image", r.Row, r.Col, identifier)
		}
		b := r.Image.Bounds()
		if b.Dx() != p || b.Dy() != p {
			return nil, fmt.Errorf("%w: tile (%d, %d) of %q is %dx%d, want %dx%d",
				ErrTileSize, r.Row, r.Col, identifier, b.Dx(), b.Dy(), p, p)
		}
		present[r.Row*(maxCol+1)+r.Col] = true
	}

	if missing := holes(present, maxCol+1); len(missing) > 0 {
		if s.params.Strict {
			return nil, fmt.Errorf("%w for %q: %v", ErrMissingTiles, identifier, missing)
		}
		s.logger.Warn("stitching with missing tiles",
			zap.String("identifier", identifier),
			zap.Int("missing", len(missing)),
			zap.Any("cells", missing))
	}

	canvas := imaging.New((maxCol+1)*p, (maxRow+1)*p, color.NRGBA{A: 255})
	for _, r := range tiles {
		place(canvas, r.Image, r.Row*p, r.Col*p)
	}

	s.logger.Debug("stitched image",
		zap.String("identifier", identifier),
		zap.Int("tiles", len(tiles)),
		zap.Int("width", canvas.Bounds().Dx()),
		zap.Int("height", canvas.Bounds().Dy()))

	return canvas, nil
}

// place copies tile onto canvas with its top-left corner at (top, left),
// replacing whatever was there
func place(canvas *image.NRGBA, tile image.Image, top, left int) {
	b := tile.Bounds()
	draw.Draw(canvas, image.Rect(left, top, left+b.Dx(), top+b.Dy()), tile, b.Min, draw.Src)
}

// holes lists the [row, col] cells without a tile
func holes(present []bool, cols int) [][2]int {
	var missing [][2]int
	for i, ok := range present {
		if !ok {
			missing = append(missing, [2]int{i / cols, i % cols})
		}
	}
	return missing
}

// Package tiling splits source images into fixed-size square tiles for
// per-tile segmentation.
//
// The grid always starts at the top-left corner of the source. Cells that
// overhang the right or bottom edge are zero-padded outward, so a tile is
// always exactly PatchSize x PatchSize and nothing is ever cropped away.
package tiling

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"fieldseg/internal/models"
	"fieldseg/pkg/classmap"
)

var (
	// ErrInvalidPatchSize is returned for non-positive patch sizes
	ErrInvalidPatchSize = errors.New("invalid patch size")

	// ErrPaddingOverflow signals a negative pad amount. The grid arithmetic
	// makes it unreachable; seeing it means the crop logic is broken.
	ErrPaddingOverflow = errors.New("negative tile padding")

	// ErrLabelMismatch is returned when a label mask does not cover the
	// same extent as its source image
	ErrLabelMismatch = errors.New("label mask does not match source")

	// ErrNoLabel is returned when relevance filtering is requested without
	// a label mask to filter on
	ErrNoLabel = errors.New("relevance filtering needs a label mask")
)

// Encoder cuts source images into tiles
type Encoder struct {
	patchSize int
	table     *classmap.Table
	logger    *zap.Logger
}

// NewEncoder creates an encoder producing patchSize tiles.
// The table decides tile relevance when filtering is enabled.
func NewEncoder(patchSize int, table *classmap.Table, logger *zap.Logger) (*Encoder, error) {
	if patchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPatchSize, patchSize)
	}
	if table == nil {
		table = classmap.DefaultTable()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Encoder{
		patchSize: patchSize,
		table:     table,
		logger:    logger,
	}, nil
}

// PatchSize returns the tile edge length in pixels
func (e *Encoder) PatchSize() int {
	return e.patchSize
}

// Tile splits src into its grid of tiles in row-major order.
//
// label may be nil. When it is given it is tiled alongside the source with
// the same padding. With filter set, only tiles whose label tile contains a
// non-background pixel are returned; this is used when building training
// sets. Inference callers pass filter=false and receive every grid cell.
func (e *Encoder) Tile(src models.SourceImage, label image.Image, filter bool) ([]models.Tile, error) {
	if src.Image == nil {
		return nil, fmt.Errorf("source %q has no image", src.Identifier)
	}
	bounds := src.Image.Bounds()
	if label != nil && (label.Bounds().Dx() != bounds.Dx() || label.Bounds().Dy() != bounds.Dy()) {
		return nil, fmt.Errorf("%w: source %dx%d, label %dx%d", ErrLabelMismatch,
			bounds.Dx(), bounds.Dy(), label.Bounds().Dx(), label.Bounds().Dy())
	}
	if filter && label == nil {
		return nil, ErrNoLabel
	}

	rows, cols := Grid(bounds.Dx(), bounds.Dy(), e.patchSize)
	tiles := make([]models.Tile, 0, rows*cols)
	skipped := 0

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			tile := models.Tile{
				Identifier: src.Identifier,
				Row:        row,
				Col:        col,
			}

			var err error
			if label != nil {
				tile.Label, err = ExtractTile(label, row, col, e.patchSize)
				if err != nil {
					return nil, fmt.Errorf("label tile (%d, %d): %w", row, col, err)
				}
				if filter && !e.table.Relevant(tile.Label) {
					skipped++
					continue
				}
			}

			tile.Image, err = ExtractTile(src.Image, row, col, e.patchSize)
			if err != nil {
				return nil, fmt.Errorf("tile (%d, %d): %w", row, col, err)
			}
			tiles = append(tiles, tile)
		}
	}

	e.logger.Debug("tiled source image",
		zap.String("identifier", src.Identifier),
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
		zap.Int("rows", rows),
		zap.Int("cols", cols),
		zap.Int("kept", len(tiles)),
		zap.Int("skipped", skipped))

	return tiles, nil
}

// Grid returns the number of tile rows and columns covering a width x height
// image
func Grid(width, height, patchSize int) (rows, cols int) {
	return ceilDiv(height, patchSize), ceilDiv(width, patchSize)
}

// Cell returns the part of bounds covered by grid cell row, col before
// padding. It is empty when the cell lies entirely outside bounds.
func Cell(bounds image.Rectangle, row, col, patchSize int) image.Rectangle {
	r := image.Rect(col*patchSize, row*patchSize, (col+1)*patchSize, (row+1)*patchSize)
	return r.Add(bounds.Min).Intersect(bounds)
}

// ExtractTile copies grid cell row, col of img into a new patchSize tile.
// Pixels beyond the source edge are zero.
func ExtractTile(img image.Image, row, col, patchSize int) (*image.NRGBA, error) {
	if patchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPatchSize, patchSize)
	}
	cell := Cell(img.Bounds(), row, col, patchSize)

	padHeight := patchSize - cell.Dy()
	padWidth := patchSize - cell.Dx()
	if padHeight < 0 || padWidth < 0 {
		return nil, fmt.Errorf("%w: pad %dx%d", ErrPaddingOverflow, padWidth, padHeight)
	}

	if cell.Empty() {
		return imaging.New(patchSize, patchSize, color.NRGBA{}), nil
	}
	crop := imaging.Crop(img, cell)
	if padHeight == 0 && padWidth == 0 {
		return crop, nil
	}
	return imaging.Paste(imaging.New(patchSize, patchSize, color.NRGBA{}), crop, image.Pt(0, 0)), nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

package pipeline

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"go.uber.org/zap"

	"fieldseg/internal/models"
	"fieldseg/pkg/naming"
	"fieldseg/pkg/patchstore"
	"fieldseg/pkg/tiling"
)

// Training set layout under the Prepare output directory
const (
	ImageDir = "img_patches"
	LabelDir = "gt_patches"
)

// Labelled pairs a source image with its colour-encoded mask
type Labelled struct {
	Source models.SourceImage
	Mask   image.Image
}

// PrepareStats counts the tiles written and dropped by Prepare
type PrepareStats struct {
	Saved   int
	Skipped int

	// Failed lists the pairs that could not be prepared
	Failed []models.Outcome
}

// Prepare cuts every labelled image into tiles and writes image and mask
// tiles to ImageDir and LabelDir under out, under identical names. With
// tiling.relevanceFilter set, tiles whose mask is all background are
// skipped. A pair that fails is recorded in Failed and the remaining pairs
// are still prepared; the error return is for cancellation and unusable
// output directories.
func (p *Pipeline) Prepare(ctx context.Context, pairs []Labelled, out string) (PrepareStats, error) {
	var stats PrepareStats

	images, err := patchstore.NewDirStore(filepath.Join(out, ImageDir))
	if err != nil {
		return stats, err
	}
	labels, err := patchstore.NewDirStore(filepath.Join(out, LabelDir))
	if err != nil {
		return stats, err
	}

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		id := pair.Source.Identifier
		saved, skipped, err := p.preparePair(ctx, pair, images, labels)
		stats.Saved += saved
		stats.Skipped += skipped
		if err != nil {
			p.logger.Warn("failed to prepare image", zap.String("identifier", id), zap.Error(err))
			stats.Failed = append(stats.Failed, models.Outcome{Identifier: id, Err: err})
			continue
		}

		p.logger.Info("prepared training tiles",
			zap.String("identifier", id),
			zap.Int("saved", saved),
			zap.Int("skipped", skipped))
	}
	return stats, nil
}

// preparePair writes the tile pairs of one labelled image. saved counts the
// pairs written before any failure.
func (p *Pipeline) preparePair(ctx context.Context, pair Labelled, images, labels patchstore.Store) (saved, skipped int, err error) {
	if err := naming.ValidateIdentifier(pair.Source.Identifier); err != nil {
		return 0, 0, err
	}
	if pair.Mask == nil {
		return 0, 0, fmt.Errorf("%s: %w", pair.Source.Identifier, tiling.ErrNoLabel)
	}

	tiles, err := p.encoder.Tile(pair.Source, pair.Mask, p.cfg.Tiling.RelevanceFilter)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to tile %s: %w", pair.Source.Identifier, err)
	}

	b := pair.Source.Image.Bounds()
	rows, cols := tiling.Grid(b.Dx(), b.Dy(), p.encoder.PatchSize())
	skipped = rows*cols - len(tiles)
	for _, t := range tiles {
		if _, err := patchstore.Save(ctx, images, t.Identifier, t.Row, t.Col, naming.None, t.Image); err != nil {
			return saved, skipped, err
		}
		if _, err := patchstore.Save(ctx, labels, t.Identifier, t.Row, t.Col, naming.None, t.Label); err != nil {
			return saved, skipped, err
		}
		saved++
	}
	return saved, skipped, nil
}

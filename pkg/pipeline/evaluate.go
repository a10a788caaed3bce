package pipeline

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"fieldseg/internal/models"
	"fieldseg/pkg/analysis"
	"fieldseg/pkg/classmap"
	"fieldseg/pkg/inference"
	"fieldseg/pkg/naming"
	"fieldseg/pkg/patchstore"
	"fieldseg/pkg/tiling"
)

// Report holds the evaluation of one labelled image
type Report struct {
	Identifier string
	Tiles      int
	Pixels     int
	Metrics    []analysis.ClassMetrics
	Summary    analysis.Summary
}

// Evaluate predicts every tile of src and scores it against the co-located
// tile of mask. When keep is not nil, each ground truth and predicted tile
// is written to it for inspection.
func (p *Pipeline) Evaluate(ctx context.Context, src models.SourceImage, mask image.Image, keep patchstore.Store) (*Report, error) {
	if mask == nil {
		return nil, fmt.Errorf("%s: %w", src.Identifier, tiling.ErrNoLabel)
	}
	if err := naming.ValidateIdentifier(src.Identifier); err != nil {
		return nil, err
	}

	tiles, err := p.encoder.Tile(src, mask, false)
	if err != nil {
		return nil, fmt.Errorf("failed to tile %s: %w", src.Identifier, err)
	}

	conf := analysis.NewConfusion(p.table.Len())
	for _, tile := range tiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pred, err := inference.Predict(ctx, p.model, tile.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to predict tile (%d, %d) of %s: %w", tile.Row, tile.Col, tile.Identifier, err)
		}
		truth := p.table.Decode(tile.Label)
		if err := conf.Add(pred, truth); err != nil {
			return nil, err
		}

		if keep != nil {
			if err := p.keep(ctx, keep, tile.Identifier, tile.Row, tile.Col, pred, truth); err != nil {
				return nil, err
			}
		}
	}

	metrics := conf.Metrics(p.table)
	report := &Report{
		Identifier: src.Identifier,
		Tiles:      len(tiles),
		Pixels:     conf.Pixels(),
		Metrics:    metrics,
		Summary:    analysis.Summarize(metrics),
	}
	p.logger.Info("evaluated image",
		zap.String("identifier", src.Identifier),
		zap.Int("tiles", report.Tiles),
		zap.Float64("mean_iou", report.Summary.MeanIoU),
		zap.Float64("mean_f1", report.Summary.MeanF1))
	return report, nil
}

func (p *Pipeline) keep(ctx context.Context, s patchstore.Store, id string, row, col int, pred, truth classmap.ClassMap) error {
	for _, item := range []struct {
		suffix naming.Suffix
		m      classmap.ClassMap
	}{
		{naming.GroundTruth, truth},
		{naming.Predicted, pred},
	} {
		img, err := p.table.Encode(item.m)
		if err != nil {
			return err
		}
		if _, err := patchstore.Save(ctx, s, id, row, col, item.suffix, img); err != nil {
			return fmt.Errorf("failed to keep %s tile (%d, %d): %w", item.suffix, row, col, err)
		}
	}
	return nil
}

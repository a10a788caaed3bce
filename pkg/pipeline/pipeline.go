// Package pipeline runs source images through tiling, inference, stitching
// and coverage analysis.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fieldseg/internal/models"
	"fieldseg/pkg/analysis"
	"fieldseg/pkg/classmap"
	"fieldseg/pkg/config"
	"fieldseg/pkg/inference"
	"fieldseg/pkg/naming"
	"fieldseg/pkg/patchstore"
	"fieldseg/pkg/stitching"
	"fieldseg/pkg/tiling"
)

// Params holds everything a Pipeline needs
type Params struct {
	// Config supplies patch size, class table, staging and worker settings
	Config *config.Config

	// Model produces per-class scores for every tile
	Model inference.Model

	// Logger receives progress and cleanup warnings. Nil disables logging.
	Logger *zap.Logger
}

// Pipeline turns source images into segmented images and coverage ratios.
//
// A single image goes through these steps:
// 1. Cut the source into patch-sized tiles, zero-padding the edges
// 2. Predict a class map for every tile and render it with class colours
// 3. Optionally stage the predicted tiles in a run-scoped store
// 4. Stitch the predicted tiles back onto one canvas
// 5. Compute per-class coverage over the canvas
type Pipeline struct {
	cfg      *config.Config
	table    *classmap.Table
	model    inference.Model
	encoder  *tiling.Encoder
	stitcher *stitching.Stitcher
	analyzer *analysis.Analyzer
	logger   *zap.Logger
}

// New creates a pipeline from params
func New(params Params) (*Pipeline, error) {
	if params.Config == nil {
		return nil, errors.New("pipeline needs a configuration")
	}
	if params.Model == nil {
		return nil, errors.New("pipeline needs a model")
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	table, err := params.Config.ClassTable()
	if err != nil {
		return nil, fmt.Errorf("failed to build class table: %w", err)
	}
	encoder, err := tiling.NewEncoder(params.Config.Tiling.PatchSize, table, logger)
	if err != nil {
		return nil, err
	}
	stitcher, err := stitching.NewStitcher(stitching.Params{
		PatchSize: params.Config.Tiling.PatchSize,
		Strict:    params.Config.Stitching.Strict,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:      params.Config,
		table:    table,
		model:    params.Model,
		encoder:  encoder,
		stitcher: stitcher,
		analyzer: analysis.NewAnalyzer(table),
		logger:   logger,
	}, nil
}

// Table returns the class table shared by every stage
func (p *Pipeline) Table() *classmap.Table {
	return p.table
}

// Process segments one source image
func (p *Pipeline) Process(ctx context.Context, src models.SourceImage) (*models.Result, error) {
	if err := naming.ValidateIdentifier(src.Identifier); err != nil {
		return nil, err
	}
	log := p.logger.With(zap.String("identifier", src.Identifier))

	tiles, err := p.encoder.Tile(src, nil, false)
	if err != nil {
		return nil, fmt.Errorf("failed to tile %s: %w", src.Identifier, err)
	}

	var store patchstore.Store
	if p.cfg.Storage.Stage {
		scope := "run-" + uuid.New().String()
		store, err = patchstore.Open(p.cfg.Storage, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to open staging store: %w", err)
		}
		log.Debug("staging predicted tiles", zap.String("scope", scope))
		defer func() {
			// the run may have been cancelled; staged tiles still go
			removed := patchstore.Cleanup(context.WithoutCancel(ctx), store, src.Identifier, log)
			if err := store.Close(); err != nil {
				log.Warn("failed to close staging store", zap.Error(err))
			}
			log.Debug("removed staged tiles", zap.Int("count", removed))
		}()
	}

	records := make([]models.Record, 0, len(tiles))
	for _, tile := range tiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pred, err := p.predict(ctx, tile)
		if err != nil {
			return nil, err
		}
		if store != nil {
			if _, err := patchstore.Save(ctx, store, tile.Identifier, tile.Row, tile.Col, naming.Predicted, pred); err != nil {
				return nil, fmt.Errorf("failed to stage tile (%d, %d): %w", tile.Row, tile.Col, err)
			}
		}
		records = append(records, models.RecordOf(tile, pred))
	}

	if store != nil {
		records, err = patchstore.LoadManifest(ctx, store, src.Identifier, naming.Predicted, log)
		if err != nil {
			return nil, fmt.Errorf("failed to read staged tiles: %w", err)
		}
	}

	canvas, err := p.stitcher.Stitch(src.Identifier, records)
	if err != nil {
		return nil, err
	}

	bounds := src.Image.Bounds()
	result := &models.Result{
		Identifier:   src.Identifier,
		Image:        canvas,
		SourceWidth:  bounds.Dx(),
		SourceHeight: bounds.Dy(),
		Ratios:       p.analyzer.Ratios(canvas),
		Tiles:        len(tiles),
	}
	log.Info("processed image",
		zap.Int("tiles", result.Tiles),
		zap.Int("width", canvas.Bounds().Dx()),
		zap.Int("height", canvas.Bounds().Dy()))
	return result, nil
}

// predict runs the model on one tile and renders the class map
func (p *Pipeline) predict(ctx context.Context, tile models.Tile) (*image.NRGBA, error) {
	m, err := inference.Predict(ctx, p.model, tile.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to predict tile (%d, %d) of %s: %w", tile.Row, tile.Col, tile.Identifier, err)
	}
	img, err := p.table.Encode(m)
	if err != nil {
		return nil, fmt.Errorf("failed to render tile (%d, %d) of %s: %w", tile.Row, tile.Col, tile.Identifier, err)
	}
	return img, nil
}

// ProcessBatch segments srcs concurrently, at most processing.workers at a
// time. Every source gets an Outcome at its own index; one failing image
// does not stop the others.
func (p *Pipeline) ProcessBatch(ctx context.Context, srcs []models.SourceImage) []models.Outcome {
	outcomes := make([]models.Outcome, len(srcs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Processing.Workers)
	for i, src := range srcs {
		i, src := i, src
		g.Go(func() error {
			res, err := p.Process(gctx, src)
			outcomes[i] = models.Outcome{Identifier: src.Identifier, Result: res, Err: err}
			if err != nil {
				p.logger.Warn("failed to process image", zap.String("identifier", src.Identifier), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// LoadSource opens the image at path. The identifier is the sanitised file
// name without its extension.
func LoadSource(path string) (models.SourceImage, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return models.SourceImage{}, fmt.Errorf("failed to load image %s: %w", path, err)
	}
	return models.SourceImage{
		Image:      img,
		Identifier: naming.IdentifierFromFilename(path),
		Filename:   filepath.Base(path),
	}, nil
}

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fieldseg/internal/models"
	"fieldseg/pkg/analysis"
	"fieldseg/pkg/naming"
	"fieldseg/pkg/patchstore"
	"fieldseg/pkg/stitching"
	"fieldseg/pkg/visualization"
)

var (
	stitchOut    string
	stitchSuffix string
	stitchStrict bool
)

// stitchCmd reassembles images from a directory of stored tiles
var stitchCmd = &cobra.Command{
	Use:   "stitch [tile-dir]",
	Short: "Reassemble images from stored prediction tiles",
	Long: `Reads every tile in tile-dir whose name carries the given suffix, groups the
tiles by image identifier, stitches each group and writes
<identifier>_generated.png to --out. Missing tiles leave their region black
unless --strict is given.`,
	Args: cobra.ExactArgs(1),
	RunE: stitchTiles,
}

func init() {
	stitchCmd.Flags().StringVarP(&stitchOut, "out", "o", "", "Output directory (default: output.dir from config)")
	stitchCmd.Flags().StringVar(&stitchSuffix, "suffix", string(naming.Predicted), `Tile name suffix to stitch ("" for raw tiles)`)
	stitchCmd.Flags().BoolVar(&stitchStrict, "strict", false, "Fail when an image has missing tiles")
}

func stitchTiles(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	if cmd.Flags().Changed("out") {
		cfg.Output.Dir = stitchOut
	}
	if cmd.Flags().Changed("strict") {
		cfg.Stitching.Strict = stitchStrict
	}

	table, err := cfg.ClassTable()
	if err != nil {
		return err
	}
	stitcher, err := stitching.NewStitcher(stitching.Params{
		PatchSize: cfg.Tiling.PatchSize,
		Strict:    cfg.Stitching.Strict,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	store, err := patchstore.NewDirStore(filepath.Clean(args[0]))
	if err != nil {
		return err
	}
	records, err := patchstore.LoadAll(ctx, store, naming.Suffix(stitchSuffix), logger)
	if err != nil {
		return err
	}

	analyzer := analysis.NewAnalyzer(table)
	groups := stitching.Group(records)
	ids := stitching.Identifiers(records)
	results := make([]runResult, 0, len(ids))
	failed := 0
	for _, id := range ids {
		out, err := stitchOne(stitcher, analyzer, id, groups[id])
		if err != nil {
			logger.Warn("failed to stitch image", zap.String("identifier", id), zap.Error(err))
			out = runResult{Identifier: id, Error: err.Error()}
			failed++
		}
		results = append(results, out)
	}
	if err := writeJSON(cmd, results); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(ids))
	}
	return nil
}

// stitchOne stitches and saves the image of id
func stitchOne(stitcher *stitching.Stitcher, analyzer *analysis.Analyzer, id string, records []models.Record) (runResult, error) {
	canvas, err := stitcher.Stitch(id, records)
	if err != nil {
		return runResult{}, err
	}
	res := &models.Result{
		Identifier:   id,
		Image:        canvas,
		SourceWidth:  canvas.Bounds().Dx(),
		SourceHeight: canvas.Bounds().Dy(),
		Ratios:       analyzer.Ratios(canvas),
	}
	path, err := visualization.SaveResult(res, cfg.Output.Dir, false)
	if err != nil {
		return runResult{}, err
	}
	return runResult{
		Identifier: id,
		Width:      res.SourceWidth,
		Height:     res.SourceHeight,
		Ratios:     res.Ratios,
		Output:     path,
	}, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fieldseg/internal/models"
	"fieldseg/pkg/naming"
	"fieldseg/pkg/pipeline"
)

var (
	prepareImages string
	prepareMasks  string
	prepareOut    string
	prepareAll    bool
)

// prepareCmd builds a training set of tile pairs
var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Cut labelled images into training tiles",
	Long: `Pairs every image in --images with the mask of the same name in --masks,
cuts both into tiles and writes them to img_patches/ and gt_patches/ under
--out. Tiles whose mask holds only background are skipped unless --all is
given.`,
	RunE: prepareTiles,
}

func init() {
	prepareCmd.Flags().StringVar(&prepareImages, "images", "", "Directory of source images")
	prepareCmd.Flags().StringVar(&prepareMasks, "masks", "", "Directory of colour masks")
	prepareCmd.Flags().StringVarP(&prepareOut, "out", "o", "dataset", "Output directory")
	prepareCmd.Flags().BoolVar(&prepareAll, "all", false, "Keep tiles without foreground labels")
	_ = prepareCmd.MarkFlagRequired("images")
	_ = prepareCmd.MarkFlagRequired("masks")
}

func prepareTiles(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	if cmd.Flags().Changed("all") {
		cfg.Tiling.RelevanceFilter = !prepareAll
	}
	p, err := newPipeline()
	if err != nil {
		return err
	}

	masks, err := imageFiles(prepareMasks)
	if err != nil {
		return err
	}
	images, err := imageFiles(prepareImages)
	if err != nil {
		return err
	}

	var pairs []pipeline.Labelled
	var failed []models.Outcome
	attempted := 0
	for id, path := range images {
		maskPath, ok := masks[id]
		if !ok {
			logger.Warn("no mask for image", zap.String("image", path))
			continue
		}
		attempted++
		pair, err := loadPair(path, maskPath)
		if err != nil {
			logger.Warn("failed to load pair", zap.String("image", path), zap.Error(err))
			failed = append(failed, models.Outcome{Identifier: id, Err: err})
			continue
		}
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Source.Identifier < pairs[j].Source.Identifier
	})

	stats, err := p.Prepare(ctx, pairs, prepareOut)
	if err != nil {
		return err
	}
	failed = append(failed, stats.Failed...)
	sort.Slice(failed, func(i, j int) bool {
		return failed[i].Identifier < failed[j].Identifier
	})

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Saved %d tile pairs, skipped %d\n", stats.Saved, stats.Skipped)
	for _, f := range failed {
		fmt.Fprintf(w, "Failed %s: %v\n", f.Identifier, f.Err)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d images failed", len(failed), attempted)
	}
	return nil
}

func loadPair(imagePath, maskPath string) (pipeline.Labelled, error) {
	src, err := pipeline.LoadSource(imagePath)
	if err != nil {
		return pipeline.Labelled{}, err
	}
	mask, err := imaging.Open(maskPath)
	if err != nil {
		return pipeline.Labelled{}, fmt.Errorf("failed to load mask %s: %w", maskPath, err)
	}
	return pipeline.Labelled{Source: src, Mask: mask}, nil
}

// imageFiles maps identifier to path for every image file in dir
func imageFiles(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	files := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp":
			files[naming.IdentifierFromFilename(e.Name())] = filepath.Join(dir, e.Name())
		}
	}
	return files, nil
}

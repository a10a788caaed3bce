package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fieldseg/internal/models"
	"fieldseg/pkg/naming"
	"fieldseg/pkg/pipeline"
	"fieldseg/pkg/visualization"
)

var (
	runOutDir  string
	runBase64  bool
	runCrop    bool
	runWorkers int
)

// runCmd segments one or more images
var runCmd = &cobra.Command{
	Use:   "run [image...]",
	Short: "Segment images and report class coverage",
	Long: `Segments every image given on the command line. For each image a JSON line
with the identifier, canvas size and class coverage percentages is printed and
the stitched prediction is written as <identifier>_generated.png.

The saved image keeps the tile padding unless --crop is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImages,
}

func init() {
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "Output directory (default: output.dir from config)")
	runCmd.Flags().BoolVar(&runBase64, "base64", false, "Include the PNG as base64 in the JSON output")
	runCmd.Flags().BoolVar(&runCrop, "crop", false, "Crop saved images back to the source size")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "j", 0, "Images processed concurrently (default: processing.workers from config)")
}

// runResult is printed once per image
type runResult struct {
	Identifier  string             `json:"identifier"`
	Width       int                `json:"width,omitempty"`
	Height      int                `json:"height,omitempty"`
	Ratios      map[string]float64 `json:"ratios,omitempty"`
	ImageBase64 string             `json:"image_base64,omitempty"`
	Output      string             `json:"output,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func runImages(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	if cmd.Flags().Changed("out") {
		cfg.Output.Dir = runOutDir
	}
	if cmd.Flags().Changed("base64") {
		cfg.Output.Base64 = runBase64
	}
	if cmd.Flags().Changed("crop") {
		cfg.Output.CropToSource = runCrop
	}
	if runWorkers > 0 {
		cfg.Processing.Workers = runWorkers
	}

	p, err := newPipeline()
	if err != nil {
		return err
	}

	// unreadable images get an outcome of their own, in argument order
	outcomes := make([]models.Outcome, len(args))
	var srcs []models.SourceImage
	var slots []int
	for i, path := range args {
		src, err := pipeline.LoadSource(path)
		if err != nil {
			outcomes[i] = models.Outcome{Identifier: naming.IdentifierFromFilename(path), Err: err}
			logger.Warn("failed to load image", zap.String("path", path), zap.Error(err))
			continue
		}
		srcs = append(srcs, src)
		slots = append(slots, i)
	}
	for j, o := range p.ProcessBatch(ctx, srcs) {
		outcomes[slots[j]] = o
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	failed := 0
	for _, o := range outcomes {
		out := report(o)
		if out.Error != "" {
			failed++
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(args))
	}
	return nil
}

func report(o models.Outcome) runResult {
	if o.Err != nil {
		return runResult{Identifier: o.Identifier, Error: o.Err.Error()}
	}
	res := o.Result
	out := runResult{
		Identifier: res.Identifier,
		Width:      res.Image.Bounds().Dx(),
		Height:     res.Image.Bounds().Dy(),
		Ratios:     res.Ratios,
	}

	path, err := visualization.SaveResult(res, cfg.Output.Dir, cfg.Output.CropToSource)
	if err != nil {
		logger.Warn("failed to save result", zap.String("identifier", res.Identifier), zap.Error(err))
		out.Error = err.Error()
		return out
	}
	out.Output = path

	if cfg.Output.Base64 {
		img, err := visualization.NewViewer(res).Output(cfg.Output.CropToSource)
		if err == nil {
			out.ImageBase64, err = visualization.EncodeBase64(img)
		}
		if err != nil {
			out.Error = err.Error()
		}
	}
	return out
}

// writeJSON prints v as indented JSON
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

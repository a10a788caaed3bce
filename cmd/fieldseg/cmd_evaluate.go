package main

import (
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"fieldseg/pkg/patchstore"
	"fieldseg/pkg/pipeline"
)

var evaluateKeep string

// evaluateCmd scores predictions against a ground truth mask
var evaluateCmd = &cobra.Command{
	Use:   "evaluate [image] [mask]",
	Short: "Score predictions of an image against its mask",
	Long: `Predicts every tile of image and compares it with the co-located tile of
mask. Prints per-class IoU, precision, recall and F1 as JSON. With --keep the
ground truth and predicted tiles are written to that directory.`,
	Args: cobra.ExactArgs(2),
	RunE: evaluateImage,
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateKeep, "keep", "", "Directory to write groundtruth and predicted tiles to")
}

func evaluateImage(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	p, err := newPipeline()
	if err != nil {
		return err
	}

	src, err := pipeline.LoadSource(args[0])
	if err != nil {
		return err
	}
	mask, err := imaging.Open(args[1])
	if err != nil {
		return fmt.Errorf("failed to load mask %s: %w", args[1], err)
	}

	var keep patchstore.Store
	if evaluateKeep != "" {
		ds, err := patchstore.NewDirStore(evaluateKeep)
		if err != nil {
			return err
		}
		keep = ds
	}

	report, err := p.Evaluate(ctx, src, mask, keep)
	if err != nil {
		return err
	}
	return writeJSON(cmd, report)
}

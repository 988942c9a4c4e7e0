package main

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/smodf-client/internal/utils"
	"github.com/menta2k/smodf-client/pkg/processing"
)

func detectCommand(c *cli) *cobra.Command {
	var outDir, ext string
	var quality int

	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Run object detection on an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !utils.FileExists(args[0]) {
				return fmt.Errorf("image %q not found", args[0])
			}
			p := processing.NewProcessor()
			img, err := p.LoadImage(args[0])
			if err != nil {
				return err
			}

			store := c.app.Store
			store.DetectObjects(cmd.Context(), img)
			if msg := store.DetectionError(); msg != "" {
				return errors.New(msg)
			}

			if outDir != "" {
				if err := utils.EnsureDir(outDir); err != nil {
					return err
				}
				out := utils.GenerateOutputFilename(args[0], outDir, "", "_detections", ext)
				annotated := p.AnnotateDetections(img, store.DetectedObjects())
				if err := p.SaveImage(annotated, out, ext, quality, false); err != nil {
					return fmt.Errorf("failed to save annotated image: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "annotated:", out)
			}
			return printJSON(cmd.OutOrStdout(), store.Snapshot().Detection)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write an annotated copy of the image to this directory")
	cmd.Flags().StringVar(&ext, "ext", "png", "annotated image format: jpg|png|webp")
	cmd.Flags().IntVar(&quality, "quality", 92, "annotated image quality for jpg/webp")
	return cmd
}

func modelCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "model <image>",
		Short: "Generate a 3D model from an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := processing.NewProcessor().LoadImage(args[0])
			if err != nil {
				return err
			}

			store := c.app.Store
			before := len(store.ModelsList())
			store.ProcessImage(cmd.Context(), img)
			if len(store.ModelsList()) == before {
				return errors.New(store.ModelsError())
			}
			return printJSON(cmd.OutOrStdout(), store.Snapshot().Models)
		},
	}
}

func captureCommand(c *cli) *cobra.Command {
	var frames int

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Start the camera and run both pipelines on captured frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := c.app.Store
			ctx := cmd.Context()

			store.StartCamera(ctx)
			defer store.StopCamera()
			stream := store.CameraStream()
			if stream == nil {
				return errors.New(store.CameraError())
			}

			for i := 0; i < frames; i++ {
				img, err := stream.Frame(ctx)
				if err != nil {
					return err
				}
				if err := runPipelines(ctx, c, img); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), store.Snapshot())
		},
	}

	cmd.Flags().IntVarP(&frames, "frames", "n", 1, "number of frames to capture")
	return cmd
}

// runPipelines runs detection and model generation on img concurrently. A
// failing pipeline cancels the other one and its error is returned.
func runPipelines(ctx context.Context, c *cli, img image.Image) error {
	store := c.app.Store

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store.DetectObjects(gctx, img)
		if msg := store.DetectionError(); msg != "" {
			return fmt.Errorf("detection: %s", msg)
		}
		return nil
	})
	g.Go(func() error {
		before := len(store.ModelsList())
		store.ProcessImage(gctx, img)
		if len(store.ModelsList()) == before {
			return fmt.Errorf("model: %s", store.ModelsError())
		}
		return nil
	})
	return g.Wait()
}

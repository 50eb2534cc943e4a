package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"microvol/internal/display"
	"microvol/pkg/annotation"
)

var annotateSave bool

var annotateCmd = &cobra.Command{
	Use:   "annotate <image>",
	Short: "Draw line annotations on an image",
	Long: `Opens the image in a window. Drag with the left mouse button to draw a
line, press r to clear every line and Esc or q to finish. With --save the
annotated image and the list of line segments are written to the configured
output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnnotate(args[0], annotateSave)
	},
}

func init() {
	annotateCmd.Flags().BoolVar(&annotateSave, "save", false, "Save the annotated image and segments on exit")
	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate(path string, save bool) error {
	opts, err := annotation.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid annotation configuration: %w", err)
	}
	opts.Logger = log

	a, err := annotation.Open(path, opts)
	if err != nil {
		return err
	}

	err = display.Run(a, display.Options{
		Title:  "microvol - " + filepath.Base(path),
		Width:  cfg.Annotation.WindowWidth,
		Height: cfg.Annotation.WindowHeight,
		Logger: log,
	})
	if err != nil {
		return err
	}

	if err := a.EndSession(save); err != nil {
		return err
	}
	if save {
		imagePath, segmentsPath := a.OutputPaths()
		fmt.Printf("Saved %d segments to %s and %s\n", len(a.Segments()), imagePath, segmentsPath)
	} else {
		log.Info("annotations discarded", zap.Int("segments", len(a.Segments())))
	}
	return nil
}

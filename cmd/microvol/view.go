package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"microvol/pkg/preprocess"
	"microvol/pkg/visualization"
)

var (
	viewFile  string
	viewAxis  string
	viewIndex int
	viewOut   string
	viewAll   string
)

var viewCmd = &cobra.Command{
	Use:   "view <dir>",
	Short: "List TIFF stacks in a directory or export a slice of one",
	Long: `Without --file, lists the TIFF stacks in dir. With --file, preprocesses
the stack and writes one slice as PNG (the middle plane unless --axis and
--index say otherwise), or every slice along the axis with --all.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index := -1
		if cmd.Flags().Changed("index") {
			index = viewIndex
		}
		return runView(args[0], viewFile, viewAxis, index, viewOut, viewAll)
	},
}

func init() {
	viewCmd.Flags().StringVarP(&viewFile, "file", "f", "", "TIFF stack in dir to load")
	viewCmd.Flags().StringVar(&viewAxis, "axis", "plane", "View axis: plane, row or column")
	viewCmd.Flags().IntVar(&viewIndex, "index", 0, "Slice index along the axis (default: middle)")
	viewCmd.Flags().StringVarP(&viewOut, "out", "o", "slice.png", "Output PNG file")
	viewCmd.Flags().StringVar(&viewAll, "all", "", "Write every slice along the axis into this directory")
	rootCmd.AddCommand(viewCmd)
}

func runView(dir, file, axisName string, index int, out, allDir string) error {
	pipeline, err := preprocess.NewPipelineFromConfig(cfg, preprocess.WithLogger(log))
	if err != nil {
		return err
	}
	session := visualization.NewSession(pipeline, log)
	defer session.Close()

	if err := session.SetDirectory(dir); err != nil {
		return err
	}
	if file == "" {
		files := session.Files()
		if len(files) == 0 {
			fmt.Printf("No TIFF stacks in %s\n", dir)
			return nil
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	}

	axis, err := visualization.ParseAxis(axisName)
	if err != nil {
		return err
	}
	if err := session.Select(file); err != nil {
		return err
	}
	if err := session.Load(); err != nil {
		fmt.Println(session.Status())
		return err
	}
	viewer := session.Viewer()

	if allDir != "" {
		n, err := viewer.SaveSliceSequence(axis, allDir)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %d %s slices to %s\n", n, visualization.AxisName(axis), allDir)
		return nil
	}

	if index < 0 {
		index = viewer.SliceCount(axis) / 2
	}
	img, err := session.Slice(axis, index)
	if err != nil {
		return err
	}
	if err := viewer.SaveSlice(img, out); err != nil {
		return fmt.Errorf("failed to save slice: %w", err)
	}
	fmt.Printf("Saved %s slice %d of %d to %s\n", visualization.AxisName(axis), index, viewer.SliceCount(axis), out)
	return nil
}

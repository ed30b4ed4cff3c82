package main

import (
	"fmt"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/maauso/inspectmedia/internal/config"
	"github.com/maauso/inspectmedia/internal/frames"
	"github.com/maauso/inspectmedia/internal/grid"
)

func newFramesCommand(ctx *commandContext, defaults *config.Config) *cobra.Command {
	var (
		output string
		count  int
		width  float64
	)

	cmd := &cobra.Command{
		Use:   "frames <video>",
		Short: "Sample evenly spaced frames into a PNG grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 || count > grid.Cells {
				return fmt.Errorf("--count must be between 1 and %d", grid.Cells)
			}

			sampler := frames.NewSampler(frames.NewFFmpegOpener(ctx.ffmpegPath, ctx.prober()),
				frames.WithTimeout(defaults.FrameTimeout),
				frames.WithLogger(ctx.logger()),
			)
			set := sampler.Sample(cmd.Context(), args[0], count)
			layout := grid.Assemble(set, width, grid.Point{})

			f, err := os.Create(output) // #nosec G304 - path is a command argument
			if err != nil {
				return err
			}
			if err := png.Encode(f, grid.Render(layout, 1)); err != nil {
				_ = f.Close()
				return fmt.Errorf("encode grid: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			okColor.Fprintf(out, "✓ %s", output)
			if n := set.Placeholders(); n > 0 {
				warnColor.Fprintf(out, " (%d of %d frames are placeholders)", n, count)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "frames.png", "Output PNG")
	flags.IntVarP(&count, "count", "n", defaults.FrameCount, "Number of frames to sample")
	flags.Float64Var(&width, "width", 1200, "Grid width in pixels")
	return cmd
}

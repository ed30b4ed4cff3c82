package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maauso/inspectmedia/internal/config"
	"github.com/maauso/inspectmedia/internal/frames"
	"github.com/maauso/inspectmedia/internal/report"
)

func newReportCommand(ctx *commandContext, defaults *config.Config) *cobra.Command {
	var (
		output string
		items  []string
		count  int
	)

	cmd := &cobra.Command{
		Use:   "report <manifest.yaml>",
		Short: "Render the media grids of inspection items to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := report.LoadManifest(args[0])
			if err != nil {
				return err
			}
			if len(items) == 0 {
				items = manifest.ItemIDs()
			}

			logger := ctx.logger()
			sampler := frames.NewSampler(frames.NewFFmpegOpener(ctx.ffmpegPath, ctx.prober()),
				frames.WithTimeout(defaults.FrameTimeout),
				frames.WithLogger(logger),
			)
			builder := report.NewBuilder(manifest, sampler,
				report.WithFrameCount(count),
				report.WithLogger(logger),
			)

			f, err := os.Create(output) // #nosec G304 - path is a command argument
			if err != nil {
				return err
			}
			if err := builder.WritePDF(cmd.Context(), f, items); err != nil {
				_ = f.Close()
				_ = os.Remove(output)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			okColor.Fprintf(cmd.OutOrStdout(), "✓ %s", output)
			fmt.Fprintf(cmd.OutOrStdout(), " (%d items)\n", len(items))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "report.pdf", "Output PDF")
	flags.StringSliceVar(&items, "item", nil, "Item ids to include, in order (default: every item)")
	flags.IntVarP(&count, "count", "n", defaults.FrameCount, "Frames per item")
	return cmd
}

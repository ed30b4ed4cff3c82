package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maauso/inspectmedia/internal/config"
	"github.com/maauso/inspectmedia/internal/media"
)

type commandContext struct {
	ffmpegPath  string
	ffprobePath string
	logLevel    string
	noColor     bool
}

func (c *commandContext) logger() *slog.Logger {
	cfg := &config.Config{LogFormat: "text", LogLevel: c.logLevel}
	return cfg.NewLogger()
}

func (c *commandContext) prober() media.Prober {
	return media.NewFFprobe(c.ffprobePath)
}

func newRootCommand() *cobra.Command {
	defaults := config.Defaults()
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "mediactl",
		Short:         "Validate, transcode and sample inspection media",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if ctx.noColor {
				disableColor()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.ffmpegPath, "ffmpeg", defaults.FFmpegPath, "Path to the ffmpeg binary")
	flags.StringVar(&ctx.ffprobePath, "ffprobe", defaults.FFprobePath, "Path to the ffprobe binary")
	flags.StringVar(&ctx.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.BoolVar(&ctx.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newValidateCommand(ctx))
	rootCmd.AddCommand(newProbeCommand(ctx))
	rootCmd.AddCommand(newTranscodeCommand(ctx, defaults))
	rootCmd.AddCommand(newFramesCommand(ctx, defaults))
	rootCmd.AddCommand(newReportCommand(ctx, defaults))

	return rootCmd
}

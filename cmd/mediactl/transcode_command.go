package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/maauso/inspectmedia/internal/config"
	"github.com/maauso/inspectmedia/internal/ingest"
	"github.com/maauso/inspectmedia/internal/progress"
	"github.com/maauso/inspectmedia/internal/storage"
	"github.com/maauso/inspectmedia/internal/transcode"
)

func newTranscodeCommand(ctx *commandContext, defaults *config.Config) *cobra.Command {
	var (
		output    string
		threshold int64
		lockFile  string
		crf       int
	)

	cmd := &cobra.Command{
		Use:   "transcode <video>",
		Short: "Re-encode a video into a small audio-free MP4",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			if output == "" {
				output = strings.TrimSuffix(in, filepath.Ext(in)) + "_processed.mp4"
			}

			f, err := os.Open(in) // #nosec G304 - path is a command argument
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			st, err := f.Stat()
			if err != nil {
				return err
			}

			store, err := storage.NewLocalStorage("", filepath.Dir(output))
			if err != nil {
				return err
			}

			logger := ctx.logger()
			profile := transcode.DefaultProfile()
			if crf > 0 {
				profile.CRF = crf
			}
			t := transcode.New(store, ctx.prober(),
				transcode.WithFFmpegPath(ctx.ffmpegPath),
				transcode.WithLockFile(lockFile),
				transcode.WithProfile(profile),
				transcode.WithLogger(logger),
			)
			ing := ingest.New(t, ingest.WithThreshold(threshold), ingest.WithLogger(logger))

			report, finish := progressReporter(cmd.ErrOrStderr())
			res, err := ing.Process(cmd.Context(), f, st.Size(), filepath.Base(in), filepath.Base(output), report)
			finish()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			okColor.Fprintf(out, "✓ %s\n", res.OutputPath)
			fmt.Fprintf(out, "  %s → %s (%.0f%% of input), %.1fs\n",
				humanize.IBytes(uint64(res.InputSize)),
				humanize.IBytes(uint64(res.OutputSize)),
				res.CompressionRatio*100,
				res.Duration,
			)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "Output file (default <input>_processed.mp4)")
	flags.Int64Var(&threshold, "chunk-threshold", defaults.LargeFileThreshold, "Inputs above this many bytes are read in chunks")
	flags.StringVar(&lockFile, "lock-file", defaults.LockFile, "Lock file shared by concurrent transcodes on this host")
	flags.IntVar(&crf, "crf", 0, "Override the encoder CRF")
	return cmd
}

// progressReporter draws a bar on terminals and prints phase changes otherwise.
func progressReporter(w io.Writer) (report progress.Func, finish func()) {
	if !isTerminal(w) {
		var last progress.Phase
		report = func(e progress.Event) {
			if e.Phase != last {
				last = e.Phase
				fmt.Fprintf(w, "%s...\n", e.Phase)
			}
		}
		finish = func() { fmt.Fprintln(w, "done") }
		return report, finish
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("reading"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
	)
	report = func(e progress.Event) {
		bar.Describe(string(e.Phase))
		_ = bar.Set(int(e.Percent))
	}
	finish = func() {
		_ = bar.Finish()
		fmt.Fprintln(w)
	}
	return report, finish
}

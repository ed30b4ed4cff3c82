package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maauso/inspectmedia/internal/media"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Show container and stream information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := ctx.prober().Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintln(out, renderTable(probeRows(info)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func probeRows(info *media.Info) [][2]string {
	rows := [][2]string{
		{"Duration", fmt.Sprintf("%.2fs", info.Duration)},
		{"Size", humanize.IBytes(uint64(max(info.Size, 0)))},
		{"Bitrate", humanize.SI(float64(info.Bitrate), "bit/s")},
	}
	if v := info.Video; v != nil {
		rows = append(rows,
			[2]string{"Video codec", v.Codec},
			[2]string{"Resolution", fmt.Sprintf("%dx%d", v.Width, v.Height)},
			[2]string{"Frame rate", strconv.FormatFloat(v.FPS, 'f', 2, 64)},
		)
	} else {
		rows = append(rows, [2]string{"Video", "none"})
	}
	rows = append(rows, [2]string{"Audio streams", strconv.Itoa(info.AudioStreams)})
	if a := info.Audio; a != nil {
		rows = append(rows, [2]string{"Audio codec", a.Codec})
	}
	return rows
}

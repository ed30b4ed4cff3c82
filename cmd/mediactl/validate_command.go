package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/maauso/inspectmedia/internal/media"
	"github.com/maauso/inspectmedia/internal/validate"
)

var errInvalidFiles = errors.New("one or more files failed validation")

func newValidateCommand(_ *commandContext) *cobra.Command {
	var mimeType string

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check files against the upload rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := validate.New()
			out := cmd.OutOrStdout()
			failed := 0

			for _, path := range args {
				info, err := assetInfo(path, mimeType)
				if err != nil {
					return err
				}

				res := v.Validate(info)
				if res.OK {
					okColor.Fprintf(out, "✓ %s", info.Filename)
					dimColor.Fprintf(out, " (%s, %s)\n", info.MIMEType, humanize.IBytes(uint64(info.Size)))
					continue
				}

				failed++
				failColor.Fprintf(out, "✗ %s\n", info.Filename)
				for _, viol := range res.Violations {
					warnColor.Fprintf(out, "    %s: %s\n", viol.Code, viol.Message)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%w (%d of %d)", errInvalidFiles, failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mimeType, "mime", "", "Declared MIME type (detected from content when empty)")
	return cmd
}

// assetInfo describes a local file the way an upload would be described.
func assetInfo(path, mimeType string) (media.AssetInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return media.AssetInfo{}, err
	}
	if mimeType == "" {
		mt, err := mimetype.DetectFile(path)
		if err != nil {
			return media.AssetInfo{}, fmt.Errorf("detect type of %s: %w", path, err)
		}
		mimeType = mt.String()
	}
	return media.AssetInfo{
		Filename: filepath.Base(path),
		MIMEType: mimeType,
		Size:     st.Size(),
	}, nil
}

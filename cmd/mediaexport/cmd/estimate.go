package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/astralstream/mediaexport/internal/export"
	"github.com/astralstream/mediaexport/pkg/bytesize"
	"github.com/astralstream/mediaexport/pkg/duration"
)

var (
	estimateQuality   string
	estimateFormat    string
	estimateStart     string
	estimateEnd       string
	estimateWidth     int
	estimateHeight    int
	estimateBitrate   int
	estimateFrameRate int
)

// estimateCmd represents the estimate command.
var estimateCmd = &cobra.Command{
	Use:   "estimate <source>",
	Short: "Estimate the output size of an export",
	Long: `Estimate the output file size for a source, quality tier, and trim
range, and suggest an output filename. The estimate is planned bitrate times
trimmed duration; actual sizes vary with content.`,
	Args: cobra.ExactArgs(1),
	RunE: runEstimate,
}

func init() {
	estimateCmd.Flags().StringVarP(&estimateQuality, "quality", "q", "", "quality tier (low, medium, high, ultra, original)")
	estimateCmd.Flags().StringVarP(&estimateFormat, "format", "f", "", "output format (mp4, webm, matroska)")
	estimateCmd.Flags().StringVar(&estimateStart, "start", "", "trim start (e.g. 1m30s or 90)")
	estimateCmd.Flags().StringVar(&estimateEnd, "end", "", "trim end (e.g. 2m or 120)")
	estimateCmd.Flags().IntVar(&estimateWidth, "width", export.UnsetTarget, "target width in pixels (requires --height; default: source)")
	estimateCmd.Flags().IntVar(&estimateHeight, "height", export.UnsetTarget, "target height in pixels (requires --width; default: source)")
	estimateCmd.Flags().IntVar(&estimateBitrate, "bitrate", export.UnsetTarget, "target bitrate in bits per second (default: derived from quality)")
	estimateCmd.Flags().IntVar(&estimateFrameRate, "frame-rate", export.UnsetTarget, "target frame rate (default: source)")
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	source := args[0]

	quality, err := export.ParseQuality(pickDefault(estimateQuality, cfg.Export.DefaultQuality))
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(pickDefault(estimateFormat, cfg.Export.DefaultFormat))
	if err != nil {
		return err
	}
	start, end, err := parseTrimRange(estimateStart, estimateEnd)
	if err != nil {
		return err
	}

	size := export.EstimateOutputSize(export.Options{
		SourcePath:      source,
		Quality:         quality,
		TrimStartMicros: start,
		TrimEndMicros:   end,
		TargetWidth:     estimateWidth,
		TargetHeight:    estimateHeight,
		TargetBitrate:   estimateBitrate,
		TargetFrameRate: estimateFrameRate,
	})
	name := export.SuggestOutputName(source, quality, format)

	fmt.Printf("Estimated size: %s (%d bytes)\n", bytesize.Format(size), size)
	fmt.Printf("Suggested name: %s\n", name)
	return nil
}

// pickDefault returns the flag value, falling back to the config default.
func pickDefault(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

// parseTrimRange turns CLI trim flags into microsecond boundaries, using the
// unset sentinel for absent flags.
func parseTrimRange(startFlag, endFlag string) (int64, int64, error) {
	start := export.UnsetMicros
	end := export.UnsetMicros

	if startFlag != "" {
		d, err := duration.Parse(startFlag)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing --start: %w", err)
		}
		start = duration.Micros(d)
	}
	if endFlag != "" {
		d, err := duration.Parse(endFlag)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing --end: %w", err)
		}
		end = duration.Micros(d)
	}
	return start, end, nil
}

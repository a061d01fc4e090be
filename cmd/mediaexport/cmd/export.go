package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/astralstream/mediaexport/internal/database"
	"github.com/astralstream/mediaexport/internal/export"
	"github.com/astralstream/mediaexport/internal/repository"
	"github.com/astralstream/mediaexport/pkg/bytesize"
	"github.com/astralstream/mediaexport/pkg/duration"
)

var (
	exportOutput    string
	exportQuality   string
	exportFormat    string
	exportStart     string
	exportEnd       string
	exportNoAudio   bool
	exportHistory   bool
	exportWidth     int
	exportHeight    int
	exportBitrate   int
	exportFrameRate int
)

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export <source>",
	Short: "Export a trimmed copy of a video file",
	Long: `Export copies coded samples from the source into a new container,
optionally trimmed to a time range, without re-encoding. Trim starts snap to
the nearest preceding sync sample.

Interrupting with Ctrl-C cancels the export and removes the partial output.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file path (default: suggested name in the configured output directory)")
	exportCmd.Flags().StringVarP(&exportQuality, "quality", "q", "", "quality tier (low, medium, high, ultra, original)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "output format (mp4, webm, matroska)")
	exportCmd.Flags().StringVar(&exportStart, "start", "", "trim start (e.g. 1m30s or 90)")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "trim end (e.g. 2m or 120)")
	exportCmd.Flags().BoolVar(&exportNoAudio, "no-audio", false, "drop audio tracks")
	exportCmd.Flags().BoolVar(&exportHistory, "history", false, "record this export in the history database")
	exportCmd.Flags().IntVar(&exportWidth, "width", export.UnsetTarget, "target width in pixels (requires --height; default: source)")
	exportCmd.Flags().IntVar(&exportHeight, "height", export.UnsetTarget, "target height in pixels (requires --width; default: source)")
	exportCmd.Flags().IntVar(&exportBitrate, "bitrate", export.UnsetTarget, "target bitrate in bits per second (default: derived from quality)")
	exportCmd.Flags().IntVar(&exportFrameRate, "frame-rate", export.UnsetTarget, "target frame rate (default: source)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	source := args[0]

	quality, err := export.ParseQuality(pickDefault(exportQuality, cfg.Export.DefaultQuality))
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(pickDefault(exportFormat, cfg.Export.DefaultFormat))
	if err != nil {
		return err
	}
	start, end, err := parseTrimRange(exportStart, exportEnd)
	if err != nil {
		return err
	}

	output := exportOutput
	if output == "" {
		output = filepath.Join(cfg.Storage.OutputDir, export.SuggestOutputName(source, quality, format))
	}

	opts := export.Options{
		SourcePath:      source,
		OutputPath:      output,
		Format:          format,
		Quality:         quality,
		TrimStartMicros: start,
		TrimEndMicros:   end,
		IncludeAudio:    !exportNoAudio,
		TargetWidth:     exportWidth,
		TargetHeight:    exportHeight,
		TargetBitrate:   exportBitrate,
		TargetFrameRate: exportFrameRate,
	}

	if max := cfg.Storage.MaxOutputSize.Int64(); max > 0 {
		estimated := export.EstimateOutputSize(opts)
		if estimated > max {
			return fmt.Errorf("estimated output size %s exceeds storage.max_output_size %s",
				bytesize.Format(estimated), bytesize.Format(max))
		}
	}

	exporterCfg := export.Config{
		FragmentSamples:    cfg.Export.FragmentSamples,
		KeepPartialOnError: cfg.Export.KeepPartialOnError,
	}

	if exportHistory {
		db, err := database.New(cfg.Database, nil)
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer db.Close()
		exporterCfg.Jobs = repository.NewExportJobRepository(db.DB)
	}

	exporter := export.New(exporterCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := exporter.Export(ctx, opts, func(fraction float64) {
		fmt.Fprintf(os.Stderr, "\rexporting... %3.0f%%", fraction*100)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%s, %s)\n",
		result.OutputPath,
		bytesize.Format(result.BytesWritten),
		duration.Format(duration.FromMicros(result.DurationMicros)),
	)
	return nil
}

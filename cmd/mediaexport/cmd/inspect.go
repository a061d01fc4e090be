package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/astralstream/mediaexport/internal/export"
	"github.com/astralstream/mediaexport/pkg/bytesize"
	"github.com/astralstream/mediaexport/pkg/duration"
)

var inspectJSON bool

// inspectCmd represents the inspect command.
var inspectCmd = &cobra.Command{
	Use:   "inspect <source>",
	Short: "List the tracks of a video file",
	Long: `Inspect a video file and print every track with its codec, resolution,
frame rate, effective bitrate, and duration.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	tracks, err := export.DiscoverTracks(args[0])
	if err != nil {
		return err
	}

	if inspectJSON {
		data, err := json.MarshalIndent(tracks, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling tracks: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tCODEC\tDETAILS\tBITRATE\tDURATION")
	for _, t := range tracks {
		details := ""
		switch t.MediaType {
		case export.MediaTypeVideo:
			details = fmt.Sprintf("%dx%d @ %.3gfps", t.Width, t.Height, t.FrameRate)
		case export.MediaTypeAudio:
			details = fmt.Sprintf("%dHz %dch", t.SampleRate, t.ChannelCount)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s/s\t%s\n",
			t.TrackID,
			t.MediaType,
			t.MimeType,
			details,
			bytesize.Format(int64(t.Bitrate)/8),
			duration.Format(duration.FromMicros(t.DurationMicros)),
		)
	}
	return w.Flush()
}

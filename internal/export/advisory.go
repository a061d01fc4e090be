package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// EstimateOutputSize predicts the output file size in bytes for a planned
// export. The prediction is planned bitrate times trimmed duration, using
// the same bitrate resolution as the planner (explicit target, or source
// scaled by quality tier). It never fails, returning 0 for any source that
// cannot be inspected so advisory callers need no error handling.
func EstimateOutputSize(opts Options) int64 {
	descs, err := DiscoverTracks(opts.SourcePath)
	if err != nil {
		return 0
	}
	video, ok := firstTrack(descs, MediaTypeVideo)
	if !ok {
		return 0
	}

	start := opts.TrimStartMicros
	if start == UnsetMicros || start < 0 {
		start = 0
	}
	end := opts.TrimEndMicros
	if end == UnsetMicros || end > video.DurationMicros {
		end = video.DurationMicros
	}
	if end <= start {
		return 0
	}

	plan := PlanOutputFormat(video, opts)
	return int64(plan.Bitrate) * (end - start) / 8_000_000
}

// SuggestOutputName proposes a collision-resistant output filename derived
// from the source name, the current time, and the quality tier.
func SuggestOutputName(sourcePath string, quality Quality, format Format) string {
	return suggestOutputNameAt(sourcePath, quality, format, time.Now())
}

func suggestOutputNameAt(sourcePath string, quality Quality, format Format, at time.Time) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "export"
	}
	return fmt.Sprintf("%s_%s_%s.%s", base, at.Format("20060102_150405"), quality, format.Extension())
}

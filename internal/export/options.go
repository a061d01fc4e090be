package export

import (
	"fmt"
	"strings"
)

// Format is the requested output container format.
type Format string

// Output formats. WebM and Matroska sources are remuxed into an ISO-BMFF
// container since sample copying is container-agnostic; the format only
// affects the suggested file extension.
const (
	FormatMP4      Format = "mp4"
	FormatWebM     Format = "webm"
	FormatMatroska Format = "matroska"
)

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mp4", "":
		return FormatMP4, nil
	case "webm":
		return FormatWebM, nil
	case "matroska", "mkv":
		return FormatMatroska, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatWebM:
		return "webm"
	case FormatMatroska:
		return "mkv"
	default:
		return "mp4"
	}
}

// Quality selects the target bitrate tier for the export plan.
type Quality string

// Quality tiers.
const (
	QualityLow      Quality = "low"
	QualityMedium   Quality = "medium"
	QualityHigh     Quality = "high"
	QualityUltra    Quality = "ultra"
	QualityOriginal Quality = "original"
)

// ParseQuality parses a quality name, case-insensitively.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return QualityLow, nil
	case "medium":
		return QualityMedium, nil
	case "high":
		return QualityHigh, nil
	case "ultra":
		return QualityUltra, nil
	case "original", "":
		return QualityOriginal, nil
	default:
		return "", fmt.Errorf("unknown quality %q", s)
	}
}

// BitrateMultiplier returns the factor applied to the source bitrate for
// this tier. Original keeps the source bitrate unchanged.
func (q Quality) BitrateMultiplier() float64 {
	switch q {
	case QualityLow:
		return 0.5
	case QualityMedium:
		return 0.75
	case QualityUltra:
		return 1.5
	default:
		return 1.0
	}
}

// UnsetMicros marks a trim boundary as not specified. Start resolves to 0,
// end resolves to the track duration.
const UnsetMicros int64 = -1

// UnsetTarget marks a target override as not specified. The planner keeps
// the source value, or derives it from the quality tier for bitrate.
const UnsetTarget = -1

// Options configures a single export run.
type Options struct {
	// SourcePath is the input container file.
	SourcePath string
	// OutputPath is the destination file. Parent directories are created.
	OutputPath string
	// Format is the requested output container format.
	Format Format
	// Quality selects the bitrate tier.
	Quality Quality
	// TrimStartMicros is the inclusive range start, or UnsetMicros.
	TrimStartMicros int64
	// TrimEndMicros is the exclusive range end, or UnsetMicros.
	TrimEndMicros int64
	// IncludeAudio selects whether the first audio track is copied.
	IncludeAudio bool
	// TargetWidth and TargetHeight override the output resolution when both
	// are positive; otherwise the source resolution passes through.
	TargetWidth  int
	TargetHeight int
	// TargetBitrate, when positive, is used verbatim instead of deriving the
	// bitrate from the source and the quality tier.
	TargetBitrate int
	// TargetFrameRate, when positive, overrides the source frame rate.
	TargetFrameRate int
	// FragmentSamples bounds output fragment size; 0 uses the default.
	FragmentSamples int
}

// DefaultOptions returns options for a full-length original-quality export.
func DefaultOptions(sourcePath, outputPath string) Options {
	return Options{
		SourcePath:      sourcePath,
		OutputPath:      outputPath,
		Format:          FormatMP4,
		Quality:         QualityOriginal,
		TrimStartMicros: UnsetMicros,
		TrimEndMicros:   UnsetMicros,
		IncludeAudio:    true,
		TargetWidth:     UnsetTarget,
		TargetHeight:    UnsetTarget,
		TargetBitrate:   UnsetTarget,
		TargetFrameRate: UnsetTarget,
	}
}

// Validate rejects option combinations that can never succeed, before any
// file I/O happens.
func (o *Options) Validate() error {
	if o.SourcePath == "" {
		return fmt.Errorf("%w: empty source path", ErrSourceOpenFailed)
	}
	if o.OutputPath == "" {
		return fmt.Errorf("%w: empty output path", ErrOutputPathInvalid)
	}
	start := o.TrimStartMicros
	if start == UnsetMicros {
		start = 0
	}
	if start < 0 {
		return fmt.Errorf("%w: negative start %d", ErrInvalidRange, o.TrimStartMicros)
	}
	if o.TrimEndMicros != UnsetMicros && o.TrimEndMicros <= start {
		return fmt.Errorf("%w: start %d is not before end %d", ErrInvalidRange, start, o.TrimEndMicros)
	}
	return nil
}

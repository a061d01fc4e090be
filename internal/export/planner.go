package export

// Planner defaults. Sources that declare no frame rate get a conventional
// 30fps; the bitrate fallback is a pixel-count heuristic for sources whose
// effective bitrate could not be measured.
const (
	defaultFrameRate           = 30.0
	defaultKeyFrameIntervalSec = 1
	defaultColorFormat         = "surface"
	bitsPerPixelHeuristic      = 3
)

// OutputPlan is the resolved encoder configuration for one export. Planning
// is pure: the same track descriptor and options always produce the same
// plan.
type OutputPlan struct {
	// Width is the output frame width: the target override, or the source.
	Width int `json:"width"`
	// Height is the output frame height: the target override, or the source.
	Height int `json:"height"`
	// Bitrate is the target bitrate in bits per second.
	Bitrate int `json:"bitrate"`
	// FrameRate is the target frame rate.
	FrameRate float64 `json:"frame_rate"`
	// KeyFrameIntervalSeconds is the sync sample interval.
	KeyFrameIntervalSeconds int `json:"key_frame_interval_seconds"`
	// ColorFormat names the encoder input surface type.
	ColorFormat string `json:"color_format"`
	// MimeType is the output codec, carried over from the source.
	MimeType string `json:"mime_type"`
}

// PlanOutputFormat resolves the output configuration for a video track.
// Target overrides win when set: resolution when both dimensions are
// positive, bitrate verbatim when positive, frame rate when positive.
// Otherwise the source resolution and codec pass through, the bitrate is the
// source bitrate scaled by the quality tier multiplier (falling back to
// width*height*3 when the source bitrate is unknown), and the frame rate is
// the source rate or 30.
func PlanOutputFormat(video TrackDescriptor, opts Options) OutputPlan {
	width, height := video.Width, video.Height
	if opts.TargetWidth > 0 && opts.TargetHeight > 0 {
		width, height = opts.TargetWidth, opts.TargetHeight
	}

	bitrate := opts.TargetBitrate
	if bitrate <= 0 {
		bitrate = video.Bitrate
		if bitrate <= 0 {
			bitrate = width * height * bitsPerPixelHeuristic
		}
		bitrate = int(float64(bitrate) * opts.Quality.BitrateMultiplier())
	}

	frameRate := float64(opts.TargetFrameRate)
	if frameRate <= 0 {
		frameRate = video.FrameRate
	}
	if frameRate <= 0 {
		frameRate = defaultFrameRate
	}

	return OutputPlan{
		Width:                   width,
		Height:                  height,
		Bitrate:                 bitrate,
		FrameRate:               frameRate,
		KeyFrameIntervalSeconds: defaultKeyFrameIntervalSec,
		ColorFormat:             defaultColorFormat,
		MimeType:                video.MimeType,
	}
}

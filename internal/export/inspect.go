package export

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/av1"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"

	"github.com/astralstream/mediaexport/internal/container"
)

// MediaType classifies a track.
type MediaType string

// Media types. Tracks with an unrecognized codec configuration are
// classified as unknown; they are listed but never selected for copying.
const (
	MediaTypeVideo   MediaType = "video"
	MediaTypeAudio   MediaType = "audio"
	MediaTypeUnknown MediaType = "unknown"
)

// TrackDescriptor summarizes one source track for planning and display.
// Fields that do not apply to the media type are zero.
type TrackDescriptor struct {
	// TrackID is the container track ID.
	TrackID int `json:"track_id"`
	// MediaType is video or audio.
	MediaType MediaType `json:"media_type"`
	// MimeType identifies the codec.
	MimeType string `json:"mime_type"`
	// Width is the coded frame width in pixels (video only).
	Width int `json:"width,omitempty"`
	// Height is the coded frame height in pixels (video only).
	Height int `json:"height,omitempty"`
	// FrameRate is frames per second (video only, 0 if unknown).
	FrameRate float64 `json:"frame_rate,omitempty"`
	// SampleRate is samples per second (audio only).
	SampleRate int `json:"sample_rate,omitempty"`
	// ChannelCount is the number of audio channels (audio only).
	ChannelCount int `json:"channel_count,omitempty"`
	// Bitrate is the effective bitrate in bits per second, measured from the
	// coded payload over the track duration. 0 if the duration is unknown.
	Bitrate int `json:"bitrate,omitempty"`
	// DurationMicros is the track duration in microseconds.
	DurationMicros int64 `json:"duration_micros"`
}

// DiscoverTracks opens a source container and describes every track.
func DiscoverTracks(path string) ([]TrackDescriptor, error) {
	r, err := container.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceOpenFailed, path, err)
	}
	defer r.Close()
	return describeTracks(r), nil
}

// describeTracks builds descriptors for every track of an open reader.
func describeTracks(r *container.Reader) []TrackDescriptor {
	tracks := r.Tracks()
	out := make([]TrackDescriptor, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, describeTrack(t))
	}
	return out
}

// describeTrack extracts media parameters from a track's codec configuration
// and sample index.
func describeTrack(t *container.Track) TrackDescriptor {
	d := TrackDescriptor{
		TrackID:        t.ID,
		DurationMicros: t.Duration(),
	}

	switch codec := t.Codec.(type) {
	case *mp4.CodecH264:
		d.MediaType = MediaTypeVideo
		d.MimeType = "video/avc"
		var sps h264.SPS
		if err := sps.Unmarshal(codec.SPS); err == nil {
			d.Width = sps.Width()
			d.Height = sps.Height()
			d.FrameRate = sps.FPS()
		}

	case *mp4.CodecH265:
		d.MediaType = MediaTypeVideo
		d.MimeType = "video/hevc"
		var sps h265.SPS
		if err := sps.Unmarshal(codec.SPS); err == nil {
			d.Width = sps.Width()
			d.Height = sps.Height()
			d.FrameRate = sps.FPS()
		}

	case *mp4.CodecVP9:
		d.MediaType = MediaTypeVideo
		d.MimeType = "video/x-vnd.on2.vp9"
		d.Width = codec.Width
		d.Height = codec.Height

	case *mp4.CodecAV1:
		d.MediaType = MediaTypeVideo
		d.MimeType = "video/av01"
		var hdr av1.SequenceHeader
		if err := hdr.Unmarshal(codec.SequenceHeader); err == nil {
			d.Width = hdr.Width()
			d.Height = hdr.Height()
		}

	case *mp4.CodecMPEG4Audio:
		d.MediaType = MediaTypeAudio
		d.MimeType = "audio/mp4a-latm"
		d.SampleRate = codec.Config.SampleRate
		d.ChannelCount = codec.Config.ChannelCount

	case *mp4.CodecOpus:
		d.MediaType = MediaTypeAudio
		d.MimeType = "audio/opus"
		d.ChannelCount = codec.ChannelCount

	case *mp4.CodecAC3:
		d.MediaType = MediaTypeAudio
		d.MimeType = "audio/ac3"
		d.SampleRate = codec.SampleRate
		d.ChannelCount = codec.ChannelCount

	default:
		// Unknown codec configuration. Keep the track visible with its
		// timing, but never let it shadow a real video or audio track.
		d.MediaType = MediaTypeUnknown
		d.MimeType = "application/octet-stream"
	}

	// Fall back to frame counting when the codec config carries no rate.
	if d.MediaType == MediaTypeVideo && d.FrameRate == 0 && d.DurationMicros > 0 {
		d.FrameRate = float64(t.SampleCount()) * 1e6 / float64(d.DurationMicros)
	}

	if d.DurationMicros > 0 {
		d.Bitrate = int(t.TotalPayloadBytes() * 8 * 1_000_000 / d.DurationMicros)
	}
	return d
}

// firstTrack returns the first descriptor of the given media type, matching
// the source container's declaration order.
func firstTrack(descs []TrackDescriptor, mt MediaType) (TrackDescriptor, bool) {
	for _, d := range descs {
		if d.MediaType == mt {
			return d, true
		}
	}
	return TrackDescriptor{}, false
}

package export

import (
	"path/filepath"
	"testing"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
	"github.com/stretchr/testify/require"

	"github.com/astralstream/mediaexport/internal/container"
)

// Fixture geometry: one second of 25fps video with a sync sample every
// 200ms, and one second of 50Hz audio frames. A microsecond timescale keeps
// timestamps exact through the round trip.
const (
	fixtureTimeScale     = 1_000_000
	fixtureVideoSamples  = 25
	fixtureVideoInterval = 40_000
	fixtureKeyInterval   = 5
	fixtureAudioSamples  = 50
	fixtureAudioInterval = 20_000
)

// makeFixture muxes a small test file and returns its path.
func makeFixture(t *testing.T, withVideo, withAudio bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.mp4")

	w, err := container.NewWriter(path, 0)
	require.NoError(t, err)

	videoID, audioID := 0, 0
	if withVideo {
		videoID, err = w.AddTrack(container.TrackConfig{
			Codec: &mp4.CodecVP9{
				Width:             640,
				Height:            360,
				BitDepth:          8,
				ChromaSubsampling: 1,
			},
			TimeScale: fixtureTimeScale,
		})
		require.NoError(t, err)
	}
	if withAudio {
		audioID, err = w.AddTrack(container.TrackConfig{
			Codec: &mp4.CodecMPEG4Audio{
				Config: mpeg4audio.AudioSpecificConfig{
					Type:         mpeg4audio.ObjectTypeAACLC,
					SampleRate:   48000,
					ChannelCount: 2,
				},
			},
			TimeScale: fixtureTimeScale,
		})
		require.NoError(t, err)
	}

	require.NoError(t, w.Start())

	if withVideo {
		payload := make([]byte, 100)
		for i := 0; i < fixtureVideoSamples; i++ {
			require.NoError(t, w.WriteSample(videoID, &container.Sample{
				TimeMicros:     int64(i) * fixtureVideoInterval,
				DurationMicros: fixtureVideoInterval,
				IsKeyFrame:     i%fixtureKeyInterval == 0,
				Payload:        payload,
			}))
		}
	}
	if withAudio {
		payload := make([]byte, 10)
		for i := 0; i < fixtureAudioSamples; i++ {
			require.NoError(t, w.WriteSample(audioID, &container.Sample{
				TimeMicros:     int64(i) * fixtureAudioInterval,
				DurationMicros: fixtureAudioInterval,
				IsKeyFrame:     true,
				Payload:        payload,
			}))
		}
	}

	require.NoError(t, w.Finalize())
	return path
}

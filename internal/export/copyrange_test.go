package export

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralstream/mediaexport/internal/container"
)

// fakeSource serves a fixed sample slice with the same seek semantics as the
// container reader.
type fakeSource struct {
	samples []container.Sample
	pos     int
	readErr error
}

func (f *fakeSource) SeekToSyncBefore(micros int64) int64 {
	idx := 0
	for i := range f.samples {
		if f.samples[i].TimeMicros > micros {
			break
		}
		if f.samples[i].IsKeyFrame {
			idx = i
		}
	}
	f.pos = idx
	if len(f.samples) == 0 {
		return 0
	}
	return f.samples[idx].TimeMicros
}

func (f *fakeSource) NextSample() (*container.Sample, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.pos >= len(f.samples) {
		return nil, io.EOF
	}
	s := &f.samples[f.pos]
	f.pos++
	return s, nil
}

// fakeSink records written samples and can fail after a given count.
type fakeSink struct {
	written   []container.Sample
	failAfter int
	writeErr  error
}

func (f *fakeSink) WriteSample(trackID int, s *container.Sample) error {
	if f.writeErr != nil && len(f.written) >= f.failAfter {
		return f.writeErr
	}
	f.written = append(f.written, *s)
	return nil
}

// rangeSamples builds samples of 40ms each with keyframes every 5.
func rangeSamples(n int) []container.Sample {
	samples := make([]container.Sample, n)
	for i := range samples {
		samples[i] = container.Sample{
			TimeMicros:     int64(i) * 40_000,
			DurationMicros: 40_000,
			IsKeyFrame:     i%5 == 0,
			Payload:        []byte{byte(i)},
		}
	}
	return samples
}

func TestCopyRangeRebasesTimestamps(t *testing.T) {
	src := &fakeSource{samples: rangeSamples(25)}
	sink := &fakeSink{}

	err := copyRange(context.Background(), src, sink, 1, 200_000, 600_000, nil)
	require.NoError(t, err)

	// Samples at 200ms..560ms inclusive; 600ms is excluded.
	require.Len(t, sink.written, 10)
	assert.Equal(t, int64(0), sink.written[0].TimeMicros)
	assert.Equal(t, int64(360_000), sink.written[9].TimeMicros)
	assert.True(t, sink.written[0].IsKeyFrame)
	assert.Equal(t, []byte{5}, sink.written[0].Payload)
}

func TestCopyRangeSkipsPreStartSamples(t *testing.T) {
	src := &fakeSource{samples: rangeSamples(25)}
	sink := &fakeSink{}

	// Start mid-GOP: the seek lands on the keyframe at 200ms, and samples
	// before 210ms are dropped rather than copied.
	err := copyRange(context.Background(), src, sink, 1, 210_000, 600_000, nil)
	require.NoError(t, err)

	require.NotEmpty(t, sink.written)
	assert.Equal(t, int64(30_000), sink.written[0].TimeMicros)
	assert.False(t, sink.written[0].IsKeyFrame)
}

func TestCopyRangeStopsAtEnd(t *testing.T) {
	src := &fakeSource{samples: rangeSamples(25)}
	sink := &fakeSink{}

	require.NoError(t, copyRange(context.Background(), src, sink, 1, 0, 120_000, nil))
	assert.Len(t, sink.written, 3)
}

func TestCopyRangeEndPastEOF(t *testing.T) {
	src := &fakeSource{samples: rangeSamples(5)}
	sink := &fakeSink{}

	require.NoError(t, copyRange(context.Background(), src, sink, 1, 0, 10_000_000, nil))
	assert.Len(t, sink.written, 5)
}

func TestCopyRangeProgressMonotonic(t *testing.T) {
	src := &fakeSource{samples: rangeSamples(25)}
	sink := &fakeSink{}

	var reports []float64
	err := copyRange(context.Background(), src, sink, 1, 0, 1_000_000, func(f float64) {
		reports = append(reports, f)
	})
	require.NoError(t, err)

	require.NotEmpty(t, reports)
	for i := 1; i < len(reports); i++ {
		assert.GreaterOrEqual(t, reports[i], reports[i-1])
	}
	assert.LessOrEqual(t, reports[len(reports)-1], 1.0)
	assert.Equal(t, 1.0, reports[len(reports)-1])
}

func TestCopyRangeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{samples: rangeSamples(25)}
	sink := &fakeSink{}

	var count int
	err := copyRange(ctx, src, sink, 1, 0, 1_000_000, func(f float64) {
		count++
		if count == 3 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, ErrExportCancelled)
	// The copy stopped shortly after cancellation, not at the end.
	assert.Less(t, len(sink.written), 25)
}

func TestCopyRangeReadError(t *testing.T) {
	src := &fakeSource{readErr: errors.New("corrupt fragment")}
	sink := &fakeSink{}

	err := copyRange(context.Background(), src, sink, 1, 0, 1_000_000, nil)
	assert.ErrorIs(t, err, ErrSampleReadFailed)
}

func TestCopyRangeWriteError(t *testing.T) {
	src := &fakeSource{samples: rangeSamples(25)}
	sink := &fakeSink{writeErr: errors.New("disk full"), failAfter: 2}

	err := copyRange(context.Background(), src, sink, 1, 0, 1_000_000, nil)
	assert.ErrorIs(t, err, ErrContainerWriteFailed)
	assert.Len(t, sink.written, 2)
}

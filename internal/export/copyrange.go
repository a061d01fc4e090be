package export

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/astralstream/mediaexport/internal/container"
)

// sampleSource is the reading side of a range copy. Satisfied by
// container.Reader with a track selected.
type sampleSource interface {
	SeekToSyncBefore(micros int64) int64
	NextSample() (*container.Sample, error)
}

// sampleSink is the writing side of a range copy.
type sampleSink interface {
	WriteSample(trackID int, s *container.Sample) error
}

// copyRange copies samples in [startMicros, endMicros) from source to sink,
// rebasing timestamps so the output starts at zero. The seek lands on the
// sync sample at or before start; samples between the sync point and start
// are skipped, so the first copied frame may depend on the skipped ones.
// That imprecision is inherent to copying without re-encoding.
//
// Cancellation is checked between samples. Progress is reported as the
// fraction of the requested range consumed, clamped and non-decreasing.
func copyRange(ctx context.Context, src sampleSource, sink sampleSink, trackID int, startMicros, endMicros int64, onProgress func(float64)) error {
	rangeMicros := endMicros - startMicros
	var reported float64

	src.SeekToSyncBefore(startMicros)

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrExportCancelled, ctx.Err())
		default:
		}

		s, err := src.NextSample()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSampleReadFailed, err)
		}
		if s.TimeMicros < startMicros {
			continue
		}
		if s.TimeMicros >= endMicros {
			break
		}

		out := *s
		out.TimeMicros = s.TimeMicros - startMicros
		if err := sink.WriteSample(trackID, &out); err != nil {
			return fmt.Errorf("%w: %v", ErrContainerWriteFailed, err)
		}

		if onProgress != nil && rangeMicros > 0 {
			fraction := float64(out.End()) / float64(rangeMicros)
			if fraction > 1 {
				fraction = 1
			}
			if fraction > reported {
				reported = fraction
				onProgress(fraction)
			}
		}
	}

	if onProgress != nil && reported < 1 {
		onProgress(1)
	}
	return nil
}

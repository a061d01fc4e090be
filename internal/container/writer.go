package container

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
)

// Writer errors.
var (
	// ErrWriterStarted indicates AddTrack after Start.
	ErrWriterStarted = errors.New("writer already started")
	// ErrWriterNotStarted indicates WriteSample before Start.
	ErrWriterNotStarted = errors.New("writer not started")
	// ErrWriterFinalized indicates use after Finalize.
	ErrWriterFinalized = errors.New("writer already finalized")
)

// defaultFragmentSamples bounds per-track buffering between fragment flushes.
const defaultFragmentSamples = 256

// TrackConfig describes one output track to register before Start.
type TrackConfig struct {
	// Codec is the mediacommon codec configuration, normally carried over
	// from the source track during a remux.
	Codec mp4.Codec
	// TimeScale is the track timescale in units per second. Zero selects
	// 90kHz, the conventional video timescale.
	TimeScale uint32
}

// Writer multiplexes samples into a fragmented MP4 file. Tracks are
// registered up front, Start writes the init segment, samples are buffered
// per track and flushed as moof+mdat fragments at sync-sample boundaries,
// and Finalize flushes the remainder and closes the file. A Writer is not
// safe for concurrent use.
type Writer struct {
	file            *os.File
	path            string
	fragmentSamples int

	init      fmp4.Init
	started   bool
	finalized bool
	released  bool
	seq       uint32

	pending      map[int][]*Sample
	bytesWritten int64
}

// NewWriter creates the output file and a writer over it. fragmentSamples
// bounds buffering between flushes; pass 0 for the default.
func NewWriter(path string, fragmentSamples int) (*Writer, error) {
	if fragmentSamples <= 0 {
		fragmentSamples = defaultFragmentSamples
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	return &Writer{
		file:            f,
		path:            path,
		fragmentSamples: fragmentSamples,
		seq:             1,
		pending:         make(map[int][]*Sample),
	}, nil
}

// Path returns the output file path.
func (w *Writer) Path() string {
	return w.path
}

// AddTrack registers an output track and returns its track ID. All tracks
// must be added before Start.
func (w *Writer) AddTrack(cfg TrackConfig) (int, error) {
	if w.started {
		return 0, ErrWriterStarted
	}
	timeScale := cfg.TimeScale
	if timeScale == 0 {
		timeScale = 90000
	}
	id := len(w.init.Tracks) + 1
	w.init.Tracks = append(w.init.Tracks, &fmp4.InitTrack{
		ID:        id,
		TimeScale: timeScale,
		Codec:     cfg.Codec,
	})
	return id, nil
}

// Start writes the initialization segment. No tracks may be added afterwards.
func (w *Writer) Start() error {
	if w.started {
		return ErrWriterStarted
	}
	if w.finalized || w.released {
		return ErrWriterFinalized
	}
	if len(w.init.Tracks) == 0 {
		return errors.New("no tracks registered")
	}

	var buf bytes.Buffer
	if err := w.init.Marshal(&seekableBuffer{buf: &buf}); err != nil {
		return fmt.Errorf("marshaling init segment: %w", err)
	}
	n, err := w.file.Write(buf.Bytes())
	w.bytesWritten += int64(n)
	if err != nil {
		return fmt.Errorf("writing init segment: %w", err)
	}

	w.started = true
	return nil
}

// WriteSample buffers one sample for the given track. A sync sample starts a
// new fragment, so fragments always begin at a decodable position; a full
// buffer forces a flush regardless.
func (w *Writer) WriteSample(trackID int, s *Sample) error {
	if !w.started {
		return ErrWriterNotStarted
	}
	if w.finalized || w.released {
		return ErrWriterFinalized
	}
	track := w.initTrack(trackID)
	if track == nil {
		return fmt.Errorf("%w: %d", ErrTrackNotFound, trackID)
	}

	if s.IsKeyFrame && len(w.pending[trackID]) > 0 {
		if err := w.flushTrack(trackID); err != nil {
			return err
		}
	}

	w.pending[trackID] = append(w.pending[trackID], s)

	if len(w.pending[trackID]) >= w.fragmentSamples {
		return w.flushTrack(trackID)
	}
	return nil
}

// Finalize flushes all buffered samples and closes the file.
func (w *Writer) Finalize() error {
	if w.finalized {
		return ErrWriterFinalized
	}
	if !w.started {
		return ErrWriterNotStarted
	}

	for _, it := range w.init.Tracks {
		if err := w.flushTrack(it.ID); err != nil {
			return err
		}
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("syncing output file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	w.finalized = true
	return nil
}

// Release closes the underlying file without flushing. Safe to call on any
// path, including after Finalize; error paths use it to guarantee the file
// handle is returned before the partial output is deleted.
func (w *Writer) Release() {
	if w.finalized || w.released {
		return
	}
	w.released = true
	_ = w.file.Close()
}

// BytesWritten returns the number of bytes written to the output so far.
func (w *Writer) BytesWritten() int64 {
	return w.bytesWritten
}

// initTrack finds the registered init track by ID.
func (w *Writer) initTrack(id int) *fmp4.InitTrack {
	for _, it := range w.init.Tracks {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// flushTrack writes one moof+mdat fragment holding the track's buffered
// samples. Sample durations come from the gaps between consecutive decode
// timestamps; the final sample keeps its carried duration.
func (w *Writer) flushTrack(trackID int) error {
	buffered := w.pending[trackID]
	if len(buffered) == 0 {
		return nil
	}
	track := w.initTrack(trackID)

	samples := make([]*fmp4.Sample, len(buffered))
	for i, s := range buffered {
		durationMicros := s.DurationMicros
		if i < len(buffered)-1 {
			durationMicros = buffered[i+1].TimeMicros - s.TimeMicros
		}
		if durationMicros <= 0 {
			durationMicros = s.DurationMicros
		}
		samples[i] = &fmp4.Sample{
			Duration:        uint32(toUnits(durationMicros, track.TimeScale)),
			PTSOffset:       int32(toUnits(s.PTSOffsetMicros, track.TimeScale)),
			IsNonSyncSample: !s.IsKeyFrame,
			Payload:         s.Payload,
		}
	}

	part := fmp4.Part{
		SequenceNumber: w.seq,
		Tracks: []*fmp4.PartTrack{{
			ID:       trackID,
			BaseTime: uint64(toUnits(buffered[0].TimeMicros, track.TimeScale)),
			Samples:  samples,
		}},
	}

	var buf bytes.Buffer
	if err := part.Marshal(&seekableBuffer{buf: &buf}); err != nil {
		return fmt.Errorf("marshaling fragment: %w", err)
	}
	n, err := w.file.Write(buf.Bytes())
	w.bytesWritten += int64(n)
	if err != nil {
		return fmt.Errorf("writing fragment: %w", err)
	}

	w.seq++
	w.pending[trackID] = nil
	return nil
}

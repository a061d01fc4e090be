package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
)

// Reader errors.
var (
	// ErrNoInit indicates the source has no moov box.
	ErrNoInit = errors.New("container has no initialization segment")
	// ErrTrackNotFound indicates the requested track ID does not exist.
	ErrTrackNotFound = errors.New("track not found")
	// ErrNoTrackSelected indicates a sample read before SelectTrack.
	ErrNoTrackSelected = errors.New("no track selected")
	// ErrTruncatedBox indicates the file ends inside a box.
	ErrTruncatedBox = errors.New("truncated box")
)

// Track is one demuxed track: its codec configuration plus the full sample
// index built while parsing the source.
type Track struct {
	// ID is the container track ID.
	ID int
	// TimeScale is the track timescale in units per second.
	TimeScale uint32
	// Codec is the mediacommon codec configuration from the init segment.
	Codec mp4.Codec

	samples []Sample
}

// SampleCount returns the number of samples indexed for this track.
func (t *Track) SampleCount() int {
	return len(t.samples)
}

// TotalPayloadBytes sums the coded payload sizes across all samples.
// Used to measure an effective bitrate when the container declares none.
func (t *Track) TotalPayloadBytes() int64 {
	var total int64
	for i := range t.samples {
		total += int64(len(t.samples[i].Payload))
	}
	return total
}

// Duration returns the track duration in microseconds: the end of its last
// sample, or 0 for an empty track.
func (t *Track) Duration() int64 {
	if len(t.samples) == 0 {
		return 0
	}
	last := &t.samples[len(t.samples)-1]
	return last.End()
}

// Reader demultiplexes a fragmented MP4 source into per-track sample indexes.
// The whole file is parsed up front; reads after that are in-memory cursor
// movement, so a Reader is cheap to seek but holds the coded samples until
// Close. A Reader is not safe for concurrent use.
type Reader struct {
	tracks   map[int]*Track
	order    []int
	selected *Track
	pos      int
	closed   bool
}

// OpenReader opens and fully indexes a fragmented MP4 file.
func OpenReader(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source file: %w", err)
	}
	return NewReader(data)
}

// NewReader indexes a fragmented MP4 byte stream.
func NewReader(data []byte) (*Reader, error) {
	r := &Reader{tracks: make(map[int]*Track)}
	if err := r.parse(data); err != nil {
		return nil, err
	}
	if len(r.tracks) == 0 {
		return nil, ErrNoInit
	}
	return r, nil
}

// parse walks the top-level box structure: moov initializes the track table,
// each moof+mdat pair contributes samples, everything else is skipped.
func (r *Reader) parse(data []byte) error {
	// Running base time per track, in timescale units. Fragments without an
	// explicit base decode time continue from the previous fragment.
	baseTimes := make(map[int]uint64)

	for len(data) > 0 {
		if len(data) < 8 {
			return ErrTruncatedBox
		}
		boxSize := uint64(data[0])<<24 | uint64(data[1])<<16 | uint64(data[2])<<8 | uint64(data[3])
		boxType := string(data[4:8])

		// Extended 64-bit size.
		if boxSize == 1 {
			if len(data) < 16 {
				return ErrTruncatedBox
			}
			boxSize = uint64(data[8])<<56 | uint64(data[9])<<48 | uint64(data[10])<<40 | uint64(data[11])<<32 |
				uint64(data[12])<<24 | uint64(data[13])<<16 | uint64(data[14])<<8 | uint64(data[15])
		}
		if boxSize < 8 || boxSize > uint64(len(data)) {
			return ErrTruncatedBox
		}

		switch boxType {
		case "moov":
			if err := r.parseInit(data[:boxSize]); err != nil {
				return fmt.Errorf("parsing init segment: %w", err)
			}

		case "moof":
			// A fragment is a moof immediately followed by its mdat; both are
			// needed to resolve sample payloads.
			if uint64(len(data)) < boxSize+8 {
				return ErrTruncatedBox
			}
			mdatHeader := data[boxSize : boxSize+8]
			mdatSize := uint64(mdatHeader[0])<<24 | uint64(mdatHeader[1])<<16 | uint64(mdatHeader[2])<<8 | uint64(mdatHeader[3])
			if string(mdatHeader[4:8]) != "mdat" {
				break
			}
			total := boxSize + mdatSize
			if mdatSize < 8 || total > uint64(len(data)) {
				return ErrTruncatedBox
			}
			if err := r.parseFragment(data[:total], baseTimes); err != nil {
				return fmt.Errorf("parsing fragment: %w", err)
			}
			data = data[total:]
			continue
		}

		data = data[boxSize:]
	}
	return nil
}

// parseInit parses the moov box and registers the track table.
func (r *Reader) parseInit(moovData []byte) error {
	var init fmp4.Init
	if err := init.Unmarshal(bytes.NewReader(moovData)); err != nil {
		return err
	}

	for _, it := range init.Tracks {
		track := &Track{
			ID:        it.ID,
			TimeScale: it.TimeScale,
			Codec:     it.Codec,
		}
		r.tracks[it.ID] = track
		r.order = append(r.order, it.ID)
	}
	return nil
}

// parseFragment parses one moof+mdat pair and appends its samples.
func (r *Reader) parseFragment(data []byte, baseTimes map[int]uint64) error {
	var parts fmp4.Parts
	if err := parts.Unmarshal(data); err != nil {
		return err
	}

	for _, part := range parts {
		for _, pt := range part.Tracks {
			track, ok := r.tracks[pt.ID]
			if !ok {
				// Fragment references a track missing from the init segment.
				continue
			}

			base := pt.BaseTime
			if base == 0 {
				base = baseTimes[pt.ID]
			}
			for _, sample := range pt.Samples {
				track.samples = append(track.samples, Sample{
					TimeMicros:      toMicros(base, track.TimeScale),
					DurationMicros:  toMicros(uint64(sample.Duration), track.TimeScale),
					PTSOffsetMicros: signedToMicros(int64(sample.PTSOffset), track.TimeScale),
					IsKeyFrame:      !sample.IsNonSyncSample,
					Payload:         sample.Payload,
				})
				base += uint64(sample.Duration)
			}
			baseTimes[pt.ID] = base
		}
	}
	return nil
}

// Tracks returns the demuxed tracks in init-segment order.
func (r *Reader) Tracks() []*Track {
	out := make([]*Track, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tracks[id])
	}
	return out
}

// Track returns a single track by ID.
func (r *Reader) Track(id int) (*Track, error) {
	track, ok := r.tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTrackNotFound, id)
	}
	return track, nil
}

// SelectTrack positions the read cursor at the start of the given track.
func (r *Reader) SelectTrack(id int) error {
	track, ok := r.tracks[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTrackNotFound, id)
	}
	r.selected = track
	r.pos = 0
	return nil
}

// SeekToSyncBefore moves the cursor of the selected track to the sync sample
// at or before the given timestamp and returns the timestamp it landed on.
// If no sync sample precedes the timestamp, the cursor moves to the first
// sample. Container formats only guarantee decodability from sync points, so
// this may land earlier than requested.
func (r *Reader) SeekToSyncBefore(micros int64) int64 {
	if r.selected == nil || len(r.selected.samples) == 0 {
		return 0
	}

	idx := 0
	for i := range r.selected.samples {
		s := &r.selected.samples[i]
		if s.TimeMicros > micros {
			break
		}
		if s.IsKeyFrame {
			idx = i
		}
	}
	r.pos = idx
	return r.selected.samples[idx].TimeMicros
}

// NextSample returns the sample under the cursor and advances. Returns io.EOF
// past the end of the selected track.
func (r *Reader) NextSample() (*Sample, error) {
	if r.selected == nil {
		return nil, ErrNoTrackSelected
	}
	if r.pos >= len(r.selected.samples) {
		return nil, io.EOF
	}
	s := &r.selected.samples[r.pos]
	r.pos++
	return s, nil
}

// Close releases the reader. The sample index is dropped; the Reader must not
// be used afterwards.
func (r *Reader) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.tracks = nil
	r.order = nil
	r.selected = nil
}

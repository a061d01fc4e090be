// Package container provides fragmented-MP4 read and write primitives for the
// export pipeline. The reader indexes a source file into per-track coded
// samples with microsecond timestamps; the writer registers tracks and muxes
// samples back into an ISO-BMFF output file. Both sides convert between track
// timescale units and microseconds so the pipeline only ever sees micros.
package container

// Sample is one coded media sample. Timestamps are decode timestamps in
// microseconds; PTSOffsetMicros carries the composition offset for frame
// reordering. All flags travel with the sample unchanged through a remux.
type Sample struct {
	// TimeMicros is the decode timestamp in microseconds.
	TimeMicros int64
	// DurationMicros is the sample duration in microseconds.
	DurationMicros int64
	// PTSOffsetMicros is the composition (presentation) offset in microseconds.
	PTSOffsetMicros int64
	// IsKeyFrame marks a sync sample: decodable without prior samples.
	IsKeyFrame bool
	// Payload is the coded sample data in container format.
	Payload []byte
}

// End returns the timestamp just past this sample.
func (s *Sample) End() int64 {
	return s.TimeMicros + s.DurationMicros
}

// microsPerSecond is the timestamp base used throughout the pipeline.
const microsPerSecond = 1_000_000

// toMicros converts timescale units to microseconds.
func toMicros(units uint64, timeScale uint32) int64 {
	if timeScale == 0 {
		timeScale = 90000
	}
	return int64(units * microsPerSecond / uint64(timeScale))
}

// signedToMicros converts signed timescale units to microseconds.
func signedToMicros(units int64, timeScale uint32) int64 {
	if timeScale == 0 {
		timeScale = 90000
	}
	return units * microsPerSecond / int64(timeScale)
}

// toUnits converts microseconds to timescale units.
func toUnits(micros int64, timeScale uint32) int64 {
	return micros * int64(timeScale) / microsPerSecond
}

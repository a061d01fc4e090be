// Package export implements the trim-and-copy pipeline: track inspection,
// output format planning, sample copying with timestamp rebasing, size and
// name advisories, and the exporter that orchestrates a full run.
package export

import "errors"

// Export errors. The exporter wraps lower-level failures in one of these so
// callers can classify outcomes with errors.Is.
var (
	// ErrNoVideoTrack indicates the source contains no video track.
	ErrNoVideoTrack = errors.New("source has no video track")
	// ErrSourceOpenFailed indicates the source file could not be opened or parsed.
	ErrSourceOpenFailed = errors.New("failed to open source")
	// ErrOutputPathInvalid indicates the output file could not be created.
	ErrOutputPathInvalid = errors.New("invalid output path")
	// ErrInvalidRange indicates a trim range with start at or past end.
	ErrInvalidRange = errors.New("invalid trim range")
	// ErrSampleReadFailed indicates a failure while reading source samples.
	ErrSampleReadFailed = errors.New("failed to read sample")
	// ErrContainerWriteFailed indicates a failure while writing the output container.
	ErrContainerWriteFailed = errors.New("failed to write output container")
	// ErrExportInProgress indicates a second export was requested while one is running.
	ErrExportInProgress = errors.New("export already in progress")
	// ErrExportCancelled indicates the export was cancelled before completion.
	ErrExportCancelled = errors.New("export cancelled")
)

package domain

import "errors"

// Error kinds used across the service. Handlers and the calculation task
// classify failures with errors.Is against these sentinels; messages are
// attached at the point of failure with fmt.Errorf("%w: ...").
var (
	// ErrValidation marks degenerate input: no building geometry, malformed
	// footprints, out-of-range settings.
	ErrValidation = errors.New("validation failed")

	// ErrExtraction marks a post-processing failure: missing output time
	// directory, missing cut-plane export, zero parsed points.
	ErrExtraction = errors.New("extraction failed")

	// ErrNotFound marks a request for an unknown wind direction or case.
	ErrNotFound = errors.New("not found")

	// ErrExternalProcess marks a toolchain step that exited non-zero.
	ErrExternalProcess = errors.New("external process failed")

	// ErrBusy marks a calculation request received while one is in flight.
	ErrBusy = errors.New("calculation already running")
)

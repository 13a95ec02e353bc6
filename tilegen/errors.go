package tilegen

import "errors"

// Fatal generation errors. Per-tile fetch failures are never surfaced as
// errors; they are only counted.
var (
	// ErrInvalidInput covers a missing or inverted bounding box and zoom
	// levels outside [MinZoomLimit, MaxZoomLimit]. No side effects; quota
	// is never touched.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownSource is returned for a tile source name not present in
	// the registry.
	ErrUnknownSource = errors.New("unknown tile source")

	// ErrUnknownFormat is returned for an export format with no registered
	// packager.
	ErrUnknownFormat = errors.New("unknown export format")

	// ErrConfirmationRequired is returned when the estimate exceeds
	// ConfirmationThreshold and the request was not confirmed.
	ErrConfirmationRequired = errors.New("estimate exceeds confirmation threshold")

	// ErrQuotaExhausted is returned when the user has no remaining
	// download quota. No fetch is attempted.
	ErrQuotaExhausted = errors.New("download quota exhausted")

	// ErrQuotaDecrement is returned when the quota decrement fails before
	// any network activity starts.
	ErrQuotaDecrement = errors.New("quota decrement failed")

	// ErrNoTilesDownloaded is returned when zero tiles succeed across the
	// whole run. The orchestrator refunds one quota unit.
	ErrNoTilesDownloaded = errors.New("no tiles downloaded")

	// ErrPackaging wraps format-specific encode failures, e.g. an
	// undecodable tile image during a raster merge. Triggers a refund.
	ErrPackaging = errors.New("packaging failed")

	// ErrLogRecord marks a failure to write the generation record. It does
	// not undo a successful generation and is surfaced distinctly.
	ErrLogRecord = errors.New("generation record write failed")
)

package tilegen

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Run states, in the order a successful run passes through them.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateEstimating
	StateAwaitingConfirmation
	StateQuotaCheck
	StateFetching
	StatePackaging
	StateFinalizing
	StateCompleted
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:                 "idle",
	StateValidating:           "validating",
	StateEstimating:           "estimating",
	StateAwaitingConfirmation: "awaiting-confirmation",
	StateQuotaCheck:           "quota-check",
	StateFetching:             "fetching",
	StatePackaging:            "packaging",
	StateFinalizing:           "finalizing",
	StateCompleted:            "completed",
	StateFailed:               "failed",
}

func (s State) String() string { return stateNames[s] }

// Status values written to the generation log.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// QuotaService is the external download-quota collaborator. Decrement must
// be atomic on the collaborator's side; the generator calls it exactly once
// per run, before any network activity, and calls Refund exactly once if the
// run later fails.
type QuotaService interface {
	HasRemaining(ctx context.Context, userID string) (bool, error)
	Decrement(ctx context.Context, userID string) (bool, error)
	Refund(ctx context.Context, userID string, n int) error
}

// GenerationRecord is the completion record handed to the log sink after
// every run, successful or not.
type GenerationRecord struct {
	UserID       string
	Bounds       LngLatBbox
	MinZoom      uint32
	MaxZoom      uint32
	TileSource   string
	ExportFormat string
	SizeMB       float64
	TileCount    int
	Status       string
	ErrorMessage string
}

// LogSink records generation events. A sink failure after a completed run is
// surfaced as an ErrLogRecord-wrapped error alongside the artifact, never as
// a generation failure.
type LogSink interface {
	Record(ctx context.Context, rec GenerationRecord) error
}

// Progress reports run advancement. Attempted/Total are monotonic within a
// run; Total is the estimated tile count.
type Progress struct {
	State     State
	Attempted int
	Total     int
}

// Request is one generation run's input. Immutable once passed in.
type Request struct {
	UserID  string
	Bounds  LngLatBbox
	MinZoom uint32
	MaxZoom uint32
	Source  string
	Format  string

	// Confirmed acknowledges a run whose estimate exceeds
	// ConfirmationThreshold. Without it such runs are refused before any
	// quota or network activity.
	Confirmed bool
}

// Generator orchestrates one generation run: validate, estimate, check
// quota, fetch, package, record. Each run owns its tile accumulator; no
// state crosses runs.
type Generator struct {
	fetcher    *Fetcher
	quota      QuotaService
	sink       LogSink
	onProgress func(Progress)
	now        func() time.Time
}

func NewGenerator(fetcher *Fetcher, quota QuotaService, sink LogSink) *Generator {
	return &Generator{
		fetcher: fetcher,
		quota:   quota,
		sink:    sink,
		now:     time.Now,
	}
}

// OnProgress registers a progress callback. Must be set before Generate.
func (g *Generator) OnProgress(fn func(Progress)) {
	g.onProgress = fn
}

func (g *Generator) progress(p Progress) {
	if g.onProgress != nil {
		g.onProgress(p)
	}
}

// Generate runs the full pipeline and returns the finished artifact. On
// failure after the quota was decremented, exactly one quota unit is
// refunded. A non-nil artifact may accompany an ErrLogRecord error when only
// the completion record failed to write.
func (g *Generator) Generate(ctx context.Context, req Request) (*Artifact, error) {
	g.progress(Progress{State: StateValidating})

	source, packager, err := g.validate(req)
	if err != nil {
		return nil, err
	}

	g.progress(Progress{State: StateEstimating})
	estimate := EstimateTiles(req.Bounds, req.MinZoom, req.MaxZoom)

	if estimate.NeedsConfirmation() && !req.Confirmed {
		g.progress(Progress{State: StateAwaitingConfirmation, Total: estimate.TotalTiles})
		return nil, fmt.Errorf("%w: %d tiles", ErrConfirmationRequired, estimate.TotalTiles)
	}

	g.progress(Progress{State: StateQuotaCheck, Total: estimate.TotalTiles})
	remaining, err := g.quota.HasRemaining(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuotaDecrement, err)
	}
	if !remaining {
		return nil, ErrQuotaExhausted
	}
	ok, err := g.quota.Decrement(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuotaDecrement, err)
	}
	if !ok {
		return nil, ErrQuotaDecrement
	}

	artifact, stats, err := g.run(ctx, req, source, packager, estimate)
	if err != nil {
		g.progress(Progress{State: StateFailed, Total: estimate.TotalTiles})
		if refundErr := g.quota.Refund(ctx, req.UserID, 1); refundErr != nil {
			slog.Warn("quota refund failed", "user", req.UserID, "error", refundErr)
		}
		g.record(ctx, req, nil, err)
		return nil, err
	}

	g.progress(Progress{State: StateCompleted, Attempted: stats.Attempted, Total: estimate.TotalTiles})
	if recErr := g.record(ctx, req, artifact, nil); recErr != nil {
		return artifact, fmt.Errorf("%w: %v", ErrLogRecord, recErr)
	}
	return artifact, nil
}

func (g *Generator) validate(req Request) (TileSource, Packager, error) {
	if !req.Bounds.Valid() {
		return TileSource{}, nil, fmt.Errorf("%w: bounding box %s", ErrInvalidInput, req.Bounds)
	}
	if req.MinZoom < MinZoomLimit || req.MaxZoom > MaxZoomLimit || req.MinZoom > req.MaxZoom {
		return TileSource{}, nil, fmt.Errorf("%w: zoom levels %d-%d (valid %d-%d, min ≤ max)",
			ErrInvalidInput, req.MinZoom, req.MaxZoom, MinZoomLimit, MaxZoomLimit)
	}

	source, ok := LookupSource(req.Source)
	if !ok {
		return TileSource{}, nil, fmt.Errorf("%w: %q", ErrUnknownSource, req.Source)
	}
	if req.MaxZoom > source.MaxZoom {
		slog.Warn("max zoom exceeds source ceiling, upstream tiles may be missing",
			"source", source.Name, "maxZoom", req.MaxZoom, "ceiling", source.MaxZoom)
	}

	packager, err := PackagerFor(req.Format)
	if err != nil {
		return TileSource{}, nil, err
	}

	return source, packager, nil
}

func (g *Generator) run(ctx context.Context, req Request, source TileSource, packager Packager, estimate *Estimate) (*Artifact, FetchStats, error) {
	g.progress(Progress{State: StateFetching, Total: estimate.TotalTiles})

	// Zoom outer, x inner, y innermost: the order fixes progress
	// reporting, not correctness.
	wanted := make([]Tile, 0, estimate.TotalTiles)
	for zoom := req.MinZoom; zoom <= req.MaxZoom; zoom++ {
		rng := TileRangeForBounds(req.Bounds, zoom)
		for x := rng.MinX; x <= rng.MaxX; x++ {
			for y := rng.MinY; y <= rng.MaxY; y++ {
				wanted = append(wanted, Tile{Z: zoom, X: x, Y: y})
			}
		}
	}

	tiles, stats, err := g.fetcher.FetchAll(ctx, source, wanted, func(attempted, total int) {
		g.progress(Progress{State: StateFetching, Attempted: attempted, Total: total})
	})
	if err != nil {
		return nil, stats, fmt.Errorf("fetching aborted: %w", err)
	}

	slog.Info("fetch pass finished",
		"attempted", stats.Attempted, "succeeded", stats.Succeeded, "failed", stats.Failed)

	if stats.Succeeded == 0 {
		return nil, stats, ErrNoTilesDownloaded
	}

	g.progress(Progress{State: StatePackaging, Attempted: stats.Attempted, Total: estimate.TotalTiles})
	artifact, err := packager.Pack(tiles, PackParams{
		Bounds:  req.Bounds,
		MinZoom: req.MinZoom,
		MaxZoom: req.MaxZoom,
		Source:  source,
		Now:     g.now,
	})
	if err != nil {
		return nil, stats, err
	}

	g.progress(Progress{State: StateFinalizing, Attempted: stats.Attempted, Total: estimate.TotalTiles})
	return artifact, stats, nil
}

func (g *Generator) record(ctx context.Context, req Request, artifact *Artifact, runErr error) error {
	if g.sink == nil {
		return nil
	}

	rec := GenerationRecord{
		UserID:       req.UserID,
		Bounds:       req.Bounds,
		MinZoom:      req.MinZoom,
		MaxZoom:      req.MaxZoom,
		TileSource:   req.Source,
		ExportFormat: req.Format,
		Status:       StatusCompleted,
	}
	if artifact != nil {
		rec.SizeMB = artifact.SizeMB
		rec.TileCount = artifact.TileCount
	}
	if runErr != nil {
		rec.Status = StatusFailed
		rec.ErrorMessage = runErr.Error()
	}

	if err := g.sink.Record(ctx, rec); err != nil {
		if runErr != nil {
			// The run already failed; the lost record is only logged.
			slog.Warn("failure record write failed", "user", req.UserID, "error", err)
			return nil
		}
		return err
	}
	return nil
}

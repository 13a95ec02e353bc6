package tilegen

// Fixed per-tile heuristics. These are deliberately simple documented
// constants, not measured throughput: ~50KB per tile on disk and ~100ms per
// tile end to end.
const (
	EstimatedMBPerTile      = 0.05
	EstimatedSecondsPerTile = 0.1

	// ConfirmationThreshold is the tile count above which the caller must
	// obtain explicit user confirmation before a run proceeds.
	ConfirmationThreshold = 5000
)

// ZoomCount is the tile count contributed by a single zoom level.
type ZoomCount struct {
	Zoom  uint32
	Count int
}

// Estimate predicts the shape of a generation run. Derived, never persisted.
type Estimate struct {
	TotalTiles       int
	PerZoom          []ZoomCount
	EstimatedSizeMB  float64
	EstimatedSeconds float64
}

// NeedsConfirmation reports whether the run is large enough that the caller
// must confirm it before generation starts.
func (e *Estimate) NeedsConfirmation() bool {
	return e.TotalTiles > ConfirmationThreshold
}

// EstimateTiles computes the tile count, size and duration estimate for a
// bounding box across a zoom range inclusive.
func EstimateTiles(bbox LngLatBbox, minZoom, maxZoom uint32) *Estimate {
	est := &Estimate{}

	for zoom := minZoom; zoom <= maxZoom; zoom++ {
		count := TileRangeForBounds(bbox, zoom).Count()
		est.PerZoom = append(est.PerZoom, ZoomCount{Zoom: zoom, Count: count})
		est.TotalTiles += count
	}

	est.EstimatedSizeMB = float64(est.TotalTiles) * EstimatedMBPerTile
	est.EstimatedSeconds = float64(est.TotalTiles) * EstimatedSecondsPerTile

	return est
}

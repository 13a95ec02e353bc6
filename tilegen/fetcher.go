package tilegen

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const fetchUserAgent = "GeoPulse-Generator/1.0"

// DefaultPacing is the global request ceiling applied across all fetch
// workers: one tile every 65ms, matching the fixed inter-request sleeps the
// upstream sources expect (50ms per tile plus a longer pause every tenth).
// It is a constant throttle, not adaptive backoff.
var DefaultPacing = rate.Every(65 * time.Millisecond)

const (
	defaultFetchWorkers = 4
	defaultFetchTimeout = 30 * time.Second
)

// FetchStats counts the outcome of one fetch pass. A failed tile is
// non-fatal; only a zero-success total is fatal to the caller.
type FetchStats struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Fetcher retrieves raster tiles over HTTP with a bounded worker pool. All
// workers share one rate limiter so the pacing ceiling holds regardless of
// concurrency.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	workers int
}

// NewFetcher returns a fetcher with the given worker count and HTTP timeout.
// Zero values select the defaults.
func NewFetcher(workers int, timeout time.Duration) *Fetcher {
	if workers <= 0 {
		workers = defaultFetchWorkers
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: workers,
		},
	}

	return &Fetcher{
		client:  client,
		limiter: rate.NewLimiter(DefaultPacing, 1),
		workers: workers,
	}
}

// FetchTile retrieves one tile from source. It returns nil on any non-200
// status or transport error; the caller counts the tile as failed and
// continues.
func (f *Fetcher) FetchTile(ctx context.Context, source TileSource, tile Tile) []byte {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil
	}

	url := source.URL(tile)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Warn("could not build tile request", "url", url, "error", err)
		return nil
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		slog.Warn("tile fetch failed", "tile", tile, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("tile fetch rejected", "tile", tile, "status", resp.StatusCode)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn("tile body read failed", "tile", tile, "error", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	return data
}

// FetchAll retrieves every tile in tiles, reporting progress after each
// attempt. Successful tiles are returned sorted by (z, x, y). The only error
// is context cancellation.
func (f *Fetcher) FetchAll(ctx context.Context, source TileSource, tiles []Tile, onProgress func(attempted, total int)) ([]TileData, FetchStats, error) {
	total := len(tiles)

	jobs := make(chan Tile, f.workers)
	results := make(chan *TileData, f.workers)

	workerWG := &sync.WaitGroup{}
	for w := 0; w < f.workers; w++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for tile := range jobs {
				data := f.FetchTile(ctx, source, tile)
				if data == nil {
					results <- nil
					continue
				}
				results <- &TileData{Tile: tile, Data: data}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, tile := range tiles {
			select {
			case jobs <- tile:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		workerWG.Wait()
		close(results)
	}()

	var stats FetchStats
	fetched := make([]TileData, 0, total)
	for result := range results {
		stats.Attempted++
		if result != nil {
			fetched = append(fetched, *result)
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		if onProgress != nil {
			onProgress(stats.Attempted, total)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	SortTiles(fetched)
	return fetched, stats, nil
}

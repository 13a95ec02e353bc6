package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/geopulse/go-tilegen/delivery"
	"github.com/geopulse/go-tilegen/tilegen"
)

// noopQuota accepts every run. The CLI has no account backing it; quota
// enforcement belongs to callers that embed the generator behind one.
type noopQuota struct{}

func (noopQuota) HasRemaining(context.Context, string) (bool, error) { return true, nil }
func (noopQuota) Decrement(context.Context, string) (bool, error)    { return true, nil }
func (noopQuota) Refund(context.Context, string, int) error          { return nil }

// logSink appends generation records to stderr via the standard logger.
type logSink struct{}

func (logSink) Record(_ context.Context, rec tilegen.GenerationRecord) error {
	log.Printf("generation %s: source=%s format=%s tiles=%d size=%.2fMB bounds=%s zooms=%d-%d",
		rec.Status, rec.TileSource, rec.ExportFormat, rec.TileCount, rec.SizeMB,
		rec.Bounds.String(), rec.MinZoom, rec.MaxZoom)
	if rec.ErrorMessage != "" {
		log.Printf("generation error: %s", rec.ErrorMessage)
	}
	return nil
}

func main() {
	boundingBoxStr := flag.String("bounds", "", "Comma-separated bounding box in south,west,north,east format.")
	zoomsStr := flag.String("zooms", "", "Zoom levels as a '{MIN_ZOOM}-{MAX_ZOOM}' range string or a single zoom.")
	sourceStr := flag.String("source", "osm", fmt.Sprintf("Tile source to fetch from. Options are: %s.", strings.Join(tilegen.SourceNames(), ", ")))
	formatStr := flag.String("format", tilegen.FormatMBTiles, fmt.Sprintf("Export format. Options are: %s.", strings.Join(tilegen.ExportFormats(), ", ")))
	outputDir := flag.String("output", ".", "Directory to write the finished artifact to.")
	bucketStr := flag.String("bucket", "", "If set, also upload the artifact to this S3 bucket.")
	bucketPrefix := flag.String("bucket-prefix", "", "Key prefix for S3 uploads.")
	numTileFetchWorkers := flag.Int("workers", 4, "Number of tile fetch workers to use.")
	requestTimeout := flag.Int("timeout", 30, "HTTP client timeout for tile requests, in seconds.")
	confirmed := flag.Bool("confirm", false, "Proceed even when the estimated tile count exceeds the confirmation threshold.")
	flag.Parse()

	if *boundingBoxStr == "" {
		log.Fatalf("Bounding box (-bounds) is required")
	}
	if *zoomsStr == "" {
		log.Fatalf("Zoom range (-zooms) is required")
	}

	boundingBoxStrSplit := strings.Split(*boundingBoxStr, ",")
	if len(boundingBoxStrSplit) != 4 {
		log.Fatalf("Bounding box string must be a comma-separated list of 4 numbers")
	}

	boundingBoxFloats := make([]float64, 4)
	for i, bboxStr := range boundingBoxStrSplit {
		bboxFloat, err := strconv.ParseFloat(strings.TrimSpace(bboxStr), 64)
		if err != nil {
			log.Fatalf("Bounding box string could not be parsed as numbers")
		}
		boundingBoxFloats[i] = bboxFloat
	}

	bounds := tilegen.LngLatBbox{
		South: boundingBoxFloats[0],
		West:  boundingBoxFloats[1],
		North: boundingBoxFloats[2],
		East:  boundingBoxFloats[3],
	}

	minZoom, maxZoom, err := parseZooms(*zoomsStr)
	if err != nil {
		log.Fatalf("Failed to parse zooms: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := tilegen.NewFetcher(*numTileFetchWorkers, time.Duration(*requestTimeout)*time.Second)
	generator := tilegen.NewGenerator(fetcher, noopQuota{}, logSink{})

	var bar *progressbar.ProgressBar
	var barOnce sync.Once
	generator.OnProgress(func(p tilegen.Progress) {
		if p.State != tilegen.StateFetching || p.Total == 0 {
			return
		}
		barOnce.Do(func() {
			bar = progressbar.Default(int64(p.Total), "fetching tiles")
		})
		bar.Set(p.Attempted)
	})

	artifact, err := generator.Generate(ctx, tilegen.Request{
		Bounds:    bounds,
		MinZoom:   minZoom,
		MaxZoom:   maxZoom,
		Source:    *sourceStr,
		Format:    *formatStr,
		Confirmed: *confirmed,
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		if errors.Is(err, tilegen.ErrConfirmationRequired) {
			log.Fatalf("%s. Re-run with -confirm to proceed.", err)
		}
		log.Fatalf("Generation failed: %s", err)
	}

	path, err := delivery.FileSink{Dir: *outputDir}.Store(ctx, artifact)
	if err != nil {
		log.Fatalf("Couldn't write artifact: %s", err)
	}
	log.Printf("Wrote %s (%d tiles, %.2f MB)", path, artifact.TileCount, artifact.SizeMB)

	if *bucketStr != "" {
		sink, err := delivery.NewS3Sink(*bucketStr, *bucketPrefix)
		if err != nil {
			log.Fatalf("Couldn't create S3 sink: %s", err)
		}
		url, err := sink.Store(ctx, artifact)
		if err != nil {
			log.Fatalf("Couldn't upload artifact: %s", err)
		}
		log.Printf("Uploaded %s", url)
	}
}

var zoomRangeRegex = regexp.MustCompile(`^\d+\-\d+$`)

func parseZooms(s string) (uint32, uint32, error) {
	if zoomRangeRegex.MatchString(s) {
		parts := strings.Split(s, "-")

		minZoom, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid min zoom %q: %w", parts[0], err)
		}

		maxZoom, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid max zoom %q: %w", parts[1], err)
		}

		return uint32(minZoom), uint32(maxZoom), nil
	}

	z, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid zoom %q: %w", s, err)
	}
	return uint32(z), uint32(z), nil
}

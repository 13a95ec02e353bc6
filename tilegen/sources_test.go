package tilegen

import (
	"sort"
	"strings"
	"testing"
)

func TestTileSourceURL(t *testing.T) {
	tests := []struct {
		name   string
		source string
		tile   Tile
		want   string
	}{
		{
			"osm uses z/x/y path order",
			"osm",
			Tile{Z: 12, X: 2926, Y: 1707},
			"https://tile.openstreetmap.org/12/2926/1707.png",
		},
		{
			"satellite uses z/y/x path order",
			"satellite",
			Tile{Z: 12, X: 2926, Y: 1707},
			"https://services.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/12/1707/2926",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, ok := LookupSource(tt.source)
			if !ok {
				t.Fatalf("source %q not registered", tt.source)
			}
			if got := source.URL(tt.tile); got != tt.want {
				t.Errorf("URL() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLookupSource(t *testing.T) {
	if _, ok := LookupSource("carrier-pigeon"); ok {
		t.Error("unregistered source should not resolve")
	}

	for _, name := range SourceNames() {
		source, ok := LookupSource(name)
		if !ok {
			t.Fatalf("SourceNames returned unregistered name %q", name)
		}
		if source.Name != name {
			t.Errorf("source %q reports Name %q", name, source.Name)
		}
		if source.MaxZoom < MinZoomLimit || source.MaxZoom > MaxZoomLimit {
			t.Errorf("source %q has max zoom %d outside %d-%d", name, source.MaxZoom, MinZoomLimit, MaxZoomLimit)
		}
		if !strings.Contains(source.URLTemplate, "{z}") {
			t.Errorf("source %q template has no {z} placeholder", name)
		}
	}
}

func TestSourceNamesSorted(t *testing.T) {
	names := SourceNames()
	if len(names) == 0 {
		t.Fatal("no sources registered")
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("SourceNames() not sorted: %v", names)
	}
}

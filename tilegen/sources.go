package tilegen

import (
	"fmt"
	"sort"
	"strings"
)

// TileSource describes one entry in the fixed tile source table: a URL
// template plus the zoom ceiling the upstream natively serves. The set is
// fixed at build time and not user-extensible.
type TileSource struct {
	Name        string
	DisplayName string
	URLTemplate string
	Attribution string
	MaxZoom     uint32
}

// URL resolves the template for one tile. Templates use {z}, {x} and {y}
// placeholders; ArcGIS-style servers order the path {z}/{y}/{x}, which the
// template already encodes.
func (s TileSource) URL(t Tile) string {
	return strings.NewReplacer(
		"{z}", fmt.Sprintf("%d", t.Z),
		"{x}", fmt.Sprintf("%d", t.X),
		"{y}", fmt.Sprintf("%d", t.Y),
	).Replace(s.URLTemplate)
}

var tileSources = map[string]TileSource{
	"osm": {
		Name:        "osm",
		DisplayName: "OpenStreetMap",
		URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "© OpenStreetMap contributors",
		MaxZoom:     19,
	},
	"satellite": {
		Name:        "satellite",
		DisplayName: "ArcGIS World Imagery",
		URLTemplate: "https://services.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles © Esri — Source: Esri, Maxar, Earthstar Geographics",
		MaxZoom:     22,
	},
	"topographic": {
		Name:        "topographic",
		DisplayName: "ArcGIS Topographic",
		URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Topo_Map/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles © Esri — DeLorme, NAVTEQ",
		MaxZoom:     20,
	},
	"hiking": {
		Name:        "hiking",
		DisplayName: "ArcGIS World Physical",
		URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Physical_Map/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles © Esri — US National Park Service",
		MaxZoom:     17,
	},
	"terrain": {
		Name:        "terrain",
		DisplayName: "ArcGIS Terrain Base",
		URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Terrain_Base/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles © Esri — USGS, NOAA",
		MaxZoom:     18,
	},
	"cycling": {
		Name:        "cycling",
		DisplayName: "ArcGIS Street Map",
		URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Street_Map/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles © Esri — DeLorme, NAVTEQ, USGS",
		MaxZoom:     20,
	},
	"trekking": {
		Name:        "trekking",
		DisplayName: "National Geographic World Map",
		URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/NatGeo_World_Map/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles © Esri — National Geographic, DeLorme, NAVTEQ",
		MaxZoom:     16,
	},
	"outdoor": {
		Name:        "outdoor",
		DisplayName: "ArcGIS Topographic",
		URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Topo_Map/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles © Esri — DeLorme, NAVTEQ",
		MaxZoom:     20,
	},
}

// LookupSource returns the registered tile source for name.
func LookupSource(name string) (TileSource, bool) {
	s, ok := tileSources[name]
	return s, ok
}

// SourceNames returns the names of all registered sources.
func SourceNames() []string {
	names := make([]string, 0, len(tileSources))
	for name := range tileSources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

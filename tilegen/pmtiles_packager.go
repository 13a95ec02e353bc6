package tilegen

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/protomaps/go-pmtiles/pmtiles"
)

// pmtilesPackager encodes tiles into a clustered PMTiles v3 archive with the
// png tile type. Identical tile payloads are stored once and shared between
// entries.
type pmtilesPackager struct{}

func (p *pmtilesPackager) Format() string { return FormatPMTiles }

const pmtilesRootDirBudget = 16384 - pmtiles.HeaderV3LenBytes

func (p *pmtilesPackager) Pack(tiles []TileData, params PackParams) (*Artifact, error) {
	type offsetLen struct {
		offset uint64
		length uint32
	}

	hashFunc := fnv.New128a()
	offsets := make(map[string]offsetLen)
	tileData := &bytes.Buffer{}
	entries := make([]pmtiles.EntryV3, 0, len(tiles))

	for _, t := range tiles {
		id := pmtiles.ZxyToID(uint8(t.Tile.Z), t.Tile.X, t.Tile.Y)

		hashFunc.Reset()
		hashFunc.Write(t.Data)
		sum := string(hashFunc.Sum(nil))

		found, ok := offsets[sum]
		if !ok {
			found = offsetLen{
				offset: uint64(tileData.Len()),
				length: uint32(len(t.Data)),
			}
			tileData.Write(t.Data)
			offsets[sum] = found
		}

		entries = append(entries, pmtiles.EntryV3{
			TileID:    id,
			Offset:    found.offset,
			Length:    found.length,
			RunLength: 1,
		})
	}

	// A clustered archive requires entries in tile ID order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].TileID < entries[j].TileID })

	rootBytes, leavesBytes := buildPmtilesDirectories(entries)

	metadataBytes, err := pmtiles.SerializeMetadata(map[string]interface{}{
		"name":        "GeoPulse Generated Tiles",
		"attribution": params.Source.Attribution,
	}, pmtiles.Gzip)
	if err != nil {
		return nil, fmt.Errorf("%w: pmtiles: serializing metadata: %v", ErrPackaging, err)
	}

	center := params.Bounds.Bound().Center()
	header := pmtiles.HeaderV3{
		SpecVersion:         3,
		Clustered:           true,
		InternalCompression: pmtiles.Gzip,
		TileCompression:     pmtiles.NoCompression,
		TileType:            pmtiles.Png,
		MinZoom:             uint8(params.MinZoom),
		MaxZoom:             uint8(params.MaxZoom),
		MinLonE7:            int32(params.Bounds.West * 1e7),
		MinLatE7:            int32(params.Bounds.South * 1e7),
		MaxLonE7:            int32(params.Bounds.East * 1e7),
		MaxLatE7:            int32(params.Bounds.North * 1e7),
		CenterZoom:          uint8(params.MinZoom),
		CenterLonE7:         int32(center.X() * 1e7),
		CenterLatE7:         int32(center.Y() * 1e7),
		AddressedTilesCount: uint64(len(entries)),
		TileEntriesCount:    uint64(len(entries)),
		TileContentsCount:   uint64(len(offsets)),
	}

	header.RootOffset = pmtiles.HeaderV3LenBytes
	header.RootLength = uint64(len(rootBytes))
	header.MetadataOffset = header.RootOffset + header.RootLength
	header.MetadataLength = uint64(len(metadataBytes))
	header.LeafDirectoryOffset = header.MetadataOffset + header.MetadataLength
	header.LeafDirectoryLength = uint64(len(leavesBytes))
	header.TileDataOffset = header.LeafDirectoryOffset + header.LeafDirectoryLength
	header.TileDataLength = uint64(tileData.Len())

	blob := &bytes.Buffer{}
	blob.Write(pmtiles.SerializeHeader(header))
	blob.Write(rootBytes)
	blob.Write(metadataBytes)
	blob.Write(leavesBytes)
	tileData.WriteTo(blob)

	filename := fmt.Sprintf("geopulse_%s_%s.pmtiles", params.Source.Name, params.timestamp())
	return newArtifact(FormatPMTiles, filename, blob.Bytes(), len(tiles), 0), nil
}

// buildPmtilesDirectories serializes entries into a root directory, spilling
// into fixed-size leaf directories when the root alone would exceed the
// 16KB header+root budget.
func buildPmtilesDirectories(entries []pmtiles.EntryV3) (rootBytes, leavesBytes []byte) {
	rootBytes = pmtiles.SerializeEntries(entries, pmtiles.Gzip)
	if len(rootBytes) <= pmtilesRootDirBudget {
		return rootBytes, nil
	}

	const leafSize = 4096

	rootEntries := make([]pmtiles.EntryV3, 0, len(entries)/leafSize+1)
	for i := 0; i < len(entries); i += leafSize {
		end := i + leafSize
		if end > len(entries) {
			end = len(entries)
		}
		serialized := pmtiles.SerializeEntries(entries[i:end], pmtiles.Gzip)

		rootEntries = append(rootEntries, pmtiles.EntryV3{
			TileID:    entries[i].TileID,
			Offset:    uint64(len(leavesBytes)),
			Length:    uint32(len(serialized)),
			RunLength: 0,
		})
		leavesBytes = append(leavesBytes, serialized...)
	}

	return pmtiles.SerializeEntries(rootEntries, pmtiles.Gzip), leavesBytes
}

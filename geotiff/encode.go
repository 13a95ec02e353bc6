// Package geotiff writes single-strip uncompressed RGB GeoTIFF rasters with
// pixel-scale, tiepoint and GeoKey georeferencing tags. It covers exactly
// the subset of TIFF 6.0 + GeoTIFF 1.1 needed to emit a merged tile raster;
// reading is out of scope.
package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// TIFF field types.
const (
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
	typeDouble   = 12
)

// TIFF and GeoTIFF tag IDs.
const (
	tagImageWidth                = 256
	tagImageLength               = 257
	tagBitsPerSample             = 258
	tagCompression               = 259
	tagPhotometricInterpretation = 262
	tagStripOffsets              = 273
	tagSamplesPerPixel           = 277
	tagRowsPerStrip              = 278
	tagStripByteCounts           = 279
	tagXResolution               = 282
	tagYResolution               = 283
	tagResolutionUnit            = 296

	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGeoAsciiParams  = 34737
)

// GeoKey IDs used by the emitted directory.
const (
	keyGTModelType      = 1024
	keyGTRasterType     = 1025
	keyGeographicType   = 2048
	keyGeogCitation     = 2049
	keyGeogAngularUnits = 2054

	modelTypeGeographic = 2
	rasterPixelIsArea   = 1
	angularUnitDegree   = 9102
)

var enc = binary.LittleEndian

// Image is an RGB raster: 3 bytes per pixel, row-major from the top-left.
type Image struct {
	Width  int
	Height int
	Pixels []byte
}

// Georeference ties the raster's top-left corner to the earth. OriginLon and
// OriginLat locate the north-west corner; PixelSize is the per-pixel ground
// size applied to both axes.
type Georeference struct {
	OriginLon float64
	OriginLat float64
	PixelSize float64
	// GeographicType is the EPSG code of the geographic CRS, e.g. 4326.
	GeographicType uint16
	Citation       string
}

type ifdEntry struct {
	tag      uint16
	fieldTyp uint16
	count    uint32
	data     []byte
}

// Encode writes img to w as an uncompressed little-endian GeoTIFF.
func Encode(w io.Writer, img Image, geo Georeference) error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("geotiff: invalid dimensions %dx%d", img.Width, img.Height)
	}
	if want := img.Width * img.Height * 3; len(img.Pixels) != want {
		return fmt.Errorf("geotiff: pixel buffer is %d bytes, want %d", len(img.Pixels), want)
	}

	var entries []ifdEntry
	add := func(tag, fieldTyp uint16, count uint32, data []byte) {
		entries = append(entries, ifdEntry{tag, fieldTyp, count, data})
	}

	add(tagImageWidth, typeLong, 1, encLong(uint32(img.Width)))
	add(tagImageLength, typeLong, 1, encLong(uint32(img.Height)))
	add(tagBitsPerSample, typeShort, 3, encShorts([]uint16{8, 8, 8}))
	add(tagCompression, typeShort, 1, encShort(1))
	add(tagPhotometricInterpretation, typeShort, 1, encShort(2)) // RGB
	add(tagSamplesPerPixel, typeShort, 1, encShort(3))
	add(tagRowsPerStrip, typeLong, 1, encLong(uint32(img.Height)))
	add(tagStripByteCounts, typeLong, 1, encLong(uint32(len(img.Pixels))))
	add(tagXResolution, typeRational, 1, encRational(72, 1))
	add(tagYResolution, typeRational, 1, encRational(72, 1))
	add(tagResolutionUnit, typeShort, 1, encShort(2))

	add(tagModelPixelScale, typeDouble, 3,
		encDoubles([]float64{geo.PixelSize, geo.PixelSize, 0}))
	// One tiepoint: raster (0,0,0) -> model (originLon, originLat, 0).
	add(tagModelTiepoint, typeDouble, 6,
		encDoubles([]float64{0, 0, 0, geo.OriginLon, geo.OriginLat, 0}))

	citation := geo.Citation
	if citation == "" {
		citation = "WGS 84"
	}
	ascii := append([]byte(citation), 0)
	add(tagGeoAsciiParams, typeASCII, uint32(len(ascii)), ascii)

	geoKeys := geoKeyDirectory(geo.GeographicType, uint16(len(ascii)))
	add(tagGeoKeyDirectory, typeShort, uint32(len(geoKeys)), encShorts(geoKeys))

	// StripOffsets is resolved after layout; reserve the entry now so the
	// directory stays sorted by tag.
	add(tagStripOffsets, typeLong, 1, make([]byte, 4))

	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	// Layout: header (8) | IFD | overflow values | pixel strip.
	ifdSize := 2 + 12*len(entries) + 4
	valueOffset := 8 + ifdSize

	var overflow bytes.Buffer
	for i := range entries {
		e := &entries[i]
		if len(e.data) > 4 {
			off := uint32(valueOffset + overflow.Len())
			overflow.Write(e.data)
			e.data = encLong(off)
		}
	}

	stripOffset := uint32(valueOffset + overflow.Len())
	for i := range entries {
		if entries[i].tag == tagStripOffsets {
			entries[i].data = encLong(stripOffset)
		}
	}

	if _, err := w.Write([]byte{'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00}); err != nil {
		return err
	}
	if err := binary.Write(w, enc, uint16(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := binary.Write(w, enc, e.tag); err != nil {
			return err
		}
		if err := binary.Write(w, enc, e.fieldTyp); err != nil {
			return err
		}
		if err := binary.Write(w, enc, e.count); err != nil {
			return err
		}
		var value [4]byte
		copy(value[:], e.data)
		if _, err := w.Write(value[:]); err != nil {
			return err
		}
	}
	if err := binary.Write(w, enc, uint32(0)); err != nil { // no next IFD
		return err
	}
	if _, err := overflow.WriteTo(w); err != nil {
		return err
	}
	_, err := w.Write(img.Pixels)
	return err
}

// geoKeyDirectory builds the GeoKeyDirectoryTag payload: a {1,1,0,n} header
// followed by n key entries sorted by key ID. The citation key points into
// GeoAsciiParams.
func geoKeyDirectory(geographicType, citationLen uint16) []uint16 {
	if geographicType == 0 {
		geographicType = 4326
	}
	keys := [][4]uint16{
		{keyGTModelType, 0, 1, modelTypeGeographic},
		{keyGTRasterType, 0, 1, rasterPixelIsArea},
		{keyGeographicType, 0, 1, geographicType},
		{keyGeogCitation, tagGeoAsciiParams, citationLen, 0},
		{keyGeogAngularUnits, 0, 1, angularUnitDegree},
	}

	dir := []uint16{1, 1, 0, uint16(len(keys))}
	for _, k := range keys {
		dir = append(dir, k[0], k[1], k[2], k[3])
	}
	return dir
}

func encShort(v uint16) []byte {
	b := make([]byte, 2)
	enc.PutUint16(b, v)
	return b
}

func encLong(v uint32) []byte {
	b := make([]byte, 4)
	enc.PutUint32(b, v)
	return b
}

func encShorts(vs []uint16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		enc.PutUint16(b[i*2:], v)
	}
	return b
}

func encDoubles(vs []float64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		enc.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

func encRational(num, den uint32) []byte {
	b := make([]byte, 8)
	enc.PutUint32(b[:4], num)
	enc.PutUint32(b[4:], den)
	return b
}

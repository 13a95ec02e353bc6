package geotiff

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// parsedTIFF is a minimal little-endian single-IFD reader for assertions.
type parsedTIFF struct {
	raw     []byte
	entries map[uint16]ifdEntry
}

func parseTIFF(t *testing.T, raw []byte) *parsedTIFF {
	t.Helper()

	if len(raw) < 8 || raw[0] != 'I' || raw[1] != 'I' || enc.Uint16(raw[2:]) != 42 {
		t.Fatalf("bad TIFF header: % x", raw[:8])
	}
	ifdOffset := enc.Uint32(raw[4:])
	count := int(enc.Uint16(raw[ifdOffset:]))

	entries := map[uint16]ifdEntry{}
	prevTag := uint16(0)
	for i := 0; i < count; i++ {
		base := int(ifdOffset) + 2 + i*12
		e := ifdEntry{
			tag:      enc.Uint16(raw[base:]),
			fieldTyp: enc.Uint16(raw[base+2:]),
			count:    enc.Uint32(raw[base+4:]),
			data:     raw[base+8 : base+12],
		}
		if e.tag <= prevTag {
			t.Errorf("IFD not sorted: tag %d after %d", e.tag, prevTag)
		}
		prevTag = e.tag
		entries[e.tag] = e
	}

	return &parsedTIFF{raw: raw, entries: entries}
}

func (p *parsedTIFF) entry(t *testing.T, tag uint16) ifdEntry {
	t.Helper()
	e, ok := p.entries[tag]
	if !ok {
		t.Fatalf("tag %d missing", tag)
	}
	return e
}

// values returns the entry's payload bytes, following the offset when the
// value does not fit inline.
func (p *parsedTIFF) values(t *testing.T, tag uint16, size int) []byte {
	e := p.entry(t, tag)
	if size <= 4 {
		return e.data[:size]
	}
	off := enc.Uint32(e.data)
	return p.raw[off : int(off)+size]
}

func (p *parsedTIFF) short(t *testing.T, tag uint16) uint16 {
	return enc.Uint16(p.values(t, tag, 2))
}

func (p *parsedTIFF) long(t *testing.T, tag uint16) uint32 {
	return enc.Uint32(p.values(t, tag, 4))
}

func (p *parsedTIFF) doubles(t *testing.T, tag uint16, n int) []float64 {
	raw := p.values(t, tag, n*8)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(enc.Uint64(raw[i*8:]))
	}
	return out
}

func TestEncode(t *testing.T) {
	img := Image{
		Width:  2,
		Height: 2,
		Pixels: []byte{
			255, 0, 0, 0, 255, 0,
			0, 0, 255, 255, 255, 255,
		},
	}
	geo := Georeference{
		OriginLon:      77.20,
		OriginLat:      28.62,
		PixelSize:      38.21851414258813,
		GeographicType: 4326,
		Citation:       "WGS 84",
	}

	buf := &bytes.Buffer{}
	if err := Encode(buf, img, geo); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	p := parseTIFF(t, buf.Bytes())

	if got := p.long(t, tagImageWidth); got != 2 {
		t.Errorf("ImageWidth = %d", got)
	}
	if got := p.long(t, tagImageLength); got != 2 {
		t.Errorf("ImageLength = %d", got)
	}
	if got := p.short(t, tagCompression); got != 1 {
		t.Errorf("Compression = %d, want 1 (none)", got)
	}
	if got := p.short(t, tagPhotometricInterpretation); got != 2 {
		t.Errorf("PhotometricInterpretation = %d, want 2 (RGB)", got)
	}
	if got := p.short(t, tagSamplesPerPixel); got != 3 {
		t.Errorf("SamplesPerPixel = %d", got)
	}
	if got := p.long(t, tagStripByteCounts); got != uint32(len(img.Pixels)) {
		t.Errorf("StripByteCounts = %d, want %d", got, len(img.Pixels))
	}

	scale := p.doubles(t, tagModelPixelScale, 3)
	if scale[0] != geo.PixelSize || scale[1] != geo.PixelSize || scale[2] != 0 {
		t.Errorf("ModelPixelScale = %v", scale)
	}

	tiepoint := p.doubles(t, tagModelTiepoint, 6)
	want := []float64{0, 0, 0, 77.20, 28.62, 0}
	for i := range want {
		if tiepoint[i] != want[i] {
			t.Errorf("ModelTiepoint = %v, want %v", tiepoint, want)
			break
		}
	}

	// The strip offset points at the raw pixel data.
	stripOffset := p.long(t, tagStripOffsets)
	strip := buf.Bytes()[stripOffset : int(stripOffset)+len(img.Pixels)]
	if !bytes.Equal(strip, img.Pixels) {
		t.Errorf("pixel strip mismatch")
	}

	keyEntry := p.entry(t, tagGeoKeyDirectory)
	keyRaw := p.values(t, tagGeoKeyDirectory, int(keyEntry.count)*2)
	keys := make([]uint16, keyEntry.count)
	for i := range keys {
		keys[i] = binary.LittleEndian.Uint16(keyRaw[i*2:])
	}
	if keys[0] != 1 || keys[1] != 1 || keys[3] != 5 {
		t.Errorf("GeoKey header = %v", keys[:4])
	}
	findKey := func(id uint16) [4]uint16 {
		for i := 4; i+3 < len(keys); i += 4 {
			if keys[i] == id {
				return [4]uint16{keys[i], keys[i+1], keys[i+2], keys[i+3]}
			}
		}
		t.Fatalf("GeoKey %d missing", id)
		return [4]uint16{}
	}
	if k := findKey(keyGTModelType); k[3] != modelTypeGeographic {
		t.Errorf("GTModelType = %d", k[3])
	}
	if k := findKey(keyGTRasterType); k[3] != rasterPixelIsArea {
		t.Errorf("GTRasterType = %d", k[3])
	}
	if k := findKey(keyGeographicType); k[3] != 4326 {
		t.Errorf("GeographicType = %d", k[3])
	}
	if k := findKey(keyGeogAngularUnits); k[3] != angularUnitDegree {
		t.Errorf("GeogAngularUnits = %d", k[3])
	}

	asciiEntry := p.entry(t, tagGeoAsciiParams)
	ascii := p.values(t, tagGeoAsciiParams, int(asciiEntry.count))
	if string(ascii) != "WGS 84\x00" {
		t.Errorf("GeoAsciiParams = %q", ascii)
	}
}

func TestEncodeRejectsBadInput(t *testing.T) {
	buf := &bytes.Buffer{}

	if err := Encode(buf, Image{Width: 0, Height: 2, Pixels: nil}, Georeference{}); err == nil {
		t.Error("zero width accepted")
	}
	if err := Encode(buf, Image{Width: 2, Height: 2, Pixels: make([]byte, 5)}, Georeference{}); err == nil {
		t.Error("short pixel buffer accepted")
	}
}

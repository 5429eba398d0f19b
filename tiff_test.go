package irtiff

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"
)

func testRaster(w, h int) *Raster {
	r := &Raster{Width: w, Height: h, Pix: make([]float32, w*h)}
	for i := range r.Pix {
		r.Pix[i] = float32(fakeSample(i)) / rawScale
	}
	return r
}

func TestEncodeDecodeTIFF(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		fx := buildExif(t, order)
		b, err := BundleFromExif(fx.data)
		if err != nil {
			t.Fatalf("bundle: %v", err)
		}
		// Tall raster, several strips.
		r := testRaster(300, 17)

		var buf bytes.Buffer
		if err := EncodeTIFF(&buf, r, b); err != nil {
			t.Fatalf("%s: encode: %v", order, err)
		}
		data := buf.Bytes()
		if string(data[:2]) != b.ByteOrder {
			t.Fatalf("%s: file byte order %q, want %q", order, data[:2], b.ByteOrder)
		}

		got, gotBundle, err := DecodeTIFF(data)
		if err != nil {
			t.Fatalf("%s: decode: %v", order, err)
		}
		if got.Width != r.Width || got.Height != r.Height {
			t.Fatalf("%s: size %dx%d", order, got.Width, got.Height)
		}
		for i := range r.Pix {
			if math.Float32bits(got.Pix[i]) != math.Float32bits(r.Pix[i]) {
				t.Fatalf("%s: pixel %d: got %v, want %v", order, i, got.Pix[i], r.Pix[i])
			}
		}
		if !gotBundle.Equal(b) {
			t.Fatalf("%s: metadata changed", order)
		}
		checkGPS(t, fx, gotBundle)
	}
}

func TestEncodeTIFFCarriesOnlyGPSAndThumbnail(t *testing.T) {
	fx := buildExif(t, binary.LittleEndian)
	b, err := BundleFromExif(fx.data)
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}

	var buf bytes.Buffer
	if err := EncodeTIFF(&buf, testRaster(5, 3), b); err != nil {
		t.Fatalf("encode: %v", err)
	}

	ts, err := parseTIFFHeader(buf.Bytes())
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	ifd0, next, err := ts.readIFD(ts.firstIFD)
	if err != nil {
		t.Fatalf("ifd0: %v", err)
	}
	for _, tag := range []uint16{tagExifIFD, tagInteropIFD, tagMake} {
		if _, ok := findEntry(ifd0, tag); ok {
			t.Fatalf("ifd0 carries tag 0x%04X", tag)
		}
	}
	if _, ok := findEntry(ifd0, tagGPSIFD); !ok {
		t.Fatal("ifd0 has no gps pointer")
	}
	e, _ := findEntry(ifd0, tagSampleFormat)
	if v, _ := ts.uintValue(e); v != sampleFormatIEEEFP {
		t.Fatalf("sample format %d", v)
	}

	if next == 0 {
		t.Fatal("ifd1 missing")
	}
	ifd1, _, err := ts.readIFD(next)
	if err != nil {
		t.Fatalf("ifd1: %v", err)
	}
	if len(ifd1) != 2 {
		t.Fatalf("ifd1 has %d entries, want only thumbnail offset and length", len(ifd1))
	}
}

func TestEncodeTIFFWithoutMetadata(t *testing.T) {
	r := testRaster(4, 4)
	p := filepath.Join(t.TempDir(), "bare.tiff")
	if err := EncodeTIFFFile(p, r, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	data := readFile(t, p)
	if string(data[:2]) != byteOrderLittle {
		t.Fatalf("byte order %q", data[:2])
	}
	got, b, err := DecodeTIFF(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.At(3, 3) != r.At(3, 3) {
		t.Fatalf("pixel mismatch")
	}
	if !b.Empty() {
		t.Fatalf("unexpected metadata %+v", b)
	}
}

func TestEncodeTIFFRejectsInvalidRaster(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeTIFF(&buf, &Raster{Width: 2, Height: 2, Pix: make([]float32, 3)}, nil); err == nil {
		t.Fatal("expected error")
	}
	if err := EncodeTIFF(&buf, nil, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodeTIFFRejectsIntegerSamples(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeTIFF(&buf, testRaster(2, 2), nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	data := buf.Bytes()
	ts, err := parseTIFFHeader(data)
	if err != nil {
		t.Fatalf("header: %v", err)
	}

	// Patch SampleFormat to unsigned integer in place.
	pos := int(ts.firstIFD) + 2
	for i := 0; i < int(ts.order.Uint16(data[ts.firstIFD:])); i++ {
		e := data[pos+i*ifdEntrySize:]
		if ts.order.Uint16(e) == tagSampleFormat {
			ts.order.PutUint16(e[8:], 1)
		}
	}
	if _, _, err := DecodeTIFF(data); err == nil {
		t.Fatal("expected error")
	}
}

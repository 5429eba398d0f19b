package irtiff

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

const (
	tiffStripTarget        = 8192
	compressionNone        = 1
	photometricBlackIsZero = 1
	planarChunky           = 1
	sampleFormatIEEEFP     = 3
	bitsPerSampleFloat     = 32
)

type ifdField struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte
}

func shortField(order binary.ByteOrder, tag uint16, v uint16) ifdField {
	b := make([]byte, 2)
	order.PutUint16(b, v)
	return ifdField{tag: tag, typ: typeShort, count: 1, value: b}
}

func longField(order binary.ByteOrder, tag uint16, vals ...uint32) ifdField {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		order.PutUint32(b[4*i:], v)
	}
	return ifdField{tag: tag, typ: typeLong, count: uint32(len(vals)), value: b}
}

func evenLen(n int) int {
	return n + n&1
}

// ifdSize is the encoded size of a directory including out-of-line values.
func ifdSize(fields []ifdField) int {
	n := 2 + len(fields)*ifdEntrySize + 4
	for _, f := range fields {
		if len(f.value) > 4 {
			n += evenLen(len(f.value))
		}
	}
	return n
}

// encodeIFD serializes a directory located at offset, values larger than four
// bytes are placed right after the entry table.
func encodeIFD(order binary.ByteOrder, fields []ifdField, offset, next uint32) []byte {
	buf := make([]byte, 0, ifdSize(fields))
	putU16 := func(v uint16) { tmp := make([]byte, 2); order.PutUint16(tmp, v); buf = append(buf, tmp...) }
	putU32 := func(v uint32) { tmp := make([]byte, 4); order.PutUint32(tmp, v); buf = append(buf, tmp...) }

	putU16(uint16(len(fields)))
	extra := offset + uint32(2+len(fields)*ifdEntrySize+4)
	var overflow []byte
	for _, f := range fields {
		putU16(f.tag)
		putU16(f.typ)
		putU32(f.count)
		if len(f.value) <= 4 {
			var inline [4]byte
			copy(inline[:], f.value)
			buf = append(buf, inline[:]...)
			continue
		}
		putU32(extra + uint32(len(overflow)))
		overflow = append(overflow, f.value...)
		if len(f.value)&1 == 1 {
			overflow = append(overflow, 0)
		}
	}
	putU32(next)
	return append(buf, overflow...)
}

// EncodeTIFF writes r as a single-channel float32 TIFF.
//
// The GPS entries of b go to a GPS directory referenced from IFD0 and the
// thumbnail to IFD1, both byte-identical to the bundle. Nothing else from the
// source metadata is written. The file uses the bundle byte order so that
// multi-byte GPS values need no conversion, little-endian if unset.
func EncodeTIFF(w io.Writer, r *Raster, b *MetadataBundle) error {
	if r == nil || r.Width <= 0 || r.Height <= 0 || len(r.Pix) != r.Width*r.Height {
		return errors.New("invalid raster")
	}
	if b == nil {
		b = &MetadataBundle{Format: metadataBundleFormat}
	}
	if err := b.Validate(); err != nil {
		return err
	}

	byteOrder := b.ByteOrder
	if byteOrder == "" {
		byteOrder = byteOrderLittle
	}
	order := orderFor(byteOrder)

	rowBytes := 4 * r.Width
	rowsPerStrip := tiffStripTarget / rowBytes
	if rowsPerStrip < 1 {
		rowsPerStrip = 1
	}
	if rowsPerStrip > r.Height {
		rowsPerStrip = r.Height
	}
	numStrips := (r.Height + rowsPerStrip - 1) / rowsPerStrip
	offsets := make([]uint32, numStrips)
	counts := make([]uint32, numStrips)
	pos := uint32(tiffHeaderLen)
	for i := range offsets {
		rows := rowsPerStrip
		if rem := r.Height - i*rowsPerStrip; rem < rows {
			rows = rem
		}
		offsets[i] = pos
		counts[i] = uint32(rows * rowBytes)
		pos += counts[i]
	}
	pixelBytes := pos - tiffHeaderLen

	ifd0 := []ifdField{
		longField(order, tagImageWidth, uint32(r.Width)),
		longField(order, tagImageLength, uint32(r.Height)),
		shortField(order, tagBitsPerSample, bitsPerSampleFloat),
		shortField(order, tagCompression, compressionNone),
		shortField(order, tagPhotometric, photometricBlackIsZero),
		longField(order, tagStripOffsets, offsets...),
		shortField(order, tagSamplesPerPixel, 1),
		longField(order, tagRowsPerStrip, uint32(rowsPerStrip)),
		longField(order, tagStripByteCounts, counts...),
		shortField(order, tagPlanarConfiguration, planarChunky),
		shortField(order, tagSampleFormat, sampleFormatIEEEFP),
	}
	hasGPS := len(b.GPS) > 0
	if hasGPS {
		// Placeholder, patched once the GPS directory offset is known.
		ifd0 = append(ifd0, longField(order, tagGPSIFD, 0))
	}

	gps := make([]ifdField, 0, len(b.GPS))
	for _, e := range b.GPS {
		gps = append(gps, ifdField{tag: e.Tag, typ: e.Type, count: e.Count, value: e.Value})
	}

	ifd0Off := tiffHeaderLen + pixelBytes
	next := ifd0Off + uint32(ifdSize(ifd0))
	var gpsOff, ifd1Off uint32
	if hasGPS {
		gpsOff = next
		next += uint32(ifdSize(gps))
		ifd0[len(ifd0)-1] = longField(order, tagGPSIFD, gpsOff)
	}

	var ifd1 []ifdField
	if len(b.Thumbnail) > 0 {
		ifd1Off = next
		ifd1 = []ifdField{
			longField(order, tagJPEGInterchangeFormat, 0),
			longField(order, tagJPEGInterchangeFormatLength, uint32(len(b.Thumbnail))),
		}
		thumbOff := ifd1Off + uint32(ifdSize(ifd1))
		ifd1[0] = longField(order, tagJPEGInterchangeFormat, thumbOff)
	}

	bw := bufio.NewWriter(w)
	header := make([]byte, tiffHeaderLen)
	copy(header, byteOrder)
	order.PutUint16(header[2:], tiffMagic)
	order.PutUint32(header[4:], ifd0Off)
	if _, err := bw.Write(header); err != nil {
		return err
	}

	px := make([]byte, rowBytes)
	for y := 0; y < r.Height; y++ {
		for x, v := range r.Row(y) {
			order.PutUint32(px[4*x:], math.Float32bits(v))
		}
		if _, err := bw.Write(px); err != nil {
			return err
		}
	}

	if _, err := bw.Write(encodeIFD(order, ifd0, ifd0Off, ifd1Off)); err != nil {
		return err
	}
	if hasGPS {
		if _, err := bw.Write(encodeIFD(order, gps, gpsOff, 0)); err != nil {
			return err
		}
	}
	if len(ifd1) > 0 {
		if _, err := bw.Write(encodeIFD(order, ifd1, ifd1Off, 0)); err != nil {
			return err
		}
		if _, err := bw.Write(b.Thumbnail); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// EncodeTIFFFile writes the raster and metadata to path.
func EncodeTIFFFile(path string, r *Raster, b *MetadataBundle) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	if err := EncodeTIFF(f, r, b); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// DecodeTIFF reads a raster written by EncodeTIFF, together with the GPS
// directory and thumbnail it carries.
func DecodeTIFF(data []byte) (*Raster, *MetadataBundle, error) {
	t, err := parseTIFFHeader(data)
	if err != nil {
		return nil, nil, err
	}
	ifd0, _, err := t.readIFD(t.firstIFD)
	if err != nil {
		return nil, nil, fmt.Errorf("ifd0: %w", err)
	}

	get := func(tag uint16, def uint32) (uint32, error) {
		e, ok := findEntry(ifd0, tag)
		if !ok {
			if def == 0 {
				return 0, fmt.Errorf("tag 0x%04X missing", tag)
			}
			return def, nil
		}
		v, ok := t.uintValue(e)
		if !ok {
			return 0, fmt.Errorf("tag 0x%04X invalid", tag)
		}
		return v, nil
	}

	width, err := get(tagImageWidth, 0)
	if err != nil {
		return nil, nil, err
	}
	height, err := get(tagImageLength, 0)
	if err != nil {
		return nil, nil, err
	}
	for _, want := range []struct {
		tag uint16
		def uint32
		val uint32
	}{
		{tagBitsPerSample, 1, bitsPerSampleFloat},
		{tagSampleFormat, 1, sampleFormatIEEEFP},
		{tagSamplesPerPixel, 1, 1},
		{tagCompression, compressionNone, compressionNone},
	} {
		v, err := get(want.tag, want.def)
		if err != nil {
			return nil, nil, err
		}
		if v != want.val {
			return nil, nil, fmt.Errorf("unsupported tiff: tag 0x%04X is %d, want %d", want.tag, v, want.val)
		}
	}

	offEntry, ok1 := findEntry(ifd0, tagStripOffsets)
	cntEntry, ok2 := findEntry(ifd0, tagStripByteCounts)
	if !ok1 || !ok2 || offEntry.Count != cntEntry.Count {
		return nil, nil, errors.New("tiff strips missing")
	}

	n := int(width) * int(height)
	r := &Raster{Width: int(width), Height: int(height), Pix: make([]float32, 0, n)}
	for i := 0; i < int(offEntry.Count); i++ {
		off, ok1 := uintValue(t.order, offEntry, i)
		cnt, ok2 := uintValue(t.order, cntEntry, i)
		if !ok1 || !ok2 || uint64(off)+uint64(cnt) > uint64(len(data)) || cnt%4 != 0 {
			return nil, nil, fmt.Errorf("tiff strip %d out of bounds", i)
		}
		for p := off; p < off+cnt; p += 4 {
			r.Pix = append(r.Pix, math.Float32frombits(t.order.Uint32(data[p:])))
		}
	}
	if len(r.Pix) != n {
		return nil, nil, fmt.Errorf("tiff holds %d samples, want %d", len(r.Pix), n)
	}

	b, err := BundleFromExif(data)
	if err != nil {
		return nil, nil, err
	}
	return r, b, nil
}

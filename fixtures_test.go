package irtiff

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

const (
	tagMake         = 0x010F
	tagExposureTime = 0x829A
)

var testThumbnail = []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x01, 0x02, 0xFF, 0xD9}

// exifFixture is an EXIF TIFF structure with IFD0, an Exif IFD, a GPS IFD
// and an IFD1 thumbnail.
type exifFixture struct {
	data  []byte
	order binary.ByteOrder
	gps   []ifdField
}

func rationalField(order binary.ByteOrder, tag uint16, vals ...[2]uint32) ifdField {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		order.PutUint32(b[8*i:], v[0])
		order.PutUint32(b[8*i+4:], v[1])
	}
	return ifdField{tag: tag, typ: typeRational, count: uint32(len(vals)), value: b}
}

func asciiField(tag uint16, s string) ifdField {
	v := append([]byte(s), 0)
	return ifdField{tag: tag, typ: typeASCII, count: uint32(len(v)), value: v}
}

func byteField(tag uint16, vals ...byte) ifdField {
	return ifdField{tag: tag, typ: typeByte, count: uint32(len(vals)), value: append([]byte(nil), vals...)}
}

func buildExif(t *testing.T, order binary.ByteOrder) exifFixture {
	t.Helper()

	gps := []ifdField{
		byteField(0x0000, 2, 3, 0, 0),
		asciiField(tagGPSLatitudeRef, "S"),
		rationalField(order, tagGPSLatitude, [2]uint32{33, 1}, [2]uint32{52, 1}, [2]uint32{1800, 100}),
		asciiField(tagGPSLongitudeRef, "E"),
		rationalField(order, tagGPSLongitude, [2]uint32{151, 1}, [2]uint32{12, 1}, [2]uint32{36, 1}),
		byteField(tagGPSAltitudeRef, 0),
		rationalField(order, tagGPSAltitude, [2]uint32{12050, 100}),
	}
	exif := []ifdField{
		rationalField(order, tagExposureTime, [2]uint32{1, 30}),
	}
	ifd0 := []ifdField{
		asciiField(tagMake, "DJI"),
		longField(order, tagExifIFD, 0),
		longField(order, tagGPSIFD, 0),
	}
	ifd1 := []ifdField{
		longField(order, tagJPEGInterchangeFormat, 0),
		longField(order, tagJPEGInterchangeFormatLength, uint32(len(testThumbnail))),
	}

	ifd0Off := uint32(tiffHeaderLen)
	exifOff := ifd0Off + uint32(ifdSize(ifd0))
	gpsOff := exifOff + uint32(ifdSize(exif))
	ifd1Off := gpsOff + uint32(ifdSize(gps))
	thumbOff := ifd1Off + uint32(ifdSize(ifd1))
	ifd0[1] = longField(order, tagExifIFD, exifOff)
	ifd0[2] = longField(order, tagGPSIFD, gpsOff)
	ifd1[0] = longField(order, tagJPEGInterchangeFormat, thumbOff)

	header := make([]byte, tiffHeaderLen)
	if order == binary.BigEndian {
		copy(header, byteOrderBig)
	} else {
		copy(header, byteOrderLittle)
	}
	order.PutUint16(header[2:], tiffMagic)
	order.PutUint32(header[4:], ifd0Off)

	var buf bytes.Buffer
	buf.Write(header)
	buf.Write(encodeIFD(order, ifd0, ifd0Off, ifd1Off))
	buf.Write(encodeIFD(order, exif, exifOff, 0))
	buf.Write(encodeIFD(order, gps, gpsOff, 0))
	buf.Write(encodeIFD(order, ifd1, ifd1Off, 0))
	buf.Write(testThumbnail)

	return exifFixture{data: buf.Bytes(), order: order, gps: gps}
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 5), G: uint8(y * 7), B: 128, A: 255})
		}
	}
	return img
}

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// insertAPP1 places an EXIF APP1 segment right after SOI.
func insertAPP1(t *testing.T, jpg, exif []byte) []byte {
	t.Helper()
	if len(jpg) < 2 || jpg[0] != markerStart || jpg[1] != markerSOI {
		t.Fatalf("not a jpeg")
	}
	payload := append(append([]byte(nil), exifSig...), exif...)
	seg := []byte{markerStart, markerAPP1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	seg = append(seg, payload...)

	out := make([]byte, 0, len(jpg)+len(seg))
	out = append(out, jpg[:2]...)
	out = append(out, seg...)
	return append(out, jpg[2:]...)
}

func encodeTestPNG(t *testing.T, w, h int, exif []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	data := buf.Bytes()
	if exif == nil {
		return data
	}

	// Signature and IHDR chunk, eXIf goes after IHDR.
	ihdrEnd := len(pngSig) + 8 + 13 + 4
	chunk := make([]byte, 8, 12+len(exif))
	binary.BigEndian.PutUint32(chunk[:4], uint32(len(exif)))
	copy(chunk[4:8], pngChunkEXIF)
	chunk = append(chunk, exif...)
	crc := make([]byte, 4)
	binary.BigEndian.PutUint32(crc, crc32.ChecksumIEEE(chunk[4:]))
	chunk = append(chunk, crc...)

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk...)
	return append(out, data[ihdrEnd:]...)
}

func writeFile(t *testing.T, p string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

// fakeSample is the raw value the fake extractor stores for pixel i.
func fakeSample(i int) int16 {
	return int16(200 + i%300 - 50)
}

// fakeExtractor writes a raw buffer sized after the source image, like the
// vendor tool does.
func fakeExtractor() ExtractorFunc {
	return func(_ context.Context, sourcePath, rawPath string, params ExtractionParameters) (string, error) {
		if err := params.Validate(); err != nil {
			return "", err
		}
		w, h, err := imageSize(sourcePath)
		if err != nil {
			return "", err
		}
		buf := make([]byte, 2*w*h)
		for i := 0; i < w*h; i++ {
			binary.LittleEndian.PutUint16(buf[2*i:], uint16(fakeSample(i)))
		}
		if err := os.WriteFile(rawPath, buf, 0o600); err != nil {
			return "", err
		}
		return "Success", nil
	}
}

func readFile(t *testing.T, p string) []byte {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return data
}

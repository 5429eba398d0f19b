package irtiff

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MetadataBundle is the subset of source metadata carried into the output
// raster: the GPS directory and the embedded thumbnail. Nothing else from
// the source EXIF is kept.
// Byte fields are base64-encoded in JSON.
type MetadataBundle struct {
	Format string `json:"format"`
	// ByteOrder is "II" or "MM", the byte order of the GPS entry values.
	ByteOrder string     `json:"byte_order,omitempty"`
	GPS       []IFDEntry `json:"gps,omitempty"`
	Thumbnail []byte     `json:"thumbnail,omitempty"`
}

// Empty reports whether the bundle carries no metadata at all.
func (b *MetadataBundle) Empty() bool {
	return b == nil || (len(b.GPS) == 0 && len(b.Thumbnail) == 0)
}

// Validate checks the bundle can be written to a raster.
func (b *MetadataBundle) Validate() error {
	if b == nil {
		return errors.New("metadata bundle is nil")
	}
	if b.Format != metadataBundleFormat {
		return fmt.Errorf("unsupported metadata bundle format %q", b.Format)
	}
	if len(b.GPS) > 0 && b.ByteOrder != byteOrderLittle && b.ByteOrder != byteOrderBig {
		return fmt.Errorf("metadata bundle byte order %q invalid", b.ByteOrder)
	}
	for _, e := range b.GPS {
		if size := typeSize(e.Type); size == 0 || len(e.Value) != size*int(e.Count) {
			return fmt.Errorf("gps entry 0x%04X has %d value bytes for %d items of type %d",
				e.Tag, len(e.Value), e.Count, e.Type)
		}
	}
	return nil
}

// Transplant reads the source image at path and returns its GPS directory and
// thumbnail. A source without EXIF yields an empty bundle.
func Transplant(path string) (*MetadataBundle, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	exif, err := readExif(f)
	if err != nil {
		return nil, fmt.Errorf("read exif: %w", err)
	}
	if exif == nil {
		return &MetadataBundle{Format: metadataBundleFormat}, nil
	}
	return BundleFromExif(exif)
}

// BundleFromExif builds a bundle from an EXIF TIFF structure, i.e. the APP1
// payload after the "Exif\0\0" signature.
func BundleFromExif(exif []byte) (*MetadataBundle, error) {
	t, err := parseTIFFHeader(exif)
	if err != nil {
		return nil, err
	}
	b := &MetadataBundle{Format: metadataBundleFormat, ByteOrder: t.byteOrder}

	ifd0, next, err := t.readIFD(t.firstIFD)
	if err != nil {
		return nil, fmt.Errorf("ifd0: %w", err)
	}
	if e, ok := findEntry(ifd0, tagGPSIFD); ok {
		off, ok := t.uintValue(e)
		if !ok {
			return nil, errors.New("gps pointer invalid")
		}
		gps, _, err := t.readIFD(off)
		if err != nil {
			return nil, fmt.Errorf("gps ifd: %w", err)
		}
		b.GPS = gps
	}

	if next != 0 {
		ifd1, _, err := t.readIFD(next)
		if err != nil {
			return nil, fmt.Errorf("ifd1: %w", err)
		}
		thumb, err := thumbnailBytes(t, ifd1)
		if err != nil {
			return nil, err
		}
		b.Thumbnail = thumb
	}
	return b, nil
}

func thumbnailBytes(t *tiffStructure, ifd1 []IFDEntry) ([]byte, error) {
	offEntry, ok1 := findEntry(ifd1, tagJPEGInterchangeFormat)
	lenEntry, ok2 := findEntry(ifd1, tagJPEGInterchangeFormatLength)
	if !ok1 || !ok2 {
		return nil, nil
	}
	off, ok1 := t.uintValue(offEntry)
	n, ok2 := t.uintValue(lenEntry)
	if !ok1 || !ok2 || uint64(off)+uint64(n) > uint64(len(t.data)) {
		return nil, errors.New("thumbnail out of bounds")
	}
	return append([]byte(nil), t.data[off:off+n]...), nil
}

// GPSCoordinates holds decoded GPS position fields.
type GPSCoordinates struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Altitude    float64 `json:"altitude"`
	HasAltitude bool    `json:"has_altitude"`
}

const (
	tagGPSLatitudeRef  = 0x0001
	tagGPSLatitude     = 0x0002
	tagGPSLongitudeRef = 0x0003
	tagGPSLongitude    = 0x0004
	tagGPSAltitudeRef  = 0x0005
	tagGPSAltitude     = 0x0006
)

// Coordinates decodes latitude and longitude in decimal degrees and the
// altitude in meters from the GPS entries. ok is false when the bundle has no
// usable position.
func (b *MetadataBundle) Coordinates() (c GPSCoordinates, ok bool) {
	if b == nil || len(b.GPS) == 0 {
		return c, false
	}
	order := orderFor(b.ByteOrder)
	rational := func(e IFDEntry, i int) float64 {
		v := e.Value[8*i:]
		num, den := order.Uint32(v[0:4]), order.Uint32(v[4:8])
		if den == 0 {
			return 0
		}
		return float64(num) / float64(den)
	}
	dms := func(tag uint16) (float64, bool) {
		e, ok := findEntry(b.GPS, tag)
		if !ok || e.Type != typeRational || e.Count < 3 || len(e.Value) < 24 {
			return 0, false
		}
		return rational(e, 0) + rational(e, 1)/60 + rational(e, 2)/3600, true
	}
	ref := func(tag uint16) byte {
		e, ok := findEntry(b.GPS, tag)
		if !ok || len(e.Value) == 0 {
			return 0
		}
		return e.Value[0]
	}

	lat, ok1 := dms(tagGPSLatitude)
	lon, ok2 := dms(tagGPSLongitude)
	if !ok1 || !ok2 {
		return c, false
	}
	if ref(tagGPSLatitudeRef) == 'S' {
		lat = -lat
	}
	if ref(tagGPSLongitudeRef) == 'W' {
		lon = -lon
	}
	c.Latitude, c.Longitude = lat, lon

	if e, ok := findEntry(b.GPS, tagGPSAltitude); ok && e.Type == typeRational && len(e.Value) >= 8 {
		c.Altitude = rational(e, 0)
		c.HasAltitude = true
		if ref(tagGPSAltitudeRef) == 1 {
			c.Altitude = -c.Altitude
		}
	}
	return c, true
}

// Equal reports whether two bundles carry identical metadata.
func (b *MetadataBundle) Equal(o *MetadataBundle) bool {
	if b.Empty() || o.Empty() {
		return b.Empty() && o.Empty()
	}
	if len(b.GPS) > 0 && b.ByteOrder != o.ByteOrder {
		return false
	}
	if len(b.GPS) != len(o.GPS) || !bytes.Equal(b.Thumbnail, o.Thumbnail) {
		return false
	}
	for i := range b.GPS {
		x, y := b.GPS[i], o.GPS[i]
		if x.Tag != y.Tag || x.Type != y.Type || x.Count != y.Count || !bytes.Equal(x.Value, y.Value) {
			return false
		}
	}
	return true
}

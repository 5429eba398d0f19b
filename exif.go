package irtiff

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	tiffMagic     = 0x002A
	tiffHeaderLen = 8
	ifdEntrySize  = 12
)

// TIFF field types.
const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSByte     = 6
	typeUndefined = 7
	typeSShort    = 8
	typeSLong     = 9
	typeSRational = 10
	typeFloat     = 11
	typeDouble    = 12
)

// Tags used while reading and writing IFDs.
const (
	tagImageWidth                  = 0x0100
	tagImageLength                 = 0x0101
	tagBitsPerSample               = 0x0102
	tagCompression                 = 0x0103
	tagPhotometric                 = 0x0106
	tagStripOffsets                = 0x0111
	tagSamplesPerPixel             = 0x0115
	tagRowsPerStrip                = 0x0116
	tagStripByteCounts             = 0x0117
	tagPlanarConfiguration         = 0x011C
	tagSampleFormat                = 0x0153
	tagJPEGInterchangeFormat       = 0x0201
	tagJPEGInterchangeFormatLength = 0x0202
	tagExifIFD                     = 0x8769
	tagGPSIFD                      = 0x8825
	tagInteropIFD                  = 0xA005
)

const (
	byteOrderLittle = "II"
	byteOrderBig    = "MM"
)

// IFDEntry is a raw TIFF directory entry. Value holds the entry's value
// bytes in the byte order of the structure it was read from, regardless of
// whether they were stored inline or at an offset.
type IFDEntry struct {
	Tag   uint16 `json:"tag"`
	Type  uint16 `json:"type"`
	Count uint32 `json:"count"`
	Value []byte `json:"value"`
}

func typeSize(typ uint16) int {
	switch typ {
	case typeByte, typeASCII, typeSByte, typeUndefined:
		return 1
	case typeShort, typeSShort:
		return 2
	case typeLong, typeSLong, typeFloat:
		return 4
	case typeRational, typeSRational, typeDouble:
		return 8
	default:
		return 0
	}
}

// tiffStructure is a parsed TIFF header over a buffer, offsets are relative to
// the start of data.
type tiffStructure struct {
	data      []byte
	order     binary.ByteOrder
	firstIFD  uint32
	byteOrder string
}

func parseTIFFHeader(data []byte) (*tiffStructure, error) {
	if len(data) < tiffHeaderLen {
		return nil, errors.New("tiff header too small")
	}
	t := &tiffStructure{data: data}
	switch {
	case data[0] == 'I' && data[1] == 'I':
		t.order = binary.LittleEndian
		t.byteOrder = byteOrderLittle
	case data[0] == 'M' && data[1] == 'M':
		t.order = binary.BigEndian
		t.byteOrder = byteOrderBig
	default:
		return nil, errors.New("tiff byte order invalid")
	}
	if t.order.Uint16(data[2:4]) != tiffMagic {
		return nil, errors.New("tiff magic invalid")
	}
	t.firstIFD = t.order.Uint32(data[4:8])
	return t, nil
}

// readIFD returns the entries of the directory at offset and the offset of
// the next directory, zero if none.
func (t *tiffStructure) readIFD(offset uint32) ([]IFDEntry, uint32, error) {
	data := t.data
	pos := int(offset)
	if offset == 0 || pos+2 > len(data) {
		return nil, 0, fmt.Errorf("ifd offset %d invalid", offset)
	}
	count := int(t.order.Uint16(data[pos : pos+2]))
	pos += 2
	if pos+count*ifdEntrySize+4 > len(data) {
		return nil, 0, errors.New("ifd truncated")
	}
	entries := make([]IFDEntry, 0, count)
	for i := 0; i < count; i++ {
		e := data[pos : pos+ifdEntrySize]
		pos += ifdEntrySize
		entry := IFDEntry{
			Tag:   t.order.Uint16(e[0:2]),
			Type:  t.order.Uint16(e[2:4]),
			Count: t.order.Uint32(e[4:8]),
		}
		size := typeSize(entry.Type)
		if size == 0 {
			// Unknown types cannot be sized, skip them as TIFF readers must.
			continue
		}
		n := uint64(size) * uint64(entry.Count)
		if n <= 4 {
			entry.Value = append([]byte(nil), e[8:8+n]...)
		} else {
			off := uint64(t.order.Uint32(e[8:12]))
			if off+n > uint64(len(data)) {
				return nil, 0, fmt.Errorf("ifd entry 0x%04X value out of bounds", entry.Tag)
			}
			entry.Value = append([]byte(nil), data[off:off+n]...)
		}
		entries = append(entries, entry)
	}
	next := t.order.Uint32(data[pos : pos+4])
	return entries, next, nil
}

// uintValue decodes the first value of a SHORT or LONG entry.
func (t *tiffStructure) uintValue(e IFDEntry) (uint32, bool) {
	return uintValue(t.order, e, 0)
}

func uintValue(order binary.ByteOrder, e IFDEntry, i int) (uint32, bool) {
	switch e.Type {
	case typeShort:
		if len(e.Value) < 2*(i+1) {
			return 0, false
		}
		return uint32(order.Uint16(e.Value[2*i:])), true
	case typeLong:
		if len(e.Value) < 4*(i+1) {
			return 0, false
		}
		return order.Uint32(e.Value[4*i:]), true
	default:
		return 0, false
	}
}

func findEntry(entries []IFDEntry, tag uint16) (IFDEntry, bool) {
	for _, e := range entries {
		if e.Tag == tag {
			return e, true
		}
	}
	return IFDEntry{}, false
}

func orderFor(byteOrder string) binary.ByteOrder {
	if byteOrder == byteOrderBig {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

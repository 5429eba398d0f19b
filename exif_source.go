package irtiff

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	markerStart = 0xFF
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP1  = 0xE1
)

var (
	exifSig = []byte{'E', 'x', 'i', 'f', 0, 0}
	pngSig  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
)

const (
	pngChunkEXIF = "eXIf"
	pngChunkIEND = "IEND"
	pngChunkMax  = 1 << 28
)

// readExif returns the TIFF structure of the EXIF block of a JPEG or PNG
// stream, or nil if the image carries none. It stops reading as soon as the
// block is found or image data starts.
func readExif(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(pngSig))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	switch {
	case len(head) >= 2 && head[0] == markerStart && head[1] == markerSOI:
		return readJPEGExif(br)
	case bytes.Equal(head, pngSig):
		return readPNGExif(br)
	default:
		return nil, errors.New("unsupported image container")
	}
}

func readJPEGExif(br *bufio.Reader) ([]byte, error) {
	if _, err := br.Discard(2); err != nil {
		return nil, err
	}
	for {
		marker, err := readMarker(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		switch {
		case marker == markerSOS || marker == markerEOI:
			return nil, nil
		case marker >= 0xD0 && marker <= 0xD7, marker == 0x01:
			continue
		case marker == markerAPP1:
			payload, err := readSegment(br)
			if err != nil {
				return nil, err
			}
			if bytes.HasPrefix(payload, exifSig) {
				return payload[len(exifSig):], nil
			}
		default:
			if err := discardSegment(br); err != nil {
				return nil, err
			}
		}
	}
}

func readMarker(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != markerStart {
			continue
		}
		for {
			m, err := br.ReadByte()
			if err != nil {
				return 0, err
			}
			if m != markerStart {
				return m, nil
			}
		}
	}
}

func readSegment(br *bufio.Reader) ([]byte, error) {
	length, err := readU16(br)
	if err != nil {
		return nil, err
	}
	if length < 2 {
		return nil, errors.New("invalid segment length")
	}
	payload := make([]byte, int(length-2))
	if _, err := io.ReadFull(br, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func discardSegment(br *bufio.Reader) error {
	length, err := readU16(br)
	if err != nil {
		return err
	}
	if length < 2 {
		return errors.New("invalid segment length")
	}
	_, err = br.Discard(int(length - 2))
	return err
}

func readU16(br *bufio.Reader) (uint16, error) {
	hi, err := br.ReadByte()
	if err != nil {
		return 0, err
	}
	lo, err := br.ReadByte()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

func readPNGExif(br *bufio.Reader) ([]byte, error) {
	if _, err := br.Discard(len(pngSig)); err != nil {
		return nil, err
	}
	var hdr [8]byte
	for {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		n := binary.BigEndian.Uint32(hdr[:4])
		typ := string(hdr[4:8])
		if n > pngChunkMax {
			return nil, fmt.Errorf("png chunk %s too large: %d", typ, n)
		}
		switch typ {
		case pngChunkEXIF:
			payload := make([]byte, n)
			if _, err := io.ReadFull(br, payload); err != nil {
				return nil, err
			}
			// Some writers keep the JPEG APP1 prefix.
			return bytes.TrimPrefix(payload, exifSig), nil
		case pngChunkIEND:
			return nil, nil
		}
		// Chunk data and CRC.
		if _, err := br.Discard(int(n) + 4); err != nil {
			return nil, err
		}
	}
}

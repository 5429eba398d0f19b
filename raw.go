package irtiff

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// DecodeRaw converts a little-endian int16 buffer of tenths of a degree into
// a Raster with height rows and width columns.
//
// The buffer must hold exactly width*height samples, otherwise ErrShapeMismatch
// is returned.
func DecodeRaw(data []byte, width, height int) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrShapeMismatch, width, height)
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of int16 samples", ErrShapeMismatch, len(data))
	}
	n := len(data) / 2
	if n != width*height {
		return nil, fmt.Errorf("%w: %d samples, want %dx%d=%d", ErrShapeMismatch, n, width, height, width*height)
	}

	out := &Raster{
		Width:  width,
		Height: height,
		Pix:    make([]float32, n),
	}
	for i := range out.Pix {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		out.Pix[i] = float32(v) / rawScale
	}
	return out, nil
}

// DecodeRawFile reads a raw buffer from path and decodes it with DecodeRaw.
func DecodeRawFile(path string, width, height int) (*Raster, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read raw buffer: %w", err)
	}
	return DecodeRaw(data, width, height)
}

// EncodeRaw is the inverse of DecodeRaw, values are rounded to the nearest
// tenth of a degree and clamped to the int16 range.
func EncodeRaw(r *Raster) []byte {
	out := make([]byte, 2*len(r.Pix))
	for i, v := range r.Pix {
		f := float64(v) * rawScale
		if f >= 0 {
			f += 0.5
		} else {
			f -= 0.5
		}
		switch {
		case f > 32767:
			f = 32767
		case f < -32768:
			f = -32768
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(f)))
	}
	return out
}

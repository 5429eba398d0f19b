package irtiff

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
	"golang.org/x/image/tiff"
)

// RenderQuicklook maps the raster temperature range linearly onto 8-bit gray,
// coldest black and hottest white, and fits the result into a maxSize square
// keeping the aspect ratio. Rasters already within maxSize are not resized.
func RenderQuicklook(r *Raster, maxSize uint) image.Image {
	img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
	st := r.Stats()
	span := st.Max - st.Min
	for y := 0; y < r.Height; y++ {
		row := r.Row(y)
		line := img.Pix[y*img.Stride : y*img.Stride+r.Width]
		for x, v := range row {
			if span <= 0 {
				line[x] = 0
				continue
			}
			line[x] = uint8((v-st.Min)/span*255 + 0.5)
		}
	}
	if maxSize == 0 {
		maxSize = defaultQuicklookMaxSize
	}
	return resize.Thumbnail(maxSize, maxSize, img, resize.Lanczos3)
}

// EncodeQuicklook writes img as PNG or deflate-compressed TIFF.
func EncodeQuicklook(w io.Writer, img image.Image, format string) error {
	switch format {
	case "", quicklookFormatPNG:
		return png.Encode(w, img)
	case quicklookFormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return checkQuicklookFormat(format)
	}
}

func checkQuicklookFormat(format string) error {
	switch format {
	case "", quicklookFormatPNG, quicklookFormatTIFF:
		return nil
	default:
		return fmt.Errorf("%w: unsupported quicklook format %q", ErrConfiguration, format)
	}
}

func quicklookExt(format string) string {
	if format == quicklookFormatTIFF {
		return "." + quicklookFormatTIFF
	}
	return "." + quicklookFormatPNG
}

func writeQuicklookFile(path string, r *Raster, maxSize uint, format string) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	if err := EncodeQuicklook(f, RenderQuicklook(r, maxSize), format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

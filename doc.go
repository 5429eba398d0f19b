// Package irtiff converts radiometric infrared JPEG images into single-channel
// float32 TIFF rasters holding per-pixel temperature in degrees Celsius.
//
// Temperature samples come from an external extractor (the DJI Thermal SDK
// dji_irp utility) as a flat int16 buffer in tenths of a degree. The package
// reshapes and rescales that buffer, carries over the GPS block and embedded
// thumbnail of the source EXIF, and writes the result as a baseline TIFF.
// Convert runs the whole pipeline over a directory tree.
package irtiff

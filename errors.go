package irtiff

import "errors"

var (
	// ErrConfiguration is returned for invalid batch configuration, such as an
	// unknown extraction parameter. It is always fatal and raised before any
	// file is touched.
	ErrConfiguration = errors.New("configuration error")
	// ErrNoInputFiles is returned when discovery finds no eligible image.
	ErrNoInputFiles = errors.New("no input files")
	// ErrExtraction is returned when the extractor did not produce a usable
	// raw buffer for a file.
	ErrExtraction = errors.New("extraction failed")
	// ErrShapeMismatch is returned when a raw buffer does not hold exactly
	// width*height samples.
	ErrShapeMismatch = errors.New("raw buffer shape mismatch")
	// ErrDirectoryIO is returned when staging or cleanup of a working
	// directory fails.
	ErrDirectoryIO = errors.New("directory io error")
	// ErrInvalidFileName is returned for source names the extractor cannot
	// be invoked with.
	ErrInvalidFileName = errors.New("invalid file name")
)

package irtiff

import "time"

const (
	// rawScale converts fixed-point raw samples into degrees Celsius.
	rawScale = 10.0

	rawExt    = ".raw"
	outputExt = ".tiff"

	defaultTempDirName       = "temp_dir"
	defaultExtractTimeout    = 2 * time.Minute
	defaultQuicklookMaxSize  = 256
	measureAction            = "measure"
	metadataBundleFormat     = "irtiff-meta-1"
	quicklookFormatPNG       = "png"
	quicklookFormatTIFF      = "tiff"
	extractorBinaryWindows   = "utility/bin/windows/release_x64/dji_irp.exe"
	extractorBinaryLinux     = "utility/bin/linux/release_x64/dji_irp"
	libraryPathEnvLinux      = "LD_LIBRARY_PATH"
	maxExtractorOutputLogLen = 512
)

// eligibleExt lists lower-cased source extensions picked up by Discover.
var eligibleExt = map[string]bool{
	".jpg": true,
	".png": true,
}

package irtiff

import (
	"fmt"
	"math"
)

// Raster stores a single-channel temperature image in degrees Celsius.
// Pixels are row-major: Pix[y*Width+x].
type Raster struct {
	Width  int
	Height int
	Pix    []float32
}

// At returns the temperature at column x, row y.
func (r *Raster) At(x, y int) float32 {
	return r.Pix[y*r.Width+x]
}

// Row returns row y as a sub-slice of Pix.
func (r *Raster) Row(y int) []float32 {
	return r.Pix[y*r.Width : (y+1)*r.Width]
}

// RasterStats summarizes raster values.
type RasterStats struct {
	Min  float32 `json:"min"`
	Max  float32 `json:"max"`
	Mean float64 `json:"mean"`
}

// Stats computes min, max and mean over all pixels.
func (r *Raster) Stats() RasterStats {
	if len(r.Pix) == 0 {
		return RasterStats{}
	}
	s := RasterStats{Min: float32(math.Inf(1)), Max: float32(math.Inf(-1))}
	var sum float64
	for _, v := range r.Pix {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += float64(v)
	}
	s.Mean = sum / float64(len(r.Pix))
	return s
}

// ConversionJob describes the paths involved in converting one source image.
type ConversionJob struct {
	Index      int
	Source     string
	Stem       string
	RawPath    string
	OutputPath string
}

// Stage is a state of the batch pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageStaging
	StageDiscovering
	StageConverting
	StageCleanup
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageStaging:
		return "staging"
	case StageDiscovering:
		return "discovering"
	case StageConverting:
		return "converting"
	case StageCleanup:
		return "cleanup"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// FileFailure records a source file that could not be converted.
type FileFailure struct {
	Source string
	Err    error
}

func (f FileFailure) Error() string {
	return f.Source + ": " + f.Err.Error()
}

func (f FileFailure) Unwrap() error {
	return f.Err
}

// BatchResult summarizes a Convert run.
type BatchResult struct {
	RunID      string
	Stage      Stage
	Discovered int
	Converted  int
	Outputs    []string
	Failures   []FileFailure
}

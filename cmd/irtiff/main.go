package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vearutop/irtiff"
	"github.com/vearutop/irtiff/internal/objstore"
)

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "notes":
		printNotes(os.Stdout, os.Getenv("LANG"))
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: irtiff <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  convert -in input_dir -out out_dir [-temp temp_dir] [-sdk dji_thermal_sdk] [-extractor dji_irp]")
	fmt.Fprintln(os.Stderr, "          [-param distance=10 -param humidity=70 -param emissivity=0.95 -param reflection=40]")
	fmt.Fprintln(os.Stderr, "          [-timeout 2m] [-fail-fast] [-quicklook dir] [-quicklook-format png|tiff] [-quicklook-size 256]")
	fmt.Fprintln(os.Stderr, "          [-env .env]")
	fmt.Fprintln(os.Stderr, "  inspect -in raster.tiff")
	fmt.Fprintln(os.Stderr, "  notes")
	fmt.Fprintln(os.Stderr, "WARNING: convert deletes everything inside the output and temp directories before it starts.")
}

type paramFlag struct {
	params irtiff.ExtractionParameters
}

func (p *paramFlag) String() string {
	if p == nil || len(p.params) == 0 {
		return ""
	}
	return strings.Join(p.params.Args(), " ")
}

func (p *paramFlag) Set(s string) error {
	return p.params.ParseParameter(s)
}

func runConvert(args []string) error {
	// Environment has to be loaded before flag defaults are computed.
	if err := preloadEnv(args); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.String("env", "", "load environment defaults from file")
	inDir := fs.String("in", "input_dir", "input directory, scanned recursively")
	outDir := fs.String("out", "out_dir", "output directory, reset before the run")
	tempDir := fs.String("temp", cfg.TempDir, "temporary directory, reset before and removed after the run")
	sdkDir := fs.String("sdk", cfg.SDKDir, "DJI Thermal SDK directory")
	extractor := fs.String("extractor", cfg.Extractor, "extractor executable, overrides -sdk")
	timeout := fs.Duration("timeout", cfg.Timeout, "timeout of a single extraction")
	failFast := fs.Bool("fail-fast", false, "abort on the first failed file")
	quicklook := fs.String("quicklook", "", "write 8-bit previews to this directory, reset before the run")
	quicklookFormat := fs.String("quicklook-format", "png", "preview format: png or tiff")
	quicklookSize := fs.Uint("quicklook-size", 256, "maximum preview width and height")
	params := &paramFlag{params: irtiff.ExtractionParameters{}}
	fs.Var(params, "param", "extraction parameter key=value, repeatable (distance, humidity, emissivity, reflection)")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	logger := newLogger(cfg.LogLevel)

	ex := irtiff.NewExecExtractor(*sdkDir)
	if *extractor != "" {
		ex.Path = *extractor
	}
	ex.Timeout = *timeout

	var uploader irtiff.Uploader
	if cfg.S3.Endpoint != "" {
		m, err := objstore.New(cfg.S3)
		if err != nil {
			return err
		}
		uploader = m
		logger.Info().Str("endpoint", cfg.S3.Endpoint).Str("bucket", m.Bucket()).Msg("uploading rasters")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	res, err := irtiff.Convert(ctx, *inDir, *outDir, ex, func(o *irtiff.Options) {
		o.TempDir = *tempDir
		o.Params = params.params
		o.FailFast = *failFast
		o.QuicklookDir = *quicklook
		o.QuicklookFormat = *quicklookFormat
		o.QuicklookMaxSize = *quicklookSize
		o.Uploader = uploader
		o.UploadPrefix = cfg.S3Prefix
		o.Logger = logger
	})
	if err != nil {
		return err
	}

	logger.Info().
		Int("discovered", res.Discovered).
		Int("converted", res.Converted).
		Dur("elapsed", time.Since(start)).
		Msgf("converted %d of %d raw files to tiff files in %s", res.Converted, res.Discovered, *outDir)
	if len(res.Failures) > 0 {
		for _, f := range res.Failures {
			logger.Error().Str("source", f.Source).Err(f.Err).Msg("not converted")
		}
		return fmt.Errorf("%d of %d files failed", len(res.Failures), res.Discovered)
	}
	return nil
}

type inspectResult struct {
	Path      string                 `json:"path"`
	Width     int                    `json:"width"`
	Height    int                    `json:"height"`
	Stats     irtiff.RasterStats     `json:"stats"`
	GPS       *irtiff.GPSCoordinates `json:"gps,omitempty"`
	GPSTags   int                    `json:"gps_tags"`
	Thumbnail int                    `json:"thumbnail_bytes"`
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	inPath := fs.String("in", "", "radiometric TIFF")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *inPath == "" {
		return fmt.Errorf("%w: missing -in", errUsage)
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	r, b, err := irtiff.DecodeTIFF(data)
	if err != nil {
		return err
	}
	out := inspectResult{
		Path:      *inPath,
		Width:     r.Width,
		Height:    r.Height,
		Stats:     r.Stats(),
		GPSTags:   len(b.GPS),
		Thumbnail: len(b.Thumbnail),
	}
	if c, ok := b.Coordinates(); ok {
		out.GPS = &c
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	os.Exit(1)
}

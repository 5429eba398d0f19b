package irtiff

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder.
	_ "image/png"  // Register PNG decoder.
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options controls a Convert run.
type Options struct {
	// TempDir holds raw buffers during the run. It is reset before and removed
	// after the batch. Default is "temp_dir" next to the output directory.
	TempDir string
	// Params are passed to the extractor for every file.
	Params ExtractionParameters
	// FailFast aborts the batch on the first failed file instead of recording
	// the failure and continuing with the next one.
	FailFast bool

	// QuicklookDir enables 8-bit previews written to this directory. It is
	// reset like the output directory.
	QuicklookDir     string
	QuicklookFormat  string
	QuicklookMaxSize uint

	// Uploader, if set, receives every written raster under
	// UploadPrefix/<name>.tiff.
	Uploader     Uploader
	UploadPrefix string

	Logger zerolog.Logger

	// OnStage is called on every state change.
	OnStage func(s Stage)
	// OnProgress is called after each attempted file.
	OnProgress func(done, total int, job ConversionJob)
}

// Discover walks dir recursively and returns files with an eligible image
// extension (.jpg or .png in any case), in lexical order.
func Discover(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if eligibleExt[strings.ToLower(filepath.Ext(p))] {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// NewJob derives the raw buffer and output paths for source.
//
// The derived name is the base name up to its first dot, so "a.b.jpg" maps to
// "a.raw" and "a.tiff".
func NewJob(index int, source, tempDir, outputDir string) ConversionJob {
	stem := stemOf(source)
	return ConversionJob{
		Index:      index,
		Source:     source,
		Stem:       stem,
		RawPath:    filepath.Join(tempDir, stem+rawExt),
		OutputPath: filepath.Join(outputDir, stem+outputExt),
	}
}

func stemOf(p string) string {
	base := filepath.Base(p)
	if i := strings.Index(base, "."); i >= 0 {
		return base[:i]
	}
	return base
}

func validateFileName(p string) error {
	for _, r := range filepath.Base(p) {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains control characters", ErrInvalidFileName, filepath.Base(p))
		}
	}
	return nil
}

type batch struct {
	ctx       context.Context
	opt       Options
	ex        Extractor
	log       zerolog.Logger
	res       *BatchResult
	outputDir string
	seen      map[string]string
}

// Convert runs the conversion pipeline for every eligible image under inputDir
// and writes one TIFF per image to outputDir.
//
// The temporary and output directories are reset first, so their previous
// content is lost. An empty input tree fails with ErrNoInputFiles, leaving the
// freshly reset directories in place. Per-file failures are collected in
// BatchResult.Failures unless FailFast is set. The temporary directory is
// removed once every file was attempted.
func Convert(ctx context.Context, inputDir, outputDir string, ex Extractor, opts ...func(o *Options)) (*BatchResult, error) {
	var opt Options
	opt.Logger = zerolog.Nop()
	for _, applyOpt := range opts {
		applyOpt(&opt)
	}
	if opt.TempDir == "" {
		opt.TempDir = filepath.Join(filepath.Dir(filepath.Clean(outputDir)), defaultTempDirName)
	}
	if opt.QuicklookMaxSize == 0 {
		opt.QuicklookMaxSize = defaultQuicklookMaxSize
	}

	res := &BatchResult{RunID: uuid.NewString()}
	b := &batch{
		ctx:       ctx,
		opt:       opt,
		ex:        ex,
		log:       opt.Logger.With().Str("run_id", res.RunID).Logger(),
		res:       res,
		outputDir: outputDir,
		seen:      make(map[string]string),
	}

	if err := b.configure(inputDir); err != nil {
		b.setStage(StageFailed)
		return res, err
	}

	b.setStage(StageStaging)
	if err := b.stage(); err != nil {
		return res, b.fail(StageStaging, err)
	}

	b.setStage(StageDiscovering)
	files, err := Discover(inputDir)
	if err != nil {
		return res, b.fail(StageDiscovering, fmt.Errorf("%w: walk %s: %w", ErrDirectoryIO, inputDir, err))
	}
	res.Discovered = len(files)
	b.log.Info().Int("files", len(files)).Str("input_dir", inputDir).Msg("discovered input files")
	if len(files) == 0 {
		return res, b.fail(StageDiscovering, fmt.Errorf("%w in %s", ErrNoInputFiles, inputDir))
	}

	b.setStage(StageConverting)
	convErr := b.convertAll(files)

	b.setStage(StageCleanup)
	if err := removeDirectory(opt.TempDir); err != nil {
		return res, b.fail(StageCleanup, errors.Join(convErr, err))
	}
	b.log.Debug().Str("temp_dir", opt.TempDir).Msg("removed temp dir")
	if convErr != nil {
		return res, b.fail(StageConverting, convErr)
	}

	b.setStage(StageDone)
	b.log.Info().
		Int("discovered", res.Discovered).
		Int("converted", res.Converted).
		Int("failed", len(res.Failures)).
		Str("output_dir", outputDir).
		Msg("batch finished")
	return res, nil
}

func (b *batch) setStage(s Stage) {
	b.res.Stage = s
	b.log.Debug().Stringer("stage", s).Msg("stage")
	if b.opt.OnStage != nil {
		b.opt.OnStage(s)
	}
}

func (b *batch) fail(at Stage, err error) error {
	b.setStage(StageFailed)
	b.log.Error().Err(err).Stringer("stage", at).Msg("batch failed")
	return fmt.Errorf("%s: %w", at, err)
}

// configure checks everything that can be rejected before touching the disk.
func (b *batch) configure(inputDir string) error {
	if b.ex == nil {
		return fmt.Errorf("%w: extractor is nil", ErrConfiguration)
	}
	if err := b.opt.Params.Validate(); err != nil {
		return err
	}
	if keys := b.opt.Params.OutOfRange(); len(keys) > 0 {
		b.log.Warn().Strs("params", keys).Msg("extraction parameters outside documented range")
	}
	if err := checkQuicklookFormat(b.opt.QuicklookFormat); err != nil {
		return err
	}

	fi, err := os.Stat(inputDir)
	if err != nil {
		return fmt.Errorf("%w: input dir: %w", ErrConfiguration, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: input %s is not a directory", ErrConfiguration, inputDir)
	}

	for name, dir := range map[string]string{
		"output dir":    b.outputDir,
		"temp dir":      b.opt.TempDir,
		"quicklook dir": b.opt.QuicklookDir,
	} {
		if dir == "" {
			continue
		}
		overlap, err := contains(dir, inputDir)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConfiguration, name, err)
		}
		if overlap {
			return fmt.Errorf("%w: %s %s contains input dir %s and would be wiped", ErrConfiguration, name, dir, inputDir)
		}
	}

	// Working directories are reset independently, none may hold another.
	work := [][2]string{
		{b.opt.TempDir, b.outputDir},
		{b.opt.QuicklookDir, b.outputDir},
		{b.opt.QuicklookDir, b.opt.TempDir},
	}
	for _, pair := range work {
		if pair[0] == "" || pair[1] == "" {
			continue
		}
		a, err := contains(pair[0], pair[1])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		c, err := contains(pair[1], pair[0])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		if a || c {
			return fmt.Errorf("%w: working directories %s and %s overlap", ErrConfiguration, pair[0], pair[1])
		}
	}
	return nil
}

func (b *batch) stage() error {
	dirs := []string{b.opt.TempDir, b.outputDir}
	if b.opt.QuicklookDir != "" {
		dirs = append(dirs, b.opt.QuicklookDir)
	}
	for _, dir := range dirs {
		created, err := ResetDirectory(dir)
		if err != nil {
			return err
		}
		if created {
			b.log.Info().Str("path", dir).Msg("created directory")
		} else {
			b.log.Warn().Str("path", dir).Msg("directory already existed, previous content deleted")
		}
	}
	return nil
}

func (b *batch) convertAll(files []string) error {
	total := len(files)
	for i, src := range files {
		if err := b.ctx.Err(); err != nil {
			return err
		}
		job := NewJob(i, src, b.opt.TempDir, b.outputDir)
		err := b.convert(job)
		if err != nil {
			b.res.Failures = append(b.res.Failures, FileFailure{Source: src, Err: err})
			b.log.Error().Err(err).Str("source", src).Msg("conversion failed")
		} else {
			b.res.Converted++
			b.res.Outputs = append(b.res.Outputs, job.OutputPath)
		}
		b.log.Info().Int("done", i+1).Int("total", total).Str("source", src).Msg("progress")
		if b.opt.OnProgress != nil {
			b.opt.OnProgress(i+1, total, job)
		}
		if err != nil && b.opt.FailFast {
			return FileFailure{Source: src, Err: err}
		}
	}
	return nil
}

func (b *batch) convert(job ConversionJob) error {
	if err := validateFileName(job.Source); err != nil {
		return err
	}
	if prev, ok := b.seen[job.OutputPath]; ok {
		b.log.Warn().Str("source", job.Source).Str("previous", prev).Str("output", job.OutputPath).
			Msg("output name collides with an earlier file, overwriting")
	}
	b.seen[job.OutputPath] = job.Source

	width, height, err := imageSize(job.Source)
	if err != nil {
		return fmt.Errorf("read image size: %w", err)
	}

	stdout, err := b.ex.Extract(b.ctx, job.Source, job.RawPath, b.opt.Params)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return err
		}
		if !errors.Is(err, ErrExtraction) {
			err = fmt.Errorf("%w: %w", ErrExtraction, err)
		}
		return err
	}
	b.log.Debug().Str("source", job.Source).Str("stdout", toolOutput(stdout, "")).Msg("extractor finished")

	raster, err := DecodeRawFile(job.RawPath, width, height)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	bundle, err := Transplant(job.Source)
	if err != nil {
		return fmt.Errorf("transplant metadata: %w", err)
	}

	if err := EncodeTIFFFile(job.OutputPath, raster, bundle); err != nil {
		return fmt.Errorf("write %s: %w", job.OutputPath, err)
	}

	if b.opt.QuicklookDir != "" {
		p := filepath.Join(b.opt.QuicklookDir, job.Stem+quicklookExt(b.opt.QuicklookFormat))
		if err := writeQuicklookFile(p, raster, b.opt.QuicklookMaxSize, b.opt.QuicklookFormat); err != nil {
			return fmt.Errorf("write quicklook %s: %w", p, err)
		}
	}

	if b.opt.Uploader != nil {
		key := path.Join(b.opt.UploadPrefix, filepath.Base(job.OutputPath))
		if err := b.opt.Uploader.Upload(b.ctx, job.OutputPath, key); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		b.log.Debug().Str("key", key).Msg("uploaded")
	}
	return nil
}

func imageSize(p string) (width, height int, err error) {
	f, err := os.Open(filepath.Clean(p))
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

package irtiff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Extractor produces a raw temperature buffer for a source image.
//
// Extract writes the buffer to rawPath and returns the extractor's standard
// output as a completion signal. It must reject params that fail Validate
// before starting any work.
type Extractor interface {
	Extract(ctx context.Context, sourcePath, rawPath string, params ExtractionParameters) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, sourcePath, rawPath string, params ExtractionParameters) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, sourcePath, rawPath string, params ExtractionParameters) (string, error) {
	return f(ctx, sourcePath, rawPath, params)
}

// ExecExtractor runs the dji_irp utility as a child process.
type ExecExtractor struct {
	// Path is the extractor executable.
	Path string
	// Args are prepended to the generated arguments.
	Args []string
	// Env is appended to the current process environment.
	Env []string
	// Dir is the working directory of the child, empty for the current one.
	Dir string
	// Timeout bounds a single invocation, zero uses the default of two minutes
	// and a negative value disables the limit.
	Timeout time.Duration
}

// NewExecExtractor returns an extractor for the binary shipped in the DJI
// Thermal SDK directory sdkDir, picking the build for the running OS.
func NewExecExtractor(sdkDir string) *ExecExtractor {
	e := &ExecExtractor{}
	if runtime.GOOS == "windows" {
		e.Path = filepath.Join(sdkDir, filepath.FromSlash(extractorBinaryWindows))
		return e
	}
	e.Path = filepath.Join(sdkDir, filepath.FromSlash(extractorBinaryLinux))
	// libdirp.so and friends are located next to the binary.
	libDir := filepath.Dir(e.Path)
	if cur := os.Getenv(libraryPathEnvLinux); cur != "" {
		libDir = libDir + string(os.PathListSeparator) + cur
	}
	e.Env = append(e.Env, libraryPathEnvLinux+"="+libDir)
	return e
}

// BuildArgs returns the argument list for one invocation, without Args.
func BuildArgs(sourcePath, rawPath string, params ExtractionParameters) []string {
	args := []string{"-s", sourcePath, "-a", measureAction, "-o", rawPath}
	return append(args, params.Args()...)
}

// Extract runs the extractor and waits for it to finish.
func (e *ExecExtractor) Extract(ctx context.Context, sourcePath, rawPath string, params ExtractionParameters) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	if e.Path == "" {
		return "", fmt.Errorf("%w: extractor path is not set", ErrConfiguration)
	}

	timeout := e.Timeout
	if timeout == 0 {
		timeout = defaultExtractTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := append(append([]string(nil), e.Args...), BuildArgs(sourcePath, rawPath, params)...)
	cmd := exec.CommandContext(ctx, e.Path, args...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := stdout.String()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return out, fmt.Errorf("%w: %s: timed out after %s", ErrExtraction, sourcePath, timeout)
		}
		return out, fmt.Errorf("%w: %s: %w", ErrExtraction, sourcePath, ctxErr)
	}
	if err != nil {
		return out, fmt.Errorf("%w: %s: %w, output: %s", ErrExtraction, sourcePath, err, toolOutput(out, stderr.String()))
	}
	if fi, err := os.Stat(rawPath); err != nil || fi.Size() == 0 {
		return out, fmt.Errorf("%w: %s: no raw buffer written to %s, output: %s",
			ErrExtraction, sourcePath, rawPath, toolOutput(out, stderr.String()))
	}
	return out, nil
}

func toolOutput(stdout, stderr string) string {
	s := strings.TrimSpace(stdout + "\n" + stderr)
	if len(s) > maxExtractorOutputLogLen {
		s = s[len(s)-maxExtractorOutputLogLen:]
	}
	return s
}

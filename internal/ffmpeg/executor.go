// Package ffmpeg runs the external ffmpeg/ffprobe collaborators as
// subprocesses with captured diagnostics.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	pkgerrors "github.com/pforret/stemmogram/internal/errors"
	"github.com/pforret/stemmogram/internal/logger"
	"go.uber.org/zap"
)

// Executor invokes ffmpeg and ffprobe binaries.
type Executor struct {
	ffmpegPath  string
	ffprobePath string
	log         *logger.Logger
}

// Config holds executor configuration. Empty paths are resolved via PATH.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	Logger      *logger.Logger
}

// NewExecutor resolves the tool binaries and returns an Executor.
func NewExecutor(cfg Config) (*Executor, error) {
	ffmpegPath := cfg.FFmpegPath
	if ffmpegPath == "" {
		var err error
		ffmpegPath, err = exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
	}

	ffprobePath := cfg.FFprobePath
	if ffprobePath == "" {
		var err error
		ffprobePath, err = exec.LookPath("ffprobe")
		if err != nil {
			return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
		}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Executor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, log: log}, nil
}

// Run executes ffmpeg with the given arguments. The returned error carries
// the exit code and captured stderr.
func (e *Executor) Run(ctx context.Context, stage string, args []string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.log.Debug("executing ffmpeg", zap.Strings("args", args))

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return pkgerrors.NewExecError(pkgerrors.KindRender, stage, args, exitCode, stderr.String(), err)
	}

	return nil
}

// RunForStderr executes ffmpeg and returns its stderr output even on
// non-zero exit. The ebur128 and volumedetect filters write their reports to
// stderr with a null muxer, so exit status alone is not meaningful here.
func (e *Executor) RunForStderr(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.log.Debug("executing ffmpeg filter", zap.Strings("args", args))

	err := cmd.Run()
	return stderr.String(), err
}

// Probe runs ffprobe on inputPath and returns its JSON output.
func (e *Executor) Probe(ctx context.Context, inputPath string) ([]byte, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return nil, pkgerrors.NewExecError(pkgerrors.KindMetadata, "probe", args, exitCode, stderr.String(), err)
	}

	return stdout.Bytes(), nil
}

// Package separate drives the external stem-separation model (demucs) and
// locates the four stem WAVs it writes.
package separate

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pforret/stemmogram/internal/config"
	pkgerrors "github.com/pforret/stemmogram/internal/errors"
	"github.com/pforret/stemmogram/internal/logger"
	"github.com/pforret/stemmogram/internal/stem"
	"go.uber.org/zap"
)

// Model is the demucs model name. htdemucs emits exactly the four stems the
// compositor expects.
const Model = "htdemucs"

// StemPaths maps each stem to its separated WAV on disk.
type StemPaths map[stem.Stem]string

// Separator runs the separation model.
type Separator struct {
	python string
	log    *logger.Logger
}

// New creates a Separator. pythonPath may be empty to use "python3" from PATH.
func New(pythonPath string, log *logger.Logger) *Separator {
	if pythonPath == "" {
		pythonPath = "python3"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Separator{python: pythonPath, log: log}
}

// Run separates inputPath into four stems under workDir and returns their
// paths. Non-zero exit or any missing stem file is a SeparationFailed error:
// without all four stems nothing downstream can composite.
func (s *Separator) Run(ctx context.Context, inputPath, workDir string) (StemPaths, error) {
	sepDir := filepath.Join(workDir, "separated")
	args := []string{"-m", "demucs", "-n", Model, "--out", sepDir, inputPath}

	s.log.Info("separating stems",
		zap.String("model", Model),
		zap.String("input", inputPath),
	)

	cmd := exec.CommandContext(ctx, s.python, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return nil, pkgerrors.NewExecError(pkgerrors.KindSeparation, "separate",
			append([]string{s.python}, args...), exitCode, stderr.String(), err)
	}

	return Locate(sepDir, inputPath)
}

// Locate finds the stem WAVs demucs wrote under
// <sepDir>/<model>/<trackname>/<stem>.wav and verifies all four exist.
func Locate(sepDir, inputPath string) (StemPaths, error) {
	stemDir := filepath.Join(sepDir, Model, config.BaseName(inputPath))

	paths := make(StemPaths, stem.Count)
	for _, st := range stem.All() {
		wavPath := filepath.Join(stemDir, st.WAVName())
		if _, err := os.Stat(wavPath); err != nil {
			return nil, pkgerrors.New(pkgerrors.KindSeparation, "separate",
				"expected stem file not found: "+wavPath, err)
		}
		paths[st] = wavPath
	}
	return paths, nil
}

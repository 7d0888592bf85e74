package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/domain"
)

// Exec runs OpenFOAM utilities as child processes inside a case directory,
// mirroring stdout and stderr into a per-step log file that progress
// tracking and postmortems read.
type Exec struct {
	logger *slog.Logger
}

func NewExec(logger *slog.Logger) *Exec {
	return &Exec{logger: logger}
}

// Run executes one toolchain step. The combined output lands in
// dir/logName. A missing binary or non-zero exit maps to
// ErrExternalProcess.
func (e *Exec) Run(ctx context.Context, dir, logName, name string, args ...string) error {
	logPath := filepath.Join(dir, logName)
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrExternalProcess, logName, err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	e.logger.Info("running toolchain step", "cmd", name, "args", args, "log", logName)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrExternalProcess, name, err)
	}
	return nil
}

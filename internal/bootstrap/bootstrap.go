// Package bootstrap prepares the external export toolchain: a piper checkout
// on the streaming branch with its Python dependencies installed.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

type Options struct {
	// PiperDir is where the piper repo is (or will be) checked out.
	PiperDir string
	RepoURL  string
	Branch   string
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger
}

// ScriptDir returns the directory the export tool is run from within a piper
// checkout.
func ScriptDir(piperDir string) string {
	return filepath.Join(piperDir, "src", "python")
}

// Ensure makes the export toolchain available. It is idempotent: when the
// checkout already exists the clone and dependency install are skipped
// entirely, so repeated runs only pay for the first one.
func Ensure(ctx context.Context, opts Options) error {
	if opts.PiperDir == "" {
		return fmt.Errorf("piper dir is required")
	}
	if opts.RepoURL == "" {
		return fmt.Errorf("piper repo URL is required")
	}
	if opts.Branch == "" {
		opts.Branch = "streaming"
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if fi, err := os.Stat(opts.PiperDir); err == nil && fi.IsDir() {
		opts.Logger.Info("piper checkout present, skipping bootstrap", "dir", opts.PiperDir)
		return nil
	}

	if err := validateTooling(); err != nil {
		return err
	}

	opts.Logger.Info("cloning piper repo", "url", opts.RepoURL, "branch", opts.Branch)
	if err := runStep(ctx, opts, "", "git", "clone", "--branch", opts.Branch, opts.RepoURL, opts.PiperDir); err != nil {
		return fmt.Errorf("clone piper repo: %w", err)
	}

	scriptDir := ScriptDir(opts.PiperDir)
	opts.Logger.Info("installing piper dependencies", "dir", scriptDir)
	if err := runStep(ctx, opts, scriptDir, "pip3", "install", "-r", "requirements.txt"); err != nil {
		return fmt.Errorf("install piper requirements: %w", err)
	}
	if err := runStep(ctx, opts, scriptDir, "bash", "build_monotonic_align.sh"); err != nil {
		return fmt.Errorf("build monotonic align extension: %w", err)
	}
	// Recent torch/lightning/onnx give the best export results.
	if err := runStep(ctx, opts, "", "pip3", "install", "--upgrade", "torch", "pytorch-lightning", "onnx"); err != nil {
		return fmt.Errorf("upgrade export dependencies: %w", err)
	}
	return nil
}

func validateTooling() error {
	for _, tool := range []string{"git", "pip3", "bash"} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("bootstrap requires %q on PATH: %w", tool, err)
		}
	}
	return nil
}

func runStep(ctx context.Context, opts Options, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	return cmd.Run()
}

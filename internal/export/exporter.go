// Package export turns one upstream voice checkpoint into a published
// streaming archive: download, external ONNX export, config rewrite, tar
// packaging and upload, all inside a scratch workspace that is reset on every
// exit path.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mush42/piper-rt-maker/internal/voice"
)

const (
	exportSubdir       = "exported"
	scratchCheckpoint  = "checkpoint.ckpt"
	exportModuleName   = "piper_train.export_onnx_streaming"
	checkpointRepoType = "dataset"
)

// HubClient is the remote access the transform needs: reading from the source
// repo and publishing to the destination repo.
type HubClient interface {
	ResolveURL(repo, repoType, path string) string
	GetRaw(ctx context.Context, url string) ([]byte, error)
	DownloadFile(ctx context.Context, url, dest string) error
	UploadFile(ctx context.Context, localPath, repoPath, repo, repoType string) error
}

type Options struct {
	Hub        HubClient
	SourceRepo string
	DestRepo   string
	// ScriptDir is the piper checkout's src/python directory; the export
	// module is run from there.
	ScriptDir string
	PythonBin string
	Workspace *Workspace
	Logger    *slog.Logger
	Stdout    io.Writer
	Stderr    io.Writer
}

// Exporter performs the per-voice transform.
type Exporter struct {
	hub        HubClient
	sourceRepo string
	destRepo   string
	scriptDir  string
	pythonBin  string
	ws         *Workspace
	logger     *slog.Logger
	stdout     io.Writer
	stderr     io.Writer

	// runExport invokes the external export tool; replaced in tests.
	runExport func(ctx context.Context, checkpointPath, outDir string) error
}

func New(opts Options) (*Exporter, error) {
	if opts.Hub == nil {
		return nil, fmt.Errorf("hub client is required")
	}
	if opts.SourceRepo == "" || opts.DestRepo == "" {
		return nil, fmt.Errorf("source and destination repos are required")
	}
	if opts.Workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	if opts.PythonBin == "" {
		opts.PythonBin = "python3"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	e := &Exporter{
		hub:        opts.Hub,
		sourceRepo: opts.SourceRepo,
		destRepo:   opts.DestRepo,
		scriptDir:  opts.ScriptDir,
		pythonBin:  opts.PythonBin,
		ws:         opts.Workspace,
		logger:     opts.Logger,
		stdout:     opts.Stdout,
		stderr:     opts.Stderr,
	}
	e.runExport = e.runExportTool
	return e, nil
}

// ExportAndPackage runs the full transform for one voice and returns the name
// of the uploaded archive. The workspace is reset before returning whether
// the transform succeeded or not; reset failures are logged, never returned.
func (e *Exporter) ExportAndPackage(ctx context.Context, v voice.Voice) (archiveName string, err error) {
	defer func() {
		if resetErr := e.ws.Reset(); resetErr != nil {
			e.logger.Error("workspace reset failed", "voice", v.Name, "error", resetErr)
		}
	}()

	derivedName, err := v.DerivedName()
	if err != nil {
		return "", err
	}

	exportDir := e.ws.Path(exportSubdir)
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	e.logger.Info("downloading checkpoint", "voice", v.Name)
	checkpointPath := e.ws.Path(scratchCheckpoint)
	checkpointURL := e.hub.ResolveURL(e.sourceRepo, checkpointRepoType, v.Checkpoint)
	if err := e.hub.DownloadFile(ctx, checkpointURL, checkpointPath); err != nil {
		return "", fmt.Errorf("download checkpoint: %w", err)
	}

	e.logger.Info("exporting to streaming ONNX", "voice", v.Name)
	if err := e.runExport(ctx, checkpointPath, exportDir); err != nil {
		return "", fmt.Errorf("export checkpoint: %w", err)
	}

	e.logger.Info("preparing config", "voice", v.Name)
	configURL := e.hub.ResolveURL(e.sourceRepo, checkpointRepoType, v.Config)
	rawConfig, err := e.hub.GetRaw(ctx, configURL)
	if err != nil {
		return "", fmt.Errorf("fetch config: %w", err)
	}
	derivedConfig, err := RewriteConfig(rawConfig, derivedName)
	if err != nil {
		return "", fmt.Errorf("rewrite config: %w", err)
	}
	configPath := e.ws.Path(exportSubdir, derivedName+".json")
	if err := os.WriteFile(configPath, derivedConfig, 0o644); err != nil {
		return "", fmt.Errorf("write derived config: %w", err)
	}

	e.logger.Info("packaging voice", "voice", v.Name)
	archiveName = derivedName + ".tar.gz"
	archivePath := e.ws.Path(archiveName)
	if err := buildArchive(exportDir, archivePath); err != nil {
		return "", fmt.Errorf("build archive: %w", err)
	}

	e.logger.Info("uploading voice", "voice", v.Name, "archive", archiveName)
	if err := e.hub.UploadFile(ctx, archivePath, archiveName, e.destRepo, "dataset"); err != nil {
		return "", fmt.Errorf("upload archive: %w", err)
	}

	return archiveName, nil
}

func (e *Exporter) runExportTool(ctx context.Context, checkpointPath, outDir string) error {
	// The tool runs from the piper checkout, so scratch paths must be absolute.
	absCheckpoint, err := filepath.Abs(checkpointPath)
	if err != nil {
		return fmt.Errorf("resolve checkpoint path: %w", err)
	}
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve export dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.pythonBin, "-m", exportModuleName, "--debug", absCheckpoint, absOut)
	cmd.Dir = e.scriptDir
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run streaming export tool: %w", err)
	}
	return nil
}

// Package pipeline drives one release run: discover upstream voices, resolve
// the delta against the published index, transform each new voice with
// per-voice failure isolation, and republish the aggregated metadata.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/mush42/piper-rt-maker/internal/export"
	"github.com/mush42/piper-rt-maker/internal/hub"
	"github.com/mush42/piper-rt-maker/internal/voice"
)

const (
	// MetadataFile is the published index of processed voices.
	MetadataFile = "metadata.json"
	// CatalogFile is the derived public catalog of streaming voices.
	CatalogFile = "voices.json"
)

// Hub is the remote access the driver needs.
type Hub interface {
	ListRepoFiles(ctx context.Context, repo string) ([]string, error)
	Etag(ctx context.Context, repo, path string) (string, error)
	ResolveURL(repo, repoType, path string) string
	GetRaw(ctx context.Context, url string) ([]byte, error)
	UploadFile(ctx context.Context, localPath, repoPath, repo, repoType string) error
}

// Transformer exports and packages one voice, returning the uploaded archive
// name.
type Transformer interface {
	ExportAndPackage(ctx context.Context, v voice.Voice) (string, error)
}

// VoiceError wraps a per-voice transform failure. These are collected, never
// fatal to the run.
type VoiceError struct {
	Voice string
	Err   error
}

func (e *VoiceError) Error() string {
	return fmt.Sprintf("voice %s: %v", e.Voice, e.Err)
}

func (e *VoiceError) Unwrap() error { return e.Err }

type Options struct {
	Hub         Hub
	Transformer Transformer
	Workspace   *export.Workspace
	SourceRepo  string
	DestRepo    string
	CatalogURL  string
	// DryRun stops after delta resolution and reports what would be
	// processed without transforming or publishing anything.
	DryRun bool
	Logger *slog.Logger
}

// Report summarizes one run. VoiceFailures aggregates per-voice errors that
// were isolated during processing; it is nil when every voice succeeded.
type Report struct {
	Discovered    int
	New           int
	Published     int
	Failed        int
	VoiceFailures error
}

type Pipeline struct {
	hub        Hub
	transform  Transformer
	ws         *export.Workspace
	sourceRepo string
	destRepo   string
	catalogURL string
	dryRun     bool
	logger     *slog.Logger
}

func New(opts Options) (*Pipeline, error) {
	if opts.Hub == nil {
		return nil, fmt.Errorf("hub client is required")
	}
	if !opts.DryRun && opts.Transformer == nil {
		return nil, fmt.Errorf("transformer is required")
	}
	if !opts.DryRun && opts.Workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	if opts.SourceRepo == "" || opts.DestRepo == "" {
		return nil, fmt.Errorf("source and destination repos are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		hub:        opts.Hub,
		transform:  opts.Transformer,
		ws:         opts.Workspace,
		sourceRepo: opts.SourceRepo,
		destRepo:   opts.DestRepo,
		catalogURL: opts.CatalogURL,
		dryRun:     opts.DryRun,
		logger:     opts.Logger,
	}, nil
}

// Run executes the full pipeline. Per-voice failures are isolated and land in
// the report; the returned error is reserved for failures that abort the run
// (listing, delta baseline with a real error, final publication).
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	p.logger.Info("discovering voices", "repo", p.sourceRepo)
	files, err := p.hub.ListRepoFiles(ctx, p.sourceRepo)
	if err != nil {
		return nil, fmt.Errorf("list source repo: %w", err)
	}
	discovered, err := voice.Discover(ctx, p.sourceRepo, files, p.hub, p.logger)
	if err != nil {
		return nil, fmt.Errorf("discover voices: %w", err)
	}

	baseline, err := p.fetchPublishedIndex(ctx)
	if err != nil {
		return nil, err
	}

	delta := voice.Delta(discovered, baseline)
	p.logger.Info("resolved delta", "discovered", len(discovered), "new", len(delta))

	report := &Report{Discovered: len(discovered), New: len(delta)}

	if p.dryRun {
		for _, v := range delta {
			p.logger.Info("would process voice", "voice", v.Name, "checkpoint", v.Checkpoint)
		}
		return report, nil
	}

	var succeeded []voice.Voice
	var failures *multierror.Error
	for _, v := range delta {
		p.logger.Info("processing voice", "voice", v.Name)
		if _, err := p.transform.ExportAndPackage(ctx, v); err != nil {
			p.logger.Error("failed to export and package voice", "voice", v.Name, "error", err)
			failures = multierror.Append(failures, &VoiceError{Voice: v.Name, Err: err})
			continue
		}
		succeeded = append(succeeded, v)
	}
	report.Published = len(succeeded)
	report.Failed = report.New - report.Published
	report.VoiceFailures = failures.ErrorOrNil()

	index := mergeIndex(discovered, baseline, succeeded)
	if err := p.publishMetadata(ctx, index); err != nil {
		return report, err
	}
	if err := p.publishCatalog(ctx, index); err != nil {
		return report, err
	}

	if resetErr := p.ws.Reset(); resetErr != nil {
		p.logger.Error("workspace reset failed", "error", resetErr)
	}

	p.logger.Info("run complete",
		"discovered", report.Discovered,
		"new", report.New,
		"published", report.Published,
		"failed", report.Failed)
	return report, nil
}

// fetchPublishedIndex loads the destination's metadata.json. An absent index
// (the endpoint answers 401 or 404) means nothing was published yet and is
// not an error.
func (p *Pipeline) fetchPublishedIndex(ctx context.Context) ([]voice.Voice, error) {
	url := p.hub.ResolveURL(p.destRepo, "dataset", MetadataFile)
	raw, err := p.hub.GetRaw(ctx, url)
	if errors.Is(err, hub.ErrNotFound) {
		p.logger.Info("no existing metadata file, starting from scratch")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch published index: %w", err)
	}
	var index []voice.Voice
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("decode published index: %w", err)
	}
	return index, nil
}

// mergeIndex builds the next published index: every discovered voice that was
// either already published (tuple match in the baseline) or transformed
// successfully this run. Failed voices stay out, so the next run retries them.
func mergeIndex(discovered, baseline, succeeded []voice.Voice) []voice.Voice {
	index := make([]voice.Voice, 0, len(discovered))
	for _, v := range discovered {
		if voice.Contains(baseline, v) || voice.Contains(succeeded, v) {
			index = append(index, v)
		}
	}
	return index
}

func (p *Pipeline) publishMetadata(ctx context.Context, index []voice.Voice) error {
	p.logger.Info("publishing voice metadata", "voices", len(index))
	body, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return p.uploadDocument(ctx, MetadataFile, append(body, '\n'))
}

func (p *Pipeline) publishCatalog(ctx context.Context, index []voice.Voice) error {
	if p.catalogURL == "" {
		p.logger.Info("no public catalog configured, skipping catalog publication")
		return nil
	}

	raw, err := p.hub.GetRaw(ctx, p.catalogURL)
	if err != nil {
		return fmt.Errorf("fetch public catalog: %w", err)
	}
	var catalog map[string]json.RawMessage
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return fmt.Errorf("decode public catalog: %w", err)
	}

	published := make(map[string]bool, len(index))
	for _, v := range index {
		published[v.Name] = true
	}

	derived, err := DeriveCatalog(catalog, published)
	if err != nil {
		return fmt.Errorf("derive streaming catalog: %w", err)
	}

	p.logger.Info("publishing streaming catalog", "entries", len(derived))
	body, err := json.MarshalIndent(derived, "", "  ")
	if err != nil {
		return fmt.Errorf("encode streaming catalog: %w", err)
	}
	return p.uploadDocument(ctx, CatalogFile, append(body, '\n'))
}

// uploadDocument writes a document into the workspace and uploads it to the
// destination repo under name.
func (p *Pipeline) uploadDocument(ctx context.Context, name string, body []byte) error {
	path := p.ws.Path(name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := p.hub.UploadFile(ctx, path, name, p.destRepo, "dataset"); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

package voice

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

const (
	configFileName = "config.json"
	checkpointExt  = ".ckpt"
)

// MetadataSource fetches the remote content fingerprint of a repo file
// without downloading it.
type MetadataSource interface {
	Etag(ctx context.Context, repo, path string) (string, error)
}

// Discover scans a flat upstream file listing and builds one Voice per
// directory grouping that contains a config.json and at least one checkpoint
// file. The voice name joins the grouping's path segments after the leading
// collection prefix with dashes; groupings without a checkpoint, or whose
// derived name does not have the lang-base-quality shape, are skipped.
func Discover(ctx context.Context, repo string, files []string, meta MetadataSource, logger *slog.Logger) ([]Voice, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var voices []Voice
	for _, f := range files {
		if path.Base(f) != configFileName {
			continue
		}
		dir := path.Dir(f)

		name := deriveVoiceName(dir)
		if strings.Count(name, "-") != 2 || strings.Contains(name, "--") {
			logger.Debug("skipping grouping with unexpected layout", "dir", dir)
			continue
		}

		checkpoint := findCheckpoint(files, dir)
		if checkpoint == "" {
			continue
		}

		etag, err := meta.Etag(ctx, repo, checkpoint)
		if err != nil {
			return nil, fmt.Errorf("fetch etag for %s: %w", checkpoint, err)
		}

		voices = append(voices, Voice{
			Name:       name,
			Config:     f,
			Checkpoint: checkpoint,
			Etag:       etag,
		})
	}
	return voices, nil
}

// deriveVoiceName joins all segments of the grouping directory except the
// first (the collection prefix) with dashes.
func deriveVoiceName(dir string) string {
	segments := strings.Split(dir, "/")
	if len(segments) < 2 {
		return ""
	}
	return strings.Join(segments[1:], "-")
}

// findCheckpoint returns the first checkpoint file directly inside dir, in
// listing order, or "" when the grouping has none.
func findCheckpoint(files []string, dir string) string {
	for _, f := range files {
		if path.Dir(f) == dir && strings.HasSuffix(f, checkpointExt) {
			return f
		}
	}
	return ""
}

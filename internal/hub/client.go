// Package hub is a minimal Hugging Face Hub client covering the calls the
// release pipeline needs: repo file listings, per-file metadata, raw and JSON
// fetches, streamed downloads and commit-style uploads.
package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// DefaultBaseURL is the public Hugging Face endpoint.
const DefaultBaseURL = "https://huggingface.co"

// ErrNotFound signals that a remote document does not exist. The hub returns
// 401 rather than 404 for missing files in dataset repos, so both map here.
var ErrNotFound = errors.New("hub: not found")

// FileMetadata is the subset of resolve-endpoint headers the pipeline uses.
type FileMetadata struct {
	Etag string
	Size int64
}

type Options struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// Client talks to the Hugging Face Hub. Construct one at startup and pass it
// to every component that needs remote access.
type Client struct {
	base  string
	token string
	http  *http.Client
}

func New(opts Options) *Client {
	base := strings.TrimSuffix(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := opts.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 0}
	}
	return &Client{base: base, token: opts.Token, http: httpClient}
}

// ResolveURL builds the resolve/main URL for a file in a repo. Dataset repos
// carry a "datasets/" prefix; model repos do not.
func (c *Client) ResolveURL(repo, repoType, path string) string {
	if repoType == "dataset" {
		return fmt.Sprintf("%s/datasets/%s/resolve/main/%s", c.base, repo, path)
	}
	return fmt.Sprintf("%s/%s/resolve/main/%s", c.base, repo, path)
}

type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// ListRepoFiles returns the relative POSIX paths of every file in a dataset
// repo, in listing order.
func (c *Client) ListRepoFiles(ctx context.Context, repo string) ([]string, error) {
	url := fmt.Sprintf("%s/api/datasets/%s/tree/main?recursive=true", c.base, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", repo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("list %s: %s", repo, resp.Status)
	}

	var entries []treeEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode listing for %s: %w", repo, err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type == "file" {
			paths = append(paths, e.Path)
		}
	}
	return paths, nil
}

// FileMetadata issues a HEAD request against the resolve URL and returns the
// normalized content fingerprint without downloading the file.
func (c *Client) FileMetadata(ctx context.Context, repo, path string) (FileMetadata, error) {
	url := c.ResolveURL(repo, "dataset", path)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return FileMetadata{}, fmt.Errorf("build metadata request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return FileMetadata{}, fmt.Errorf("metadata request failed for %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		return FileMetadata{}, fmt.Errorf("metadata request failed for %s: %s", path, resp.Status)
	}

	var etag string
	for _, key := range []string{"X-Linked-Etag", "Etag"} {
		if v := normalizeETag(resp.Header.Get(key)); v != "" {
			etag = v
			break
		}
	}
	if etag == "" {
		return FileMetadata{}, fmt.Errorf("no etag in metadata response for %s", path)
	}
	return FileMetadata{Etag: etag, Size: resp.ContentLength}, nil
}

// Etag is a convenience wrapper around FileMetadata.
func (c *Client) Etag(ctx context.Context, repo, path string) (string, error) {
	md, err := c.FileMetadata(ctx, repo, path)
	if err != nil {
		return "", err
	}
	return md.Etag, nil
}

// GetRaw fetches a document as bytes. 401 and 404 map to ErrNotFound.
func (c *Client) GetRaw(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("get %s: %w", url, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get %s: %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}

// GetJSON fetches and decodes a JSON document. 401 and 404 map to ErrNotFound.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.GetRaw(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// DownloadFile streams a remote file to dest, writing through a temp file that
// is renamed into place only after the body is fully consumed.
func (c *Client) DownloadFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download %s: %s", url, resp.Status)
	}

	tmp := dest + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(fh, resp.Body); err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move temp file into place: %w", err)
	}
	return nil
}

type commitOperation struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type commitHeader struct {
	Summary string `json:"summary"`
}

type commitFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// UploadFile publishes a local file into a repo under repoPath using the
// NDJSON commit endpoint. Re-uploading the same path overwrites it.
func (c *Client) UploadFile(ctx context.Context, localPath, repoPath, repo, repoType string) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read upload source: %w", err)
	}

	var payload bytes.Buffer
	enc := json.NewEncoder(&payload)
	ops := []commitOperation{
		{Key: "header", Value: commitHeader{Summary: fmt.Sprintf("Upload %s", repoPath)}},
		{Key: "file", Value: commitFile{
			Path:     repoPath,
			Content:  base64.StdEncoding.EncodeToString(content),
			Encoding: "base64",
		}},
	}
	for _, op := range ops {
		if err := enc.Encode(op); err != nil {
			return fmt.Errorf("encode commit operation: %w", err)
		}
	}

	url := fmt.Sprintf("%s/api/%ss/%s/commit/main", c.base, repoType, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &payload)
	if err != nil {
		return fmt.Errorf("build commit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s to %s: %w", repoPath, repo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload %s to %s: %s", repoPath, repo, resp.Status)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
}

func normalizeETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, "\"")
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, "\"")
	return v
}

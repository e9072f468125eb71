// Package vcs fetches source files referenced by generation requests so
// their content can be attached to the prompt.
package vcs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/caseforge/worker/internal/domain/suite"
	"github.com/caseforge/worker/internal/usecase/testgen"
)

const gitHubAPIBase = "https://api.github.com"

// maxContextBytes caps fetched file size. Larger files get truncated by the
// gateway's token budget anyway.
const maxContextBytes = 1 << 20

type GitHubContentClient struct {
	apiBase    string
	httpClient *http.Client
}

var _ testgen.ContextFetcher = (*GitHubContentClient)(nil)

func NewGitHubContentClient(httpClient *http.Client) *GitHubContentClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GitHubContentClient{
		apiBase:    gitHubAPIBase,
		httpClient: httpClient,
	}
}

// GetFileContent fetches one file through the GitHub contents API.
func (c *GitHubContentClient) GetFileContent(ctx context.Context, ref suite.SourceRef) (string, error) {
	if ref.Repo == "" || !strings.Contains(ref.Repo, "/") {
		return "", fmt.Errorf("%w: repo must be in owner/repo form", suite.ErrInvalidInput)
	}
	if ref.FilePath == "" {
		return "", fmt.Errorf("%w: file path is required", suite.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/contents/%s",
		c.apiBase, ref.Repo, escapePath(strings.TrimPrefix(ref.FilePath, "/")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if ref.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ref.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get file %s/%s: %w", ref.Repo, ref.FilePath, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", fmt.Errorf("%w: %s in %s", suite.ErrContextNotFound, ref.FilePath, ref.Repo)
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", fmt.Errorf("%w: %s in %s", suite.ErrContextUnauthorized, ref.FilePath, ref.Repo)
	default:
		return "", fmt.Errorf("get file %s/%s: unexpected status %d", ref.Repo, ref.FilePath, resp.StatusCode)
	}

	var result struct {
		Type     string `json:"type"`
		Encoding string `json:"encoding"`
		Content  string `json:"content"`
		Size     int    `json:"size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if result.Type != "" && result.Type != "file" {
		return "", fmt.Errorf("%w: %s is a %s, not a file", suite.ErrInvalidInput, ref.FilePath, result.Type)
	}
	if result.Size > maxContextBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", suite.ErrInvalidInput, ref.FilePath, maxContextBytes)
	}

	return decodeBody(result.Encoding, result.Content)
}

// escapePath escapes each path segment while keeping the separators, the
// form the contents API expects.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

func decodeBody(encoding, content string) (string, error) {
	// The contents API base64-encodes file bodies with embedded newlines.
	if encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("decode file content: %w", err)
		}
		return string(decoded), nil
	}
	return content, nil
}

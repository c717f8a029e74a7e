// Package github talks to the GitHub REST API on behalf of a project owner
// and verifies webhook deliveries.
package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxBlobSize skips files larger than this when pulling a tree.
	MaxBlobSize = 1 << 20
	// MaxTreeFiles bounds how many files one pull will fetch.
	MaxTreeFiles = 2000

	blobFetchConcurrency = 8
)

// ErrNotFound is returned when the repository, branch or object does not exist
// or is not visible with the given token.
var ErrNotFound = errors.New("github: not found")

// ErrUnauthorized is returned when GitHub rejects the token.
var ErrUnauthorized = errors.New("github: unauthorized")

// ErrInvalidRepoName is returned for repository names not shaped owner/name.
var ErrInvalidRepoName = errors.New("github: repository must be owner/name")

// APIError is a non-2xx GitHub response other than 401/403/404.
type APIError struct {
	Status  int
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: %d %s", e.Status, e.Message)
}

// Client is a GitHub REST client. Each call authenticates with the token it
// is given, since projects sync with their owner's credentials.
type Client struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a Client for the API at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

func (c *Client) rest(ctx context.Context, token string) *resty.Client {
	var rc *resty.Client
	if token == "" {
		rc = resty.New()
	} else {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		rc = resty.NewWithClient(oauth2.NewClient(ctx, src))
	}
	return rc.
		SetBaseURL(c.baseURL).
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28").
		SetHeader("User-Agent", "adorable")
}

func splitRepo(fullName string) (string, string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepoName, fullName)
	}
	return owner, name, nil
}

func checkResponse(resp *resty.Response, apiErr *APIError) error {
	if !resp.IsError() {
		return nil
	}
	switch resp.StatusCode() {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	apiErr.Status = resp.StatusCode()
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode())
	}
	return apiErr
}

// GetBranchHead returns the commit SHA at the tip of branch.
func (c *Client) GetBranchHead(ctx context.Context, token, fullName, branch string) (string, error) {
	owner, repo, err := splitRepo(fullName)
	if err != nil {
		return "", err
	}

	var out struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	var apiErr APIError
	resp, err := c.rest(ctx, token).R().
		SetContext(ctx).
		SetPathParams(map[string]string{"owner": owner, "repo": repo, "branch": branch}).
		SetResult(&out).
		SetError(&apiErr).
		Get("/repos/{owner}/{repo}/branches/{branch}")
	if err != nil {
		return "", fmt.Errorf("fetching branch %s of %s: %w", branch, fullName, err)
	}
	if err := checkResponse(resp, &apiErr); err != nil {
		return "", err
	}
	return out.Commit.SHA, nil
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

// FetchTree downloads every text file of the tree at sha. Binary files, files
// over MaxBlobSize and anything past MaxTreeFiles are skipped.
func (c *Client) FetchTree(ctx context.Context, token, fullName, sha string) (map[string]string, error) {
	owner, repo, err := splitRepo(fullName)
	if err != nil {
		return nil, err
	}
	rc := c.rest(ctx, token)

	var tree struct {
		Tree      []treeEntry `json:"tree"`
		Truncated bool        `json:"truncated"`
	}
	var apiErr APIError
	resp, err := rc.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"owner": owner, "repo": repo, "sha": sha}).
		SetQueryParam("recursive", "1").
		SetResult(&tree).
		SetError(&apiErr).
		Get("/repos/{owner}/{repo}/git/trees/{sha}")
	if err != nil {
		return nil, fmt.Errorf("fetching tree %s of %s: %w", sha, fullName, err)
	}
	if err := checkResponse(resp, &apiErr); err != nil {
		return nil, err
	}
	if tree.Truncated {
		zap.S().Warnw("github tree listing truncated", "repo", fullName, "sha", sha)
	}

	var blobs []treeEntry
	for _, e := range tree.Tree {
		if e.Type != "blob" || e.Size > MaxBlobSize {
			continue
		}
		if len(blobs) == MaxTreeFiles {
			zap.S().Warnw("github tree exceeds file limit", "repo", fullName, "limit", MaxTreeFiles)
			break
		}
		blobs = append(blobs, e)
	}

	var (
		mu    sync.Mutex
		files = make(map[string]string, len(blobs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(blobFetchConcurrency)
	for _, e := range blobs {
		e := e
		g.Go(func() error {
			content, ok, err := c.fetchBlob(gctx, rc, owner, repo, e.SHA)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", e.Path, err)
			}
			if !ok {
				return nil
			}
			mu.Lock()
			files[e.Path] = content
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// fetchBlob returns the blob's text and false when it is not valid UTF-8.
func (c *Client) fetchBlob(ctx context.Context, rc *resty.Client, owner, repo, sha string) (string, bool, error) {
	var blob struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	var apiErr APIError
	resp, err := rc.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"owner": owner, "repo": repo, "sha": sha}).
		SetResult(&blob).
		SetError(&apiErr).
		Get("/repos/{owner}/{repo}/git/blobs/{sha}")
	if err != nil {
		return "", false, err
	}
	if err := checkResponse(resp, &apiErr); err != nil {
		return "", false, err
	}

	var data []byte
	switch blob.Encoding {
	case "base64":
		data, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(blob.Content, "\n", ""))
		if err != nil {
			return "", false, fmt.Errorf("decoding blob %s: %w", sha, err)
		}
	case "utf-8", "":
		data = []byte(blob.Content)
	default:
		return "", false, fmt.Errorf("unsupported blob encoding %q", blob.Encoding)
	}

	if !utf8.Valid(data) {
		return "", false, nil
	}
	return string(data), true, nil
}

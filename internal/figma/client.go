// Package figma lists frames of a Figma file and renders them to images
// through the Figma REST API.
package figma

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotFound is returned when the file or nodes do not exist.
var ErrNotFound = errors.New("figma: file not found")

// ErrUnauthorized is returned when Figma rejects the personal access token.
var ErrUnauthorized = errors.New("figma: invalid or expired token")

// ErrInvalidRequest is returned for malformed render parameters.
var ErrInvalidRequest = errors.New("figma: invalid request")

var frameTypes = map[string]bool{
	"FRAME":         true,
	"COMPONENT":     true,
	"COMPONENT_SET": true,
	"SECTION":       true,
}

var imageFormats = map[string]bool{"png": true, "jpg": true, "svg": true, "pdf": true}

// Frame is a top-level frame on one of the file's pages.
type Frame struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Page   string  `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ImageOptions controls how nodes are rendered.
type ImageOptions struct {
	Scale  float64
	Format string
}

// Client talks to the Figma API.
type Client struct {
	rc *resty.Client
}

// NewClient creates a Client for the API at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		rc: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

type apiError struct {
	Status int    `json:"status"`
	Err    string `json:"err"`
}

func checkResponse(resp *resty.Response, apiErr *apiError) error {
	if !resp.IsError() {
		return nil
	}
	switch resp.StatusCode() {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidRequest, apiErr.Err)
	}
	return fmt.Errorf("figma: %d %s", resp.StatusCode(), apiErr.Err)
}

type node struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Type                string `json:"type"`
	AbsoluteBoundingBox *struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"absoluteBoundingBox"`
	Children []node `json:"children"`
}

// Frames lists the top-level frames of every page of the file.
func (c *Client) Frames(ctx context.Context, token, fileKey string) ([]Frame, error) {
	var out struct {
		Document node `json:"document"`
	}
	var apiErr apiError
	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("X-Figma-Token", token).
		SetPathParam("key", fileKey).
		SetQueryParam("depth", "2").
		SetResult(&out).
		SetError(&apiErr).
		Get("/v1/files/{key}")
	if err != nil {
		return nil, fmt.Errorf("fetching figma file %s: %w", fileKey, err)
	}
	if err := checkResponse(resp, &apiErr); err != nil {
		return nil, err
	}

	frames := []Frame{}
	for _, page := range out.Document.Children {
		for _, n := range page.Children {
			if !frameTypes[n.Type] {
				continue
			}
			f := Frame{ID: n.ID, Name: n.Name, Type: n.Type, Page: page.Name}
			if n.AbsoluteBoundingBox != nil {
				f.Width = n.AbsoluteBoundingBox.Width
				f.Height = n.AbsoluteBoundingBox.Height
			}
			frames = append(frames, f)
		}
	}
	return frames, nil
}

// Images renders nodeIDs and returns a node id to image URL map. Nodes Figma
// could not render map to "".
func (c *Client) Images(ctx context.Context, token, fileKey string, nodeIDs []string, opts ImageOptions) (map[string]string, error) {
	if len(nodeIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one node id is required", ErrInvalidRequest)
	}
	if opts.Scale == 0 {
		opts.Scale = 1
	}
	if opts.Scale < 0.01 || opts.Scale > 4 {
		return nil, fmt.Errorf("%w: scale must be between 0.01 and 4", ErrInvalidRequest)
	}
	if opts.Format == "" {
		opts.Format = "png"
	}
	if !imageFormats[opts.Format] {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidRequest, opts.Format)
	}

	var out struct {
		Err    *string            `json:"err"`
		Images map[string]*string `json:"images"`
	}
	var apiErr apiError
	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("X-Figma-Token", token).
		SetPathParam("key", fileKey).
		SetQueryParams(map[string]string{
			"ids":    strings.Join(nodeIDs, ","),
			"scale":  strconv.FormatFloat(opts.Scale, 'f', -1, 64),
			"format": opts.Format,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v1/images/{key}")
	if err != nil {
		return nil, fmt.Errorf("rendering figma nodes: %w", err)
	}
	if err := checkResponse(resp, &apiErr); err != nil {
		return nil, err
	}
	if out.Err != nil && *out.Err != "" {
		return nil, fmt.Errorf("figma: %s", *out.Err)
	}

	images := make(map[string]string, len(out.Images))
	for id, url := range out.Images {
		if url == nil {
			images[id] = ""
			continue
		}
		images[id] = *url
	}
	return images, nil
}

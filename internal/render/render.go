// Package render talks to an external headless-browser rendering service that
// turns a page region into an image. The service is an out-of-process
// collaborator; subwatch only consumes its HTTP API.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"subwatch/pkg/logx"
)

type Renderer interface {
	// RenderPage renders the element matched by selector on the page at url
	// and returns a reference (URL) to the produced image.
	RenderPage(ctx context.Context, url, selector string) (string, error)
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

type Service struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("render: endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}, nil
}

type renderRequest struct {
	URL      string `json:"url"`
	Selector string `json:"selector"`
}

type renderResponse struct {
	ImageURL string `json:"image_url"`
	Error    string `json:"error,omitempty"`
}

func (s *Service) RenderPage(ctx context.Context, url, selector string) (string, error) {
	body, err := json.Marshal(renderRequest{URL: url, Selector: selector})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("render %s: service returned %s", url, resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var out renderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("render %s: bad response: %w", url, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("render %s: %s", url, out.Error)
	}
	if out.ImageURL == "" {
		return "", fmt.Errorf("render %s: service returned no image", url)
	}
	return out.ImageURL, nil
}

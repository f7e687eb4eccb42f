package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cartographer/internal/api"
	"cartographer/internal/consumer"
)

// requestTimeout bounds every call except streaming and uploads.
const requestTimeout = 30 * time.Second

// ErrDaemonNotRunning indicates nothing answers on the configured address.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Client talks to a running daemon's HTTP API.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	stream *consumer.Client
}

// NewClient targets the daemon at bind ("127.0.0.1:7488" or a full URL).
func NewClient(bind, token string) (*Client, error) {
	base, err := consumer.ParseAddress(bind)
	if err != nil {
		return nil, err
	}
	stream, err := consumer.NewClient(base.String(), token)
	if err != nil {
		return nil, err
	}
	return &Client{
		base:   base,
		token:  strings.TrimSpace(token),
		http:   &http.Client{},
		stream: stream,
	}, nil
}

// BaseURL reports the daemon address the client targets.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Health fetches daemon readiness. ErrDaemonNotRunning is returned when the
// connection is refused.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload sends local files for parsing and caching. Per-file failures are
// reported in the response, not as an error.
func (c *Client) Upload(ctx context.Context, paths ...string) (api.FileParseResponse, error) {
	var resp api.FileParseResponse
	if len(paths) == 0 {
		return resp, errors.New("no files to upload")
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, path := range paths {
		if err := addFilePart(writer, path); err != nil {
			return resp, err
		}
	}
	if err := writer.Close(); err != nil {
		return resp, fmt.Errorf("encode upload: %w", err)
	}
	header := http.Header{"Content-Type": []string{writer.FormDataContentType()}}
	err := c.send(ctx, http.MethodPost, "/api/v1/files/parse", header, &body, &resp)
	return resp, err
}

func addFilePart(writer *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// Files lists the live cached artifacts.
func (c *Client) Files(ctx context.Context) ([]api.FileInfo, error) {
	var resp api.FileListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/files", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// DeleteFile removes a cached artifact.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	var resp api.DeleteResponse
	return c.do(ctx, http.MethodDelete, "/api/v1/files/"+url.PathEscape(id), nil, nil, &resp)
}

// Pairs runs language detection and translation pairing over cached files.
func (c *Client) Pairs(ctx context.Context, ids []string) (*api.PairResponse, error) {
	var resp api.PairResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/analysis/pairs", nil, api.PairRequest{FileIDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Estimate requests a token and cost quote.
func (c *Client) Estimate(ctx context.Context, req api.EstimateRequest) (*api.EstimateResponse, error) {
	var resp api.EstimateResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/estimate", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Jobs lists recorded jobs, newest first. A limit of zero uses the daemon's
// default.
func (c *Client) Jobs(ctx context.Context, limit int, states ...string) ([]api.Job, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	for _, state := range states {
		query.Add("state", state)
	}
	var resp api.JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Job fetches one job with its category results.
func (c *Client) Job(ctx context.Context, id string) (*api.Job, error) {
	var resp api.JobResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// Stream submits an extraction job and folds its events into m.
func (c *Client) Stream(ctx context.Context, req api.ExtractionRequest, m *consumer.Machine, onView func(consumer.View)) (consumer.View, error) {
	return c.stream.Stream(ctx, req, m, onView)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, target any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	var body io.Reader
	header := http.Header{}
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
		header.Set("Content-Type", "application/json")
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.send(ctx, method, path, header, body, target)
}

func (c *Client) send(ctx context.Context, method, path string, header http.Header, body io.Reader, target any) error {
	endpoint, err := c.base.Parse(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	for key, values := range header {
		req.Header[key] = values
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isDaemonUnavailable(err) {
			return fmt.Errorf("%w at %s", ErrDaemonNotRunning, c.base.Host)
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return consumer.DecodeError(resp)
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func isDaemonUnavailable(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}

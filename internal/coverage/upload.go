package coverage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Report identifies a coverage artifact to upload alongside its run metadata.
type Report struct {
	RunID         string
	PythonVersion string
	Path          string
}

// Client uploads coverage reports to the reporting endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option configures the upload client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (used in tests).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient builds an upload client for the given endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	client := &Client{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.endpoint != ""
}

// Upload posts the report file and its run metadata as a multipart form.
// A non-2xx response is an error; the response body tail is included to aid
// debugging endpoint rejections.
func (c *Client) Upload(ctx context.Context, report Report) error {
	if !c.Enabled() {
		return fmt.Errorf("coverage endpoint not configured")
	}
	if strings.TrimSpace(report.Path) == "" {
		return fmt.Errorf("coverage report path is empty")
	}
	file, err := os.Open(report.Path)
	if err != nil {
		return fmt.Errorf("open coverage report: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("run_id", report.RunID); err != nil {
		return fmt.Errorf("encode upload form: %w", err)
	}
	if err := writer.WriteField("python_version", report.PythonVersion); err != nil {
		return fmt.Errorf("encode upload form: %w", err)
	}
	part, err := writer.CreateFormFile("report", filepath.Base(report.Path))
	if err != nil {
		return fmt.Errorf("encode upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("read coverage report: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("encode upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload coverage report: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("coverage endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// ABOUTME: HTTP client for the file store REST API
// ABOUTME: Stateless calls that take the bearer credential explicitly and classify failures

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AsafNachman/file-management-system/internal/errs"
	"github.com/google/uuid"
)

const userAgent = "filemgr"

// Client is the API client for the file store backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithTimeout overrides the default per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a new API client with the given base URL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FileRecord is one stored file as reported by GET /files
type FileRecord struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadDate  time.Time `json:"uploadDate"`
	OwnerID     string    `json:"userId"`
	OwnerEmail  string    `json:"userEmail,omitempty"`
}

// ErrorResponse covers the error body shapes the backend may return
type ErrorResponse struct {
	Detail  json.RawMessage `json:"detail,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Text returns the most specific message in the body
func (e ErrorResponse) Text() string {
	if len(e.Detail) > 0 {
		var s string
		if err := json.Unmarshal(e.Detail, &s); err == nil {
			return s
		}
		// Validation failures carry a list of {loc, msg}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(e.Detail, &items); err == nil && len(items) > 0 {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				msgs = append(msgs, it.Msg)
			}
			return strings.Join(msgs, "; ")
		}
	}
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// List calls GET /files with the given query
func (c *Client) List(ctx context.Context, query url.Values, credential string) ([]FileRecord, error) {
	endpoint := c.baseURL + "/files"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil, credential)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, "list", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse("list", resp)
	}

	var files []FileRecord
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, errs.Wrap(errs.KindServer, "list", fmt.Errorf("invalid response from backend: %w", err))
	}
	if files == nil {
		files = []FileRecord{}
	}

	return files, nil
}

// Remove calls DELETE /files/{id}
func (c *Client) Remove(ctx context.Context, id, credential string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.fileURL(id), nil, credential)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, "remove", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusAccepted:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	default:
		return c.handleErrorResponse("remove", resp)
	}
}

// Payload is a downloaded file stream. Callers must close Body.
type Payload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// Download calls GET /files/{id}/download and returns the open stream
func (c *Client) Download(ctx context.Context, id, credential string) (*Payload, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.fileURL(id)+"/download", nil, credential)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, "download", req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.handleErrorResponse("download", resp)
	}

	return &Payload{
		Filename:    filenameFromDisposition(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}

func (c *Client) fileURL(id string) string {
	return c.baseURL + "/files/" + url.PathEscape(id)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader, credential string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

func (c *Client) do(ctx context.Context, op string, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			"op", op, "method", req.Method, "path", req.URL.Path,
			"request_id", req.Header.Get("X-Request-ID"), "error", err)
		return nil, c.handleRequestError(ctx, op, err)
	}
	c.logger.Debug("request completed",
		"op", op, "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"), "duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// handleRequestError converts transport and context errors to user-friendly messages
func (c *Client) handleRequestError(ctx context.Context, op string, err error) error {
	if ctx.Err() == context.Canceled {
		return &errs.Error{Kind: errs.KindNetwork, Op: op, Message: "request canceled", Err: ctx.Err()}
	}
	if ctx.Err() == context.DeadlineExceeded {
		return &errs.Error{Kind: errs.KindNetwork, Op: op, Message: "request timed out", Err: ctx.Err()}
	}
	return errs.Wrap(errs.KindNetwork, op, fmt.Errorf("cannot connect to backend at %s: %w", c.baseURL, err))
}

// handleErrorResponse parses API error responses and classifies them by status
func (c *Client) handleErrorResponse(op string, resp *http.Response) error {
	e := &errs.Error{Kind: kindForStatus(op, resp.StatusCode), Op: op, Status: resp.StatusCode}

	var errResp ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&errResp); err == nil {
		e.Message = errResp.Text()
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("backend returned status %d", resp.StatusCode)
	}
	return e
}

func kindForStatus(op string, status int) errs.Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.KindAuth
	case http.StatusNotFound:
		return errs.KindNotFound
	}
	if op == "upload" {
		switch status {
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge,
			http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
			return errs.KindValidation
		}
	}
	return errs.KindServer
}

// filenameFromDisposition extracts the filename parameter of a Content-Disposition header
func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

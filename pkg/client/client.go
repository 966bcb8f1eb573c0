// Package client submits pipeline snapshots to a dagflow server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aescanero/dagflow/pkg/domain"
)

// DefaultServer is the backend URL used when none is configured
const DefaultServer = "http://localhost:8000"

// DefaultTimeout bounds a single request
const DefaultTimeout = 10 * time.Second

// ValidatePath is the route the editor frontend posts snapshots to
const ValidatePath = "/pipelines/parse"

// Client communicates with a dagflow server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for baseURL. A non-positive timeout uses DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultServer
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// TransportError reports that the backend could not be reached or did not
// answer with a usable response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a structured rejection returned by the server
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Validate submits a snapshot and returns the server's verdict. A cyclic
// pipeline is a successful result with IsDAG false, not an error.
func (c *Client) Validate(ctx context.Context, p *domain.Pipeline) (*domain.ValidationResult, error) {
	if p == nil {
		return nil, domain.ErrNilPipeline
	}

	var result domain.ValidationResult
	if err := c.do(ctx, http.MethodPost, ValidatePath, p, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// NodeTypes fetches the server's node-type catalog
func (c *Client) NodeTypes(ctx context.Context) ([]domain.NodeSpec, error) {
	var resp struct {
		NodeTypes []domain.NodeSpec `json:"node_types"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/node-types", nil, &resp); err != nil {
		return nil, err
	}
	return resp.NodeTypes, nil
}

// do sends a JSON request and decodes a 2xx JSON response into out
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil && envelope.Error.Code != "" {
			envelope.Error.StatusCode = resp.StatusCode
			return envelope.Error
		}
		return &TransportError{
			Op:  method + " " + path,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: "decode response", Err: err}
	}
	return nil
}

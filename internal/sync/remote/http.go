// Package remote provides the HTTP client for the FieldLog backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds backend connection configuration.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client implements Backend against the FieldLog HTTP API.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// StatusError represents a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Code       string // machine-readable error code from the response body
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend returned %d (%s)", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// errorBody is the backend's JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// assetUnavailableCode is the backend's signal that asset storage is not
// provisioned for this account.
const assetUnavailableCode = "asset_storage_unavailable"

// NewClient creates a new backend Client.
func NewClient(config *Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: false,
			},
		},
	}
}

// Upsert creates or replaces a document by id.
func (c *Client) Upsert(ctx context.Context, collection, id string, doc map[string]interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, c.documentURL(collection, id), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return statusError(resp)
}

// Delete removes a document by id. A 404 means the document is already gone,
// which is success for an idempotent delete.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.documentURL(collection, id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return statusError(resp)
}

// UploadAsset stores an asset descriptor. The backend answers 402, or 403
// with the asset_storage_unavailable code, when the facility is not
// provisioned.
func (c *Client) UploadAsset(ctx context.Context, id string, doc map[string]interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode asset: %w", err)
	}

	u := fmt.Sprintf("%s/v1/assets/%s", strings.TrimRight(c.config.BaseURL, "/"), url.PathEscape(id))
	resp, err := c.do(ctx, http.MethodPost, u, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	serr := statusError(resp)
	if resp.StatusCode == http.StatusPaymentRequired ||
		(resp.StatusCode == http.StatusForbidden && serr.Code == assetUnavailableCode) {
		return ErrAssetFacilityUnavailable
	}
	return serr
}

// documentURL builds the per-collection document URL.
func (c *Client) documentURL(collection, id string) string {
	return fmt.Sprintf("%s/v1/%s/%s",
		strings.TrimRight(c.config.BaseURL, "/"),
		url.PathEscape(collection), url.PathEscape(id))
}

// do performs one authenticated request.
func (c *Client) do(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	return c.httpClient.Do(req)
}

// statusError reads the response body into a StatusError.
func statusError(resp *http.Response) *StatusError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	serr := &StatusError{
		StatusCode: resp.StatusCode,
		Body:       string(data),
	}
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil {
		serr.Code = eb.Error
	}
	return serr
}

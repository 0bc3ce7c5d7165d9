package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

// Client is a Go SDK for the pack-engine API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new pack-engine client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ContentPack represents a pack response
type ContentPack struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Version   string          `json:"version"`
	Content   json.RawMessage `json:"content,omitempty"`
	Status    string          `json:"status"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ValidationIssue is one validation error or warning
type ValidationIssue struct {
	Path       string `json:"path"`
	Message    string `json:"message"`
	Code       string `json:"code"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidationTiming reports validation duration against its budget
type ValidationTiming struct {
	DurationMs int64 `json:"duration_ms"`
	TargetMs   int64 `json:"target_ms"`
	TargetMet  bool  `json:"target_met"`
}

// ValidationResult is the outcome of validating a pack
type ValidationResult struct {
	IsValid     bool              `json:"is_valid"`
	Errors      []ValidationIssue `json:"errors"`
	Warnings    []ValidationIssue `json:"warnings"`
	Performance ValidationTiming  `json:"performance"`
}

// UploadResult is returned after a pack upload
type UploadResult struct {
	Valid       bool              `json:"valid"`
	PackID      string            `json:"pack_id,omitempty"`
	Name        string            `json:"name,omitempty"`
	Version     string            `json:"version,omitempty"`
	Warnings    []ValidationIssue `json:"warnings,omitempty"`
	Performance ValidationTiming  `json:"performance"`
}

// PackList is the response of the list endpoint
type PackList struct {
	ActiveID string         `json:"active_id"`
	Packs    []*ContentPack `json:"packs"`
	Total    int            `json:"total"`
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is returned when the server responds with an error envelope
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("pack-engine api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// UploadPack uploads a raw JSON pack document for validation and storage
func (c *Client) UploadPack(ctx context.Context, filename string, document []byte) (*UploadResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", "application/json")

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := part.Write(document); err != nil {
		return nil, fmt.Errorf("failed to write pack document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/content/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var result UploadResult
	if err := c.send(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPack retrieves a stored pack by ID
func (c *Client) GetPack(ctx context.Context, id string) (*ContentPack, error) {
	var pack ContentPack
	if err := c.do(ctx, http.MethodGet, "/api/v1/content-packs/"+id, nil, &pack); err != nil {
		return nil, err
	}
	return &pack, nil
}

// ValidatePack re-runs validation on a stored pack
func (c *Client) ValidatePack(ctx context.Context, id string) (*ValidationResult, error) {
	var result ValidationResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/content-packs/"+id+"/validate", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ActivatePack promotes a valid pack to the single active pack. requestID
// deduplicates retries and may be empty.
func (c *Client) ActivatePack(ctx context.Context, packID, requestID string) (*ContentPack, error) {
	body := map[string]string{"pack_id": packID}
	if requestID != "" {
		body["request_id"] = requestID
	}

	var pack ContentPack
	if err := c.do(ctx, http.MethodPost, "/api/v1/content/activate", body, &pack); err != nil {
		return nil, err
	}
	return &pack, nil
}

// RollbackPack restores a previous pack and activates it
func (c *Client) RollbackPack(ctx context.Context, backupID, requestID string) (*ContentPack, error) {
	body := map[string]string{"backup_id": backupID}
	if requestID != "" {
		body["request_id"] = requestID
	}

	var pack ContentPack
	if err := c.do(ctx, http.MethodPost, "/api/v1/content/rollback", body, &pack); err != nil {
		return nil, err
	}
	return &pack, nil
}

// ListPacks lists stored packs along with the active pack id
func (c *Client) ListPacks(ctx context.Context) (*PackList, error) {
	var list PackList
	if err := c.do(ctx, http.MethodGet, "/api/v1/content/list", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// do sends a JSON request and decodes the data envelope into out
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.send(req, out)
}

// send executes a request and unwraps the API envelope
func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !envelope.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "unknown", Message: "request failed"}
		if envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}

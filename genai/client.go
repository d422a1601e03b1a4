// Package genai wraps the remote text-generation collaborator behind
// a one-method client interface. The workflow's respond stage treats
// generation as strictly optional: any GenerationError makes it fall
// back to its template table, so failures here never surface past the
// stage boundary.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client produces a short reply for a prompt.
type Client interface {
	// Generate returns the generated text. It fails with a
	// *GenerationError on transport failure, a non-2xx status, or an
	// empty candidate list.
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerationError reports a failed generation call.
type GenerationError struct {
	// Status is the HTTP status code, 0 on transport failure.
	Status int
	// Reason describes the failure when no underlying error exists.
	Reason string
	// Err is the underlying transport or decoding error, if any.
	Err error
}

func (e *GenerationError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("generation failed: %v", e.Err)
	case e.Status != 0:
		return fmt.Sprintf("generation failed: status %d", e.Status)
	default:
		return fmt.Sprintf("generation failed: %s", e.Reason)
	}
}

func (e *GenerationError) Unwrap() error { return e.Err }

const (
	// DefaultBaseURL is the generative language API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-2.0-flash"
	// DefaultTimeout bounds one generation call end to end.
	DefaultTimeout = 30 * time.Second
)

// HTTPClient calls a generateContent-style REST endpoint.
type HTTPClient struct {
	baseURL string
	model   string
	apiKey  string
	httpc   *http.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) HTTPOption {
	return func(c *HTTPClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel selects the model.
func WithModel(model string) HTTPOption {
	return func(c *HTTPClient) {
		c.model = model
	}
}

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		c.httpc.Timeout = d
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(httpc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.httpc = httpc
	}
}

// NewHTTPClient creates a REST generation client.
func NewHTTPClient(apiKey string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request and response shapes of the generateContent API, reduced to
// the fields this client reads and writes.

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate implements Client.
func (c *HTTPClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.7,
			MaxOutputTokens: 150,
		},
	})
	if err != nil {
		return "", &GenerationError{Err: err}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &GenerationError{Status: resp.StatusCode}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &GenerationError{Err: err}
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", &GenerationError{Reason: "empty candidates"}
	}
	text := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", &GenerationError{Reason: "empty candidate text"}
	}
	return text, nil
}

// StubClient returns a fixed response (or error) for every prompt.
// It exists for tests and offline demos.
type StubClient struct {
	Response string
	Err      error
	// Prompts records every prompt seen, in order.
	Prompts []string
}

// Generate implements Client.
func (c *StubClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.Prompts = append(c.Prompts, prompt)
	if c.Err != nil {
		return "", c.Err
	}
	return c.Response, nil
}

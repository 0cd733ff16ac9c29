// ABOUTME: HTTP client for the translation and dubbing backend
// ABOUTME: Implements session, chunk, video upload, render and health endpoints
package dubbing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is used when no base URL is configured
	DefaultBaseURL = "http://localhost:8000"

	// ChunkFilename is the multipart file name of each audio clip
	ChunkFilename = "chunk.wav"
	// VideoFilename is the multipart file name of the session recording
	VideoFilename = "session.webm"
)

// Config contains dubbing client configuration
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// Client talks to the dubbing backend. Requests are never retried.
type Client struct {
	baseURL    *url.URL
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a client for the configured backend
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", config.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", config.BaseURL)
	}

	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:    base,
		userAgent:  config.UserAgent,
		httpClient: httpClient,
	}, nil
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ResolveURL turns a server-relative path into an absolute URL.
// Empty input yields an empty string.
func (c *Client) ResolveURL(ref string) string {
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.BaseURL() + ref
}

// StartSession asks the backend for a new session identifier
func (c *Client) StartSession(ctx context.Context) (*StartResponse, error) {
	var resp StartResponse
	if err := c.do(ctx, "start session", http.MethodPost, "/api/session/start", nil, "", &resp); err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("start session: backend returned an empty session_id")
	}
	return &resp, nil
}

// StopSession ends the session on the backend
func (c *Client) StopSession(ctx context.Context, sessionID string) error {
	body, contentType := formBody(map[string]string{"session_id": sessionID})
	var resp StopResponse
	return c.do(ctx, "stop session", http.MethodPost, "/api/session/stop", body, contentType, &resp)
}

// SendChunk submits one audio clip for transcription, translation and dubbing
func (c *Client) SendChunk(ctx context.Context, req ChunkRequest) (*ChunkResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("audio", ChunkFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(req.Clip.Data); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := []struct{ key, value string }{
		{"client_ts", strconv.FormatInt(req.ClientTS, 10)},
		{"source_lang", req.SourceLang},
		{"target_lang", req.TargetLang},
		{"session_id", req.SessionID},
	}
	for _, f := range fields {
		if err := writer.WriteField(f.key, f.value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", f.key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	var resp ChunkResponse
	if err := c.do(ctx, "chunk", http.MethodPost, "/api/chunk", &buf, writer.FormDataContentType(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadVideo streams the recording at path to the backend
func (c *Client) UploadVideo(ctx context.Context, sessionID, path string) (*UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	filename := VideoFilename
	if ext := filepath.Ext(path); ext != "" && ext != filepath.Ext(VideoFilename) {
		filename = strings.TrimSuffix(VideoFilename, filepath.Ext(VideoFilename)) + ext
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			if err := writer.WriteField("session_id", sessionID); err != nil {
				return err
			}
			part, err := writer.CreateFormFile("video", filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, f); err != nil {
				return err
			}
			return writer.Close()
		}()
		pw.CloseWithError(err)
	}()

	var resp UploadResponse
	if err := c.do(ctx, "video upload", http.MethodPost, "/api/video/upload", pr, writer.FormDataContentType(), &resp); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return &resp, nil
}

// RenderVideo asks the backend to merge dubbed audio into the uploaded video
func (c *Client) RenderVideo(ctx context.Context, sessionID string, burnSubs bool) (*RenderResponse, error) {
	burn := "0"
	if burnSubs {
		burn = "1"
	}
	body, contentType := formBody(map[string]string{
		"session_id": sessionID,
		"burn_subs":  burn,
	})

	var resp RenderResponse
	if err := c.do(ctx, "render", http.MethodPost, "/api/video/render", body, contentType, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TranslateHealth queries translation provider diagnostics for a language pair
func (c *Client) TranslateHealth(ctx context.Context, src, tgt string) (TranslateHealth, error) {
	q := url.Values{}
	q.Set("src", src)
	q.Set("tgt", tgt)

	var resp TranslateHealth
	if err := c.do(ctx, "translate health", http.MethodGet, "/api/health/translate?"+q.Encode(), nil, "", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// do performs one request and decodes a JSON response into out
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+path, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create HTTP request: %w", op, err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: HTTP request failed: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(op, resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: failed to parse response JSON: %w", op, err)
	}
	return nil
}

// formBody encodes fields as multipart/form-data, which the backend expects
// for its Form parameters
func formBody(fields map[string]string) (io.Reader, string) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		// Writes to a bytes.Buffer cannot fail
		_ = writer.WriteField(k, v)
	}
	_ = writer.Close()
	return &buf, writer.FormDataContentType()
}

// Package client talks to the perception and chat backend over its HTTP contract.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"golang.org/x/time/rate"

	"github.com/alejor21/trabajo-final-IA/internal/compliance"
	"github.com/alejor21/trabajo-final-IA/internal/models"
)

// Client issues exactly one outbound request per call. It neither caches nor retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit paces outbound requests to rps per second. Zero disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// ImageURL builds the retrieval URL of a processed image. The reference is opaque.
func (c *Client) ImageURL(ref string) string {
	return fmt.Sprintf("%s/api/image/%s", c.baseURL, ref)
}

// VideoURL builds the retrieval URL of a processed video. The reference is opaque.
func (c *Client) VideoURL(ref string) string {
	return fmt.Sprintf("%s/api/video/%s", c.baseURL, ref)
}

// SubmitImage uploads an image to POST /api/detect/image.
func (c *Client) SubmitImage(ctx context.Context, asset *models.MediaAsset) (*models.DetectionResult, error) {
	var resp imageResponse
	if err := c.upload(ctx, OpDetectImage, "/api/detect/image", asset, &resp); err != nil {
		return nil, err
	}

	result := &models.DetectionResult{
		Items:             toItems(resp.Detections),
		Compliance:        compliance.Derive(compliance.Payload{Section: resp.Compliance}),
		ProcessedMediaRef: resp.ProcessedImagePath,
	}
	if result.ProcessedMediaRef != "" {
		result.ProcessedMediaURL = c.ImageURL(result.ProcessedMediaRef)
	}
	return result, nil
}

// SubmitVideo uploads a video to POST /api/detect/video for full analysis.
func (c *Client) SubmitVideo(ctx context.Context, asset *models.MediaAsset) (*models.VideoAnalysis, error) {
	var resp videoResponse
	if err := c.upload(ctx, OpDetectVideo, "/api/detect/video", asset, &resp); err != nil {
		return nil, err
	}

	stats := resp.Stats
	if stats == nil {
		stats = &videoStats{}
	}

	analysis := &models.VideoAnalysis{
		Stats: models.VideoStats{
			TotalFrames:      toCount(stats.TotalFrames),
			ProcessedFrames:  toCount(stats.ProcessedFrames),
			AvgDetections:    stats.AvgDetections,
			TotalPersons:     toCount(stats.TotalPersons),
			CompliantPersons: toCount(stats.CompliantPersons),
		},
		Result: models.DetectionResult{
			Items: toItems(stats.Detections),
			Compliance: compliance.Derive(compliance.Payload{
				Section: stats.Compliance,
				Items:   stats.MissingItems,
			}),
			ProcessedMediaRef: resp.ProcessedVideoPath,
		},
	}
	if analysis.Result.ProcessedMediaRef != "" {
		analysis.Result.ProcessedMediaURL = c.VideoURL(analysis.Result.ProcessedMediaRef)
	}
	return analysis, nil
}

// SendChat posts a message to the chatbot and returns its answer, which may be empty.
func (c *Client) SendChat(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}

	body, err := json.Marshal(chatRequest{Message: text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	var resp chatResponse
	if err := c.do(ctx, OpChatbot, http.MethodPost, "/api/chatbot", "application/json", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Health queries GET /api/health.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, OpHealth, http.MethodGet, "/api/health", "", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// FetchProcessedImage streams a processed image into w.
func (c *Client) FetchProcessedImage(ctx context.Context, ref string, w io.Writer) (int64, error) {
	return c.fetch(ctx, OpFetchImage, c.ImageURL(ref), w)
}

// FetchProcessedVideo streams a processed video into w.
func (c *Client) FetchProcessedVideo(ctx context.Context, ref string, w io.Writer) (int64, error) {
	return c.fetch(ctx, OpFetchVideo, c.VideoURL(ref), w)
}

func (c *Client) upload(ctx context.Context, op, path string, asset *models.MediaAsset, out any) error {
	if asset == nil || asset.Path == "" {
		return ErrEmptyInput
	}

	file, err := asset.Open()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", uploadName(asset))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	err = c.do(ctx, op, http.MethodPost, path, writer.FormDataContentType(), pr, out)
	pr.Close()
	return err
}

func uploadName(asset *models.MediaAsset) string {
	if asset.Name != "" {
		return filepath.Base(asset.Name)
	}
	return filepath.Base(asset.Path)
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out any) error {
	if err := c.wait(ctx, op); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithField("op", op).WithError(err).Warn("backend request failed")
		return requestFailed(op, 0, err)
	}
	defer resp.Body.Close()

	logger := log.WithFields(log.Fields{
		"op":       op,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		logger.Warn("backend returned non-success status")
		return requestFailed(op, resp.StatusCode, nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logger.WithError(err).Warn("failed to decode backend response")
		return requestFailed(op, 0, fmt.Errorf("decoding response: %w", err))
	}

	logger.Debug("backend request completed")
	return nil
}

func (c *Client) fetch(ctx context.Context, op, url string, w io.Writer) (int64, error) {
	if err := c.wait(ctx, op); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, requestFailed(op, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, requestFailed(op, resp.StatusCode, nil)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, requestFailed(op, 0, fmt.Errorf("reading body: %w", err))
	}
	return n, nil
}

func (c *Client) wait(ctx context.Context, op string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return requestFailed(op, 0, err)
	}
	return nil
}

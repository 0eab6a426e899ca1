package kobo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "kobomedia/pkg/errors"
	"kobomedia/pkg/logger"
	"kobomedia/pkg/retry"
)

// DefaultChunkSize is used when Download is given a non-positive chunk size
const DefaultChunkSize = 1024

// Client talks to the KoboToolbox API with token authentication
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates a new API client. Every request carries
// "Authorization: Token <token>".
func NewClient(token string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": "kobomedia",
	}
	if token != "" {
		headers["Authorization"] = "Token " + token
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		logger:     log,
	}
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// SetRetry enables retries of page fetches that fail before a response
// arrives. HTTP error statuses are never retried.
func (c *Client) SetRetry(cfg *retry.Config) {
	if cfg == nil {
		c.retry = nil
		return
	}
	withPredicate := *cfg
	withPredicate.RetryIf = isTransportError
	c.retry = &withPredicate
}

func isTransportError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errs.IsType(err, errs.ErrorTypeNetwork)
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, duration)
	return resp, nil
}

// Get performs a GET request to the specified URL
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	return c.doRequest(req)
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	return nil
}

// checkResponseStatus turns anything but 200 into a typed error
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	errType := errs.TypeForStatus(resp.StatusCode)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	}

	switch errType {
	case errs.ErrorTypeAuth:
		c.logger.WarnWithFields("authentication failed, run `kobomedia auth login` to store a new token", fields)
		return errs.New(errType, resp.StatusCode, "authentication failed: token invalid or expired")
	case errs.ErrorTypeNotFound:
		return errs.New(errType, resp.StatusCode, "resource not found")
	case errs.ErrorTypeRateLimit:
		c.logger.WarnWithFields("rate limit exceeded", fields)
		return errs.New(errType, resp.StatusCode, "rate limit exceeded")
	case errs.ErrorTypeServerError:
		return errs.New(errType, resp.StatusCode, "server error")
	default:
		return errs.New(errType, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	}
}

// FetchPage fetches one page of the data listing
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	fetch := func(ctx context.Context) (*Page, error) {
		var page Page
		if err := c.GetJSON(ctx, pageURL, &page); err != nil {
			return nil, err
		}
		return &page, nil
	}

	if c.retry == nil || c.retry.MaxAttempts <= 1 {
		return fetch(ctx)
	}
	return retry.DoWithResult(ctx, c.retry, fetch)
}

// Verify checks that the token is accepted by the server at kfURL and
// returns the number of assets the account can see
func (c *Client) Verify(ctx context.Context, kfURL string) (int, error) {
	var listing struct {
		Count int `json:"count"`
	}
	if err := c.GetJSON(ctx, AssetsURL(kfURL), &listing); err != nil {
		return 0, err
	}
	return listing.Count, nil
}

// Download streams url into w in chunks of chunkSize bytes and returns the
// number of bytes written. Nothing is written unless the server answers 200.
func (c *Client) Download(ctx context.Context, url string, w io.Writer, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	resp, err := c.Get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return 0, err
	}

	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			m, writeErr := w.Write(buf[:n])
			written += int64(m)
			if writeErr != nil {
				return written, fmt.Errorf("failed to write download: %w", writeErr)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return written, ctxErr
			}
			return written, errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "download interrupted: %v", readErr)
		}
	}
}

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

	"github.com/hashicorp/go-cleanhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
	"github.com/geekwala/security-scan-action/pkg/retry"
)

const (
	// MaxContentSize is the largest dependency file accepted by the API.
	MaxContentSize = 500 * 1024

	ScanPath         = "/api/v1/vulnerability-scan/run"
	DefaultUserAgent = "geekwala-scan"

	maxResponseSize = 32 << 20
)

// Client submits dependency files to the GeekWala vulnerability scan API.
type Client interface {
	RunScan(ctx context.Context, fileName, content string) (geekwala.Response, error)
}

type Config struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	RetryAttempts int
	UserAgent     string
}

type Option func(*client)

// WithHTTPClient overrides the HTTP client. Its timeout is replaced by Config.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.http = hc
	}
}

// WithRetryPolicy overrides the retry policy. MaxAttempts is taken from Config.RetryAttempts.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *client) {
		c.policy = p
	}
}

// WithRetryHook registers a callback invoked before each retry wait.
func WithRetryHook(hook func(attempt int, err error, delay time.Duration)) Option {
	return func(c *client) {
		c.hooks = append(c.hooks, hook)
	}
}

type client struct {
	cfg    Config
	http   *http.Client
	policy retry.Policy
	hooks  []func(attempt int, err error, delay time.Duration)
}

func New(cfg Config, opts ...Option) Client {
	c := &client{
		cfg:  cfg,
		http: cleanhttp.DefaultClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.UserAgent == "" {
		c.cfg.UserAgent = DefaultUserAgent
	}
	c.http.Timeout = cfg.Timeout
	c.policy.MaxAttempts = cfg.RetryAttempts
	c.policy.OnRetry = c.onRetry
	return c
}

func (c *client) RunScan(ctx context.Context, fileName, content string) (geekwala.Response, error) {
	if size := len(content); size > MaxContentSize {
		return geekwala.Response{}, &APIError{
			Type:    FileSizeError,
			Message: fmt.Sprintf("File size (%.2fKB) exceeds maximum allowed size (%dKB)", float64(size)/1024, MaxContentSize/1024),
		}
	}

	body, err := json.Marshal(geekwala.ScanRequest{FileName: fileName, Content: content})
	if err != nil {
		return geekwala.Response{}, xerrors.Errorf("marshalling scan request: %w", err)
	}

	log.WithFields(log.Fields{
		"file_name": fileName,
		"size":      len(content),
		"base_url":  c.cfg.BaseURL,
	}).Debug("Submitting scan request")

	return retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) (geekwala.Response, error) {
		return c.post(ctx, attempt, body)
	})
}

func (c *client) post(ctx context.Context, attempt int, body []byte) (geekwala.Response, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + ScanPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return geekwala.Response{}, xerrors.Errorf("creating scan request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	started := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return geekwala.Response{}, ClassifyTransport(err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return geekwala.Response{}, ClassifyTransport(err)
	}

	log.WithFields(log.Fields{
		"attempt":  attempt,
		"status":   res.StatusCode,
		"duration": time.Since(started).String(),
	}).Debug("Received scan response")

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return geekwala.Response{}, ClassifyStatus(res.StatusCode, res.Header, raw)
	}
	return Validate(raw)
}

func (c *client) onRetry(attempt int, err error, delay time.Duration) {
	log.WithFields(log.Fields{
		"attempt":      attempt,
		"max_attempts": c.cfg.RetryAttempts,
		"delay":        delay.String(),
	}).Warnf("Scan request failed, retrying: %v", err)
	for _, hook := range c.hooks {
		hook(attempt, err, delay)
	}
}

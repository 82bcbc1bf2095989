package jobapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yungbote/studygen/internal/domain/jobs"
	"github.com/yungbote/studygen/internal/pkg/httpx"
	"github.com/yungbote/studygen/internal/platform/apierr"
	"github.com/yungbote/studygen/internal/platform/ctxutil"
	"github.com/yungbote/studygen/internal/platform/logger"
)

const defaultTimeout = 15 * time.Second

// CreateJobRequest is the body of POST /api/jobs.
type CreateJobRequest struct {
	Type       jobs.JobType    `json:"type"`
	SourceKind jobs.SourceKind `json:"source_kind"`
	SourceName string          `json:"source_name"`
	Options    map[string]any  `json:"options,omitempty"`
}

type jobEnvelope struct {
	Job *jobs.Job `json:"job"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Client talks to the generation API's job endpoints.
type Client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default otelhttp-instrumented client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func New(log *logger.Logger, baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("jobapi: missing base URL")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("jobapi: invalid base URL %q: %w", baseURL, err)
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		log:     log.With("client", "JobAPI"),
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("jobapi: missing job id")
	}
	var out jobEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	if out.Job == nil {
		return nil, fmt.Errorf("jobapi: response for job %s has no job", id)
	}
	return out.Job, nil
}

// CancelJob asks the API to stop a job. Finished jobs come back as a 409 apierr.Error.
func (c *Client) CancelJob(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("jobapi: missing job id")
	}
	return c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, nil)
}

func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (*jobs.Job, error) {
	var out jobEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &out); err != nil {
		return nil, err
	}
	if out.Job == nil {
		return nil, fmt.Errorf("jobapi: create response has no job")
	}
	return out.Job, nil
}

// IsTransient reports whether a failed call is worth repeating later.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return httpx.IsRetryableError(err)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx = ctxutil.Default(ctx)

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("jobapi: encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if td := ctxutil.GetTraceData(ctx); td != nil && td.RequestID != "" {
		req.Header.Set("X-Request-ID", td.RequestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jobapi: %s %s: %w", method, path, err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("jobapi: read %s %s: %w", method, path, readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debug("Job API returned an error", "method", method, "path", path, "status", resp.StatusCode)
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("jobapi: decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		return apierr.New(status, env.Error.Code, errors.New(env.Error.Message))
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(status)
	}
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return apierr.New(status, "", errors.New(msg))
}

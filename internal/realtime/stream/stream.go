// Package stream subscribes to a job's push channel on the generation API.
// Subscribers reconnect until their context ends and never surface transport
// errors to the caller; the poll loop covers any gap.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/studygen/internal/pkg/httpx"
	"github.com/yungbote/studygen/internal/platform/logger"
	"github.com/yungbote/studygen/internal/realtime"
)

const (
	defaultMinBackoff = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
	eventBuffer       = 16
)

var errStreamClosed = errors.New("stream closed by server")

type config struct {
	httpClient *http.Client
	minBackoff time.Duration
	maxBackoff time.Duration
}

type Option func(*config)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBackoff bounds the reconnect delay. Zero values keep the defaults.
func WithBackoff(min, max time.Duration) Option {
	return func(c *config) {
		if min > 0 {
			c.minBackoff = min
		}
		if max > 0 {
			c.maxBackoff = max
		}
	}
}

func newConfig(opts []Option) config {
	c := config{
		// no client timeout: the stream is long-lived and bounded by ctx
		httpClient: &http.Client{},
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.maxBackoff < c.minBackoff {
		c.maxBackoff = c.minBackoff
	}
	return c
}

func normalizeBase(raw string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return "", fmt.Errorf("stream: missing base URL")
	}
	return base, nil
}

// connectFunc holds one connection open, handing every decoded message to
// emit. It returns when the connection drops or ctx ends. connected is
// called once the server has accepted the subscription.
type connectFunc func(ctx context.Context, connected func(), emit func(realtime.SSEMessage) bool) error

// run keeps a subscription alive and closes out when ctx is done.
func run(ctx context.Context, log *logger.Logger, cfg config, jobID string, out chan<- realtime.JobEvent, connect connectFunc) {
	defer close(out)
	channel := realtime.JobChannel(jobID)

	emit := func(msg realtime.SSEMessage) bool {
		if msg.Channel != "" && msg.Channel != channel {
			return true
		}
		ev, ok, err := realtime.DecodeJobEvent(msg)
		if err != nil {
			log.Debug("Dropping undecodable event", "event", msg.Event, "error", err)
			return true
		}
		if !ok {
			return true
		}
		if ev.JobID == "" {
			ev.JobID = jobID
		}
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	backoff := cfg.minBackoff
	for {
		err := connect(ctx, func() { backoff = cfg.minBackoff }, emit)
		if ctx.Err() != nil {
			return
		}
		wait := httpx.JitterSleep(backoff)
		log.Debug("Push stream disconnected; reconnecting", "error", err, "retry_in", wait.String())
		if !httpx.Sleep(ctx, wait) {
			return
		}
		backoff = httpx.Backoff(backoff, cfg.minBackoff, cfg.maxBackoff)
	}
}

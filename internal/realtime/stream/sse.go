package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/yungbote/studygen/internal/platform/logger"
	"github.com/yungbote/studygen/internal/realtime"
)

// SSE subscribes through GET /api/sse/stream?channel=job:{id}.
type SSE struct {
	log     *logger.Logger
	baseURL string
	cfg     config
}

func NewSSE(log *logger.Logger, baseURL string, opts ...Option) (*SSE, error) {
	base, err := normalizeBase(baseURL)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SSE{
		log:     log.With("component", "SSESubscriber"),
		baseURL: base,
		cfg:     newConfig(opts),
	}, nil
}

func (s *SSE) Subscribe(ctx context.Context, jobID string) (<-chan realtime.JobEvent, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("stream: missing job id")
	}
	endpoint := s.baseURL + "/api/sse/stream?channel=" + url.QueryEscape(realtime.JobChannel(jobID))
	log := s.log.With("job_id", jobID)
	out := make(chan realtime.JobEvent, eventBuffer)
	go run(ctx, log, s.cfg, jobID, out, func(ctx context.Context, connected func(), emit func(realtime.SSEMessage) bool) error {
		return s.connect(ctx, log, endpoint, connected, emit)
	})
	return out, nil
}

func (s *SSE) connect(ctx context.Context, log *logger.Logger, endpoint string, connected func(), emit func(realtime.SSEMessage) bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.cfg.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("sse subscribe: unexpected status %d", resp.StatusCode)
	}
	connected()
	log.Debug("Push stream connected")

	err = readEvents(resp.Body, func(event, data string) error {
		msg, err := realtime.DecodeMessage([]byte(data))
		if err != nil {
			log.Debug("Dropping malformed frame", "event", event, "error", err)
			return nil
		}
		if !emit(msg) {
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return errStreamClosed
}

// readEvents parses a text/event-stream body, calling onEvent for every
// dispatched event with its data lines joined by "\n". Comments are skipped.
func readEvents(r io.Reader, onEvent func(event, data string) error) error {
	br := bufio.NewReader(r)
	var (
		eventName string
		dataLines []string
	)
	flush := func() error {
		if len(dataLines) == 0 {
			eventName = ""
			return nil
		}
		data := strings.Join(dataLines, "\n")
		ev := eventName
		dataLines = nil
		eventName = ""
		return onEvent(ev, data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// an unterminated trailing event is incomplete; drop it
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			v := strings.TrimPrefix(line, "data:")
			v = strings.TrimPrefix(v, " ")
			dataLines = append(dataLines, v)
		}
	}
}

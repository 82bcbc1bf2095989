package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/yungbote/studygen/internal/platform/logger"
	"github.com/yungbote/studygen/internal/realtime"
)

// WebSocket subscribes through GET /api/ws?channel=job:{id}; the server sends
// one JSON SSEMessage per text frame.
type WebSocket struct {
	log     *logger.Logger
	baseURL string
	dialer  *websocket.Dialer
	cfg     config
}

func NewWebSocket(log *logger.Logger, baseURL string, opts ...Option) (*WebSocket, error) {
	base, err := normalizeBase(baseURL)
	if err != nil {
		return nil, err
	}
	wsBase, err := toWebSocketURL(base)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WebSocket{
		log:     log.With("component", "WSSubscriber"),
		baseURL: wsBase,
		dialer:  websocket.DefaultDialer,
		cfg:     newConfig(opts),
	}, nil
}

func toWebSocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("stream: invalid base URL %q: %w", base, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("stream: unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func (s *WebSocket) Subscribe(ctx context.Context, jobID string) (<-chan realtime.JobEvent, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("stream: missing job id")
	}
	endpoint := s.baseURL + "/api/ws?channel=" + url.QueryEscape(realtime.JobChannel(jobID))
	log := s.log.With("job_id", jobID)
	out := make(chan realtime.JobEvent, eventBuffer)
	go run(ctx, log, s.cfg, jobID, out, func(ctx context.Context, connected func(), emit func(realtime.SSEMessage) bool) error {
		return s.connect(ctx, log, endpoint, connected, emit)
	})
	return out, nil
}

func (s *WebSocket) connect(ctx context.Context, log *logger.Logger, endpoint string, connected func(), emit func(realtime.SSEMessage) bool) error {
	conn, resp, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return fmt.Errorf("ws subscribe: status %d: %w", resp.StatusCode, err)
		}
		return err
	}
	defer conn.Close()
	connected()
	log.Debug("Push stream connected")

	// ReadMessage does not watch ctx; closing the conn unblocks it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errStreamClosed
			}
			return err
		}
		if mt != websocket.TextMessage {
			continue
		}
		msg, err := realtime.DecodeMessage(data)
		if err != nil {
			log.Debug("Dropping malformed frame", "error", err)
			continue
		}
		if !emit(msg) {
			return ctx.Err()
		}
	}
}

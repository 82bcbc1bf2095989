package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studygen/internal/http/response"
	"github.com/yungbote/studygen/internal/platform/logger"
	"github.com/yungbote/studygen/internal/realtime"
)

var errMissingChannel = errors.New("channel query parameter is required")

// RealtimeHandler serves push streams. A stream is scoped to the channels
// named in its query string, e.g. ?channel=job:abc123.
type RealtimeHandler struct {
	Log *logger.Logger
	Hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{
		Log: log.With("handler", "RealtimeHandler"),
		Hub: hub,
	}
}

// GET /api/sse/stream
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	h.serve(c, h.Hub.ServeHTTP)
}

// GET /api/ws
func (h *RealtimeHandler) WebSocket(c *gin.Context) {
	h.serve(c, h.Hub.ServeWS)
}

func (h *RealtimeHandler) serve(c *gin.Context, stream func(http.ResponseWriter, *http.Request, *realtime.SSEClient)) {
	channels := queryChannels(c)
	if len(channels) == 0 {
		response.RespondError(c, http.StatusBadRequest, "missing_channel", errMissingChannel)
		return
	}

	client := h.Hub.NewSSEClient()
	for _, ch := range channels {
		h.Hub.AddChannel(client, ch)
	}
	h.Log.Debug("Stream open", "client_id", client.ID.String(), "channels", channels)

	stream(c.Writer, c.Request, client)

	h.Hub.CloseClient(client)
}

func queryChannels(c *gin.Context) []string {
	var out []string
	seen := map[string]bool{}
	for _, raw := range c.QueryArray("channel") {
		for _, ch := range strings.Split(raw, ",") {
			ch = strings.TrimSpace(ch)
			if ch == "" || seen[ch] {
				continue
			}
			seen[ch] = true
			out = append(out, ch)
		}
	}
	return out
}

package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/studygen/internal/platform/logger"
	"github.com/yungbote/studygen/internal/realtime"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvEvent(t *testing.T, ch <-chan realtime.JobEvent) realtime.JobEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("event channel closed early")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for job event")
	}
	return realtime.JobEvent{}
}

func waitClosed(t *testing.T, ch <-chan realtime.JobEvent) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("event channel not closed after cancel")
		}
	}
}

func waitSubscribers(t *testing.T, hub *realtime.SSEHub, channel string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for hub.Subscribers(channel) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no subscriber on %s", channel)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func hubServer(t *testing.T, hub *realtime.SSEHub) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	serve := func(fn func(http.ResponseWriter, *http.Request, *realtime.SSEClient)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			client := hub.NewSSEClient()
			hub.AddChannel(client, r.URL.Query().Get("channel"))
			defer hub.CloseClient(client)
			fn(w, r, client)
		}
	}
	mux.HandleFunc("/api/sse/stream", serve(hub.ServeHTTP))
	mux.HandleFunc("/api/ws", serve(hub.ServeWS))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestReadEvents(t *testing.T) {
	body := ": connected\r\n\r\n" +
		"event: message\r\ndata: {\"a\":1}\r\n\r\n" +
		": ping\n\n" +
		"data: line1\ndata: line2\n\n" +
		"data: trailing-without-blank-line\n"
	var got []string
	err := readEvents(strings.NewReader(body), func(event, data string) error {
		got = append(got, event+"|"+data)
		return nil
	})
	if err != nil {
		t.Fatalf("readEvents: %v", err)
	}
	want := []string{"message|{\"a\":1}", "|line1\nline2"}
	if len(got) != len(want) {
		t.Fatalf("want %q got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: want %q got %q", i, want[i], got[i])
		}
	}
}

func TestSSESubscriberDeliversJobEvents(t *testing.T) {
	log := mustTestLogger(t)
	hub := realtime.NewSSEHub(log)
	srv := hubServer(t, hub)

	sub, err := NewSSE(log, srv.URL)
	if err != nil {
		t.Fatalf("NewSSE: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := sub.Subscribe(ctx, "abc123")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	channel := realtime.JobChannel("abc123")
	waitSubscribers(t, hub, channel)

	hub.Broadcast(realtime.SSEMessage{Channel: channel, Event: realtime.SSEEventJobCreated, Data: map[string]any{"job_id": "abc123"}})
	hub.Broadcast(realtime.SSEMessage{Channel: channel, Event: realtime.SSEEventJobProgress, Data: map[string]any{"job_id": "abc123", "step": 2, "step_name": "Extracting transcript"}})
	hub.Broadcast(realtime.SSEMessage{Channel: channel, Event: realtime.SSEEventJobDone, Data: map[string]any{"job_id": "abc123", "result_type": "summary", "result_id": "sum-1"}})

	ev := recvEvent(t, events)
	if ev.Kind != realtime.JobEventStatus || ev.Step == nil || *ev.Step != 2 || ev.StepName != "Extracting transcript" {
		t.Fatalf("first event: %+v", ev)
	}
	ev = recvEvent(t, events)
	if ev.Kind != realtime.JobEventCompleted || ev.ResultID != "sum-1" || ev.ResultType != "summary" {
		t.Fatalf("second event: %+v", ev)
	}

	cancel()
	waitClosed(t, events)
}

func TestWebSocketSubscriberDeliversJobEvents(t *testing.T) {
	log := mustTestLogger(t)
	hub := realtime.NewSSEHub(log)
	srv := hubServer(t, hub)

	sub, err := NewWebSocket(log, srv.URL)
	if err != nil {
		t.Fatalf("NewWebSocket: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := sub.Subscribe(ctx, "j9")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	channel := realtime.JobChannel("j9")
	waitSubscribers(t, hub, channel)

	hub.Broadcast(realtime.SSEMessage{Channel: channel, Event: realtime.SSEEventJobFailed, Data: map[string]any{"job_id": "j9", "error_message": "Transcript extraction failed"}})
	ev := recvEvent(t, events)
	if ev.Kind != realtime.JobEventError || ev.ErrorMessage != "Transcript extraction failed" || ev.JobID != "j9" {
		t.Fatalf("event: %+v", ev)
	}

	cancel()
	waitClosed(t, events)
}

func TestSSESubscriberReconnects(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := conns.Add(1)
		if n == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		// no job_id in the payload: the subscriber fills in the subscribed job
		fmt.Fprintf(w, "event: message\ndata: {\"channel\":\"job:j1\",\"event\":\"JobProgress\",\"data\":{\"step\":%d}}\n\n", n)
	}))
	t.Cleanup(srv.Close)

	sub, err := NewSSE(mustTestLogger(t), srv.URL, WithBackoff(5*time.Millisecond, 20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewSSE: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := sub.Subscribe(ctx, "j1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	first := recvEvent(t, events)
	second := recvEvent(t, events)
	if first.JobID != "j1" || first.Step == nil || second.Step == nil || *second.Step <= *first.Step {
		t.Fatalf("events across reconnects: %+v %+v", first, second)
	}
	if conns.Load() < 3 {
		t.Fatalf("expected a failed attempt plus reconnects, got %d connections", conns.Load())
	}

	cancel()
	waitClosed(t, events)
}

func TestSubscribeIgnoresOtherChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"channel\":\"job:other\",\"event\":\"JobDone\",\"data\":{\"job_id\":\"other\",\"result_id\":\"x\"}}\n\n")
		fmt.Fprint(w, "data: {\"channel\":\"job:mine\",\"event\":\"JobDone\",\"data\":{\"job_id\":\"mine\",\"result_id\":\"y\"}}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	sub, err := NewSSE(nil, srv.URL)
	if err != nil {
		t.Fatalf("NewSSE: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := sub.Subscribe(ctx, "mine")
	ev := recvEvent(t, events)
	if ev.JobID != "mine" || ev.ResultID != "y" {
		t.Fatalf("event: %+v", ev)
	}
}

func TestNewWebSocketSchemes(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":  "ws://localhost:8080",
		"https://api.example.io": "wss://api.example.io",
	}
	for in, want := range cases {
		got, err := toWebSocketURL(in)
		if err != nil || got != want {
			t.Fatalf("%s: want %s got %s (%v)", in, want, got, err)
		}
	}
	if _, err := toWebSocketURL("ftp://x"); err == nil {
		t.Fatalf("ftp should be rejected")
	}
	if _, err := NewSSE(nil, ""); err == nil {
		t.Fatalf("empty base URL should be rejected")
	}
}

package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studygen/internal/data/repos/jobs"
	"github.com/yungbote/studygen/internal/data/repos/testutil"
	"github.com/yungbote/studygen/internal/http/response"
	"github.com/yungbote/studygen/internal/realtime"
	"github.com/yungbote/studygen/internal/services"
)

func newJobRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := testutil.Logger(t)
	repo := jobs.NewJobRepo(testutil.DB(t), log)
	svc := services.NewJobService(log, repo, services.NewJobNotifier(nil), nil)
	h := NewJobHandler(svc)

	r := gin.New()
	r.POST("/api/jobs", h.CreateJob)
	r.GET("/api/jobs/:id", h.GetJob)
	r.POST("/api/jobs/:id/cancel", h.CancelJob)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type jobBody struct {
	Job struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Status string `json:"status"`
	} `json:"job"`
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env response.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope %q: %v", rec.Body.String(), err)
	}
	return env.Error.Code
}

func TestJobHandlerLifecycle(t *testing.T) {
	r := newJobRouter(t)

	rec := doJSON(r, http.MethodPost, "/api/jobs", `{"type":"summary-generation","source_kind":"upload","source_name":"lecture.mp4"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var created jobBody
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if created.Job.ID == "" || created.Job.Status != "pending" {
		t.Fatalf("created: %+v", created.Job)
	}

	rec = doJSON(r, http.MethodGet, "/api/jobs/"+created.Job.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(r, http.MethodPost, "/api/jobs/"+created.Job.ID+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
	var cancelled jobBody
	_ = json.Unmarshal(rec.Body.Bytes(), &cancelled)
	if cancelled.Job.Status != "cancelled" {
		t.Fatalf("cancelled status: %s", cancelled.Job.Status)
	}

	rec = doJSON(r, http.MethodPost, "/api/jobs/"+created.Job.ID+"/cancel", "")
	if rec.Code != http.StatusConflict || decodeErrorCode(t, rec) != "job_finished" {
		t.Fatalf("second cancel: %d %s", rec.Code, rec.Body.String())
	}
}

func TestJobHandlerErrors(t *testing.T) {
	r := newJobRouter(t)
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed body", http.MethodPost, "/api/jobs", `{"type":`, http.StatusBadRequest, "invalid_request"},
		{"unknown type", http.MethodPost, "/api/jobs", `{"type":"essay","source_kind":"upload","source_name":"a"}`, http.StatusBadRequest, "invalid_request"},
		{"bad fail step", http.MethodPost, "/api/jobs", `{"type":"quiz-generation","source_kind":"upload","source_name":"a","options":{"fail_at_step":"two"}}`, http.StatusBadRequest, "invalid_request"},
		{"missing job", http.MethodGet, "/api/jobs/nope", "", http.StatusNotFound, "job_not_found"},
		{"cancel missing job", http.MethodPost, "/api/jobs/nope/cancel", "", http.StatusNotFound, "job_not_found"},
	}
	for _, tc := range cases {
		rec := doJSON(r, tc.method, tc.path, tc.body)
		if rec.Code != tc.status {
			t.Fatalf("%s: status %d, want %d (%s)", tc.name, rec.Code, tc.status, rec.Body.String())
		}
		if got := decodeErrorCode(t, rec); got != tc.code {
			t.Fatalf("%s: code %q, want %q", tc.name, got, tc.code)
		}
	}
}

func TestRealtimeHandlerRequiresChannel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := realtime.NewSSEHub(testutil.Logger(t))
	h := NewRealtimeHandler(testutil.Logger(t), hub)
	r := gin.New()
	r.GET("/api/sse/stream", h.SSEStream)

	rec := doJSON(r, http.MethodGet, "/api/sse/stream?channel=%20", "")
	if rec.Code != http.StatusBadRequest || decodeErrorCode(t, rec) != "missing_channel" {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRealtimeHandlerStreamsChannel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := realtime.NewSSEHub(testutil.Logger(t))
	h := NewRealtimeHandler(testutil.Logger(t), hub)
	r := gin.New()
	r.GET("/api/sse/stream", h.SSEStream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sse/stream?channel=job:abc123", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("job:abc123") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	hub.Broadcast(realtime.SSEMessage{Channel: "job:other", Event: realtime.SSEEventJobProgress, Data: map[string]any{"job_id": "other"}})
	hub.Broadcast(realtime.SSEMessage{Channel: "job:abc123", Event: realtime.SSEEventJobDone, Data: map[string]any{"job_id": "abc123", "result_id": "s1"}})

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		msg, err := realtime.DecodeMessage([]byte(strings.TrimPrefix(line, "data: ")))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Channel != "job:abc123" || msg.Event != realtime.SSEEventJobDone {
			t.Fatalf("unexpected message: %+v", msg)
		}
		return
	}
	t.Fatalf("stream ended without a message: %v", sc.Err())
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, tc := range []struct {
		db     Pinger
		status int
	}{
		{nil, http.StatusOK},
		{fakePinger{}, http.StatusOK},
		{fakePinger{err: errors.New("down")}, http.StatusServiceUnavailable},
	} {
		h := NewHealthHandler(tc.db)
		r := gin.New()
		r.GET("/healthcheck", h.HealthCheck)
		r.GET("/readyz", h.Readiness)
		if rec := doJSON(r, http.MethodGet, "/healthcheck", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
			t.Fatalf("healthcheck: %d %q", rec.Code, rec.Body.String())
		}
		if rec := doJSON(r, http.MethodGet, "/readyz", ""); rec.Code != tc.status {
			t.Fatalf("readyz: %d want %d", rec.Code, tc.status)
		}
	}
}

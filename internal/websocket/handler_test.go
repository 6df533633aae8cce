package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/adgenie/backend/internal/db"
	"github.com/adgenie/backend/internal/generation"
	"github.com/adgenie/backend/internal/metrics"
)

type fakeVerifier struct {
	user *db.User
	err  error
}

func (f *fakeVerifier) CurrentUser(_ context.Context, _ string) (*db.User, error) {
	return f.user, f.err
}

type fakeStream struct {
	ch chan *generation.Job
}

func (f *fakeStream) Channel() <-chan *generation.Job { return f.ch }
func (f *fakeStream) Close() error                    { return nil }

type fakeSource struct {
	stream *fakeStream
}

func (f *fakeSource) SubscribeToUserProgress(_ context.Context, _ string) generation.ProgressStream {
	return f.stream
}

func waitForGauge(t *testing.T, want float64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if testutil.ToFloat64(metrics.WebsocketConnections) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("websocket gauge = %v, want %v", testutil.ToFloat64(metrics.WebsocketConnections), want)
}

func TestServeWSStreamsProgress(t *testing.T) {
	stream := &fakeStream{ch: make(chan *generation.Job, 1)}
	h := NewHandler(&fakeVerifier{user: &db.User{ID: uuid.New()}}, &fakeSource{stream: stream}, "")

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	base := testutil.ToFloat64(metrics.WebsocketConnections)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=valid"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	waitForGauge(t, base+1)

	stream.ch <- &generation.Job{
		ID:       "job-1",
		Type:     generation.JobVisualGeneration,
		Status:   generation.StatusProcessing,
		Progress: 40,
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var event struct {
		Type string          `json:"type"`
		Job  *generation.Job `json:"job"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.Type != "job_progress" {
		t.Errorf("event type = %q, want job_progress", event.Type)
	}
	if event.Job == nil || event.Job.ID != "job-1" || event.Job.Progress != 40 {
		t.Errorf("unexpected job payload: %+v", event.Job)
	}

	conn.Close()
	waitForGauge(t, base)
}

func TestServeWSRejectsMissingToken(t *testing.T) {
	h := NewHandler(&fakeVerifier{user: &db.User{ID: uuid.New()}}, &fakeSource{}, "")

	req := httptest.NewRequest(http.MethodGet, "/ws/progress", nil)
	w := httptest.NewRecorder()
	h.ServeWS(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestServeWSRejectsBadToken(t *testing.T) {
	h := NewHandler(&fakeVerifier{err: context.DeadlineExceeded}, &fakeSource{}, "")

	req := httptest.NewRequest(http.MethodGet, "/ws/progress?token=bogus", nil)
	w := httptest.NewRecorder()
	h.ServeWS(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeQueueDepthSource struct {
	ready, delayed, dlq int64
	err                 error
}

func (f *fakeQueueDepthSource) QueueDepth(_ context.Context, _ string) (int64, error) {
	return f.ready, f.err
}
func (f *fakeQueueDepthSource) DelayedDepth(_ context.Context, _ string) (int64, error) {
	return f.delayed, f.err
}
func (f *fakeQueueDepthSource) DLQDepth(_ context.Context, _ string) (int64, error) {
	return f.dlq, f.err
}

func TestHandler_ServesQueueDepthGauges(t *testing.T) {
	source := &fakeQueueDepthSource{ready: 3, delayed: 5, dlq: 1}
	c, err := New(source, "post-publish")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"postqueue_queue_ready_depth 3",
		"postqueue_queue_delayed_depth 5",
		"postqueue_queue_dlq_depth 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics body to contain %q, got:\n%s", want, body)
		}
	}
}

func TestInstrumentHTTP_RecordsStatusAndCount(t *testing.T) {
	c, err := New(&fakeQueueDepthSource{}, "post-publish")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	instrumented := c.InstrumentHTTP(next)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/posts", nil)
	instrumented.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected underlying handler's status to pass through, got %d", rec.Code)
	}

	metricsRec := httptest.NewRecorder()
	c.Handler().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := metricsRec.Body.String()
	if !strings.Contains(body, `postqueue_http_requests_total{method="POST",path="/posts",status="201"} 1`) {
		t.Errorf("expected requests_total counter incremented for POST /posts 201, got:\n%s", body)
	}
}

func TestObservePublish_RecordsOutcomeAndDuration(t *testing.T) {
	c, err := New(&fakeQueueDepthSource{}, "post-publish")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c.ObservePublish("published", 250*time.Millisecond)
	c.ObservePublish("failed", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	if !strings.Contains(body, `postqueue_publisher_attempts_total{outcome="published"} 1`) {
		t.Errorf("expected published attempt counted, got:\n%s", body)
	}
	if !strings.Contains(body, `postqueue_publisher_attempts_total{outcome="failed"} 1`) {
		t.Errorf("expected failed attempt counted, got:\n%s", body)
	}
}

func TestNew_PropagatesQueueErrorAsNegativeGauge(t *testing.T) {
	source := &fakeQueueDepthSource{err: errSample}
	c, err := New(source, "post-publish")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "postqueue_queue_ready_depth -1") {
		t.Errorf("expected a queue error to surface as -1 rather than a stale value, got:\n%s", body)
	}
}

var errSample = &sampleError{"boom"}

type sampleError struct{ msg string }

func (e *sampleError) Error() string { return e.msg }

package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// newTestQueue connects to a real Redis instance addressed by
// POSTQUEUE_TEST_REDIS_ADDR, the same opt-in-via-env-var pattern
// dexidp/dex's storage/redis package uses for its own Redis-backed
// tests, and skips otherwise rather than faking the server.
func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	addr := os.Getenv("POSTQUEUE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POSTQUEUE_TEST_REDIS_ADDR not set, skipping queue integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("could not reach redis at %s: %v", addr, err)
	}

	logger := logrus.NewEntry(logrus.New())
	return New(client, logger)
}

func testQueueName(t *testing.T) string {
	t.Helper()
	return "test-" + uuid.NewString()
}

func TestEnqueueAt_ImmediatePromotesOnNextSweep(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	queueName := testQueueName(t)
	jobID := uuid.NewString()

	if err := q.EnqueueAt(ctx, queueName, jobID, map[string]interface{}{"post_id": "p1"}, time.Now().Add(-time.Second), 5); err != nil {
		t.Fatalf("EnqueueAt failed: %v", err)
	}

	promoted, err := q.PromoteDue(ctx, queueName, time.Now())
	if err != nil {
		t.Fatalf("PromoteDue failed: %v", err)
	}
	if promoted != 1 {
		t.Fatalf("expected 1 promoted job, got %d", promoted)
	}

	job, err := q.Dequeue(ctx, queueName, time.Second)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if job == nil || job.ID != jobID {
		t.Fatalf("expected to dequeue job %s, got %+v", jobID, job)
	}
}

func TestEnqueueAt_FutureDoesNotPromoteEarly(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	queueName := testQueueName(t)
	jobID := uuid.NewString()

	if err := q.EnqueueAt(ctx, queueName, jobID, map[string]interface{}{}, time.Now().Add(time.Hour), 5); err != nil {
		t.Fatalf("EnqueueAt failed: %v", err)
	}

	promoted, err := q.PromoteDue(ctx, queueName, time.Now())
	if err != nil {
		t.Fatalf("PromoteDue failed: %v", err)
	}
	if promoted != 0 {
		t.Fatalf("expected 0 promoted jobs for a future run_at, got %d", promoted)
	}
}

func TestCancel_RemovesDelayedJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	queueName := testQueueName(t)
	jobID := uuid.NewString()

	if err := q.EnqueueAt(ctx, queueName, jobID, map[string]interface{}{}, time.Now().Add(time.Hour), 5); err != nil {
		t.Fatalf("EnqueueAt failed: %v", err)
	}
	if err := q.Cancel(ctx, queueName, jobID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	depth, err := q.DelayedDepth(ctx, queueName)
	if err != nil {
		t.Fatalf("DelayedDepth failed: %v", err)
	}
	if depth != 0 {
		t.Errorf("expected 0 delayed jobs after cancel, got %d", depth)
	}
}

func TestMarkFailed_RetriesUntilMaxAttemptThenDLQs(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	queueName := testQueueName(t)
	jobID := uuid.NewString()

	if err := q.EnqueueAt(ctx, queueName, jobID, map[string]interface{}{}, time.Now().Add(-time.Second), 2); err != nil {
		t.Fatalf("EnqueueAt failed: %v", err)
	}
	if _, err := q.PromoteDue(ctx, queueName, time.Now()); err != nil {
		t.Fatalf("PromoteDue failed: %v", err)
	}
	if _, err := q.Dequeue(ctx, queueName, time.Second); err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	if err := q.MarkFailed(ctx, queueName, jobID, "first failure", time.Millisecond); err != nil {
		t.Fatalf("first MarkFailed failed: %v", err)
	}
	delayedDepth, _ := q.DelayedDepth(ctx, queueName)
	if delayedDepth != 1 {
		t.Fatalf("expected job rescheduled after first failure, delayed depth = %d", delayedDepth)
	}

	if _, err := q.PromoteDue(ctx, queueName, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("PromoteDue failed: %v", err)
	}
	if _, err := q.Dequeue(ctx, queueName, time.Second); err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if err := q.MarkFailed(ctx, queueName, jobID, "second failure", time.Millisecond); err != nil {
		t.Fatalf("second MarkFailed failed: %v", err)
	}

	dlqDepth, err := q.DLQDepth(ctx, queueName)
	if err != nil {
		t.Fatalf("DLQDepth failed: %v", err)
	}
	if dlqDepth != 1 {
		t.Errorf("expected job moved to DLQ after exhausting retries, dlq depth = %d", dlqDepth)
	}
}

func TestRescheduleAt_DoesNotConsumeAttempt(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	queueName := testQueueName(t)
	jobID := uuid.NewString()

	if err := q.EnqueueAt(ctx, queueName, jobID, map[string]interface{}{}, time.Now().Add(-time.Second), 5); err != nil {
		t.Fatalf("EnqueueAt failed: %v", err)
	}
	if _, err := q.PromoteDue(ctx, queueName, time.Now()); err != nil {
		t.Fatalf("PromoteDue failed: %v", err)
	}
	if _, err := q.Dequeue(ctx, queueName, time.Second); err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	runAt := time.Now().Add(time.Hour)
	if err := q.RescheduleAt(ctx, queueName, jobID, runAt); err != nil {
		t.Fatalf("RescheduleAt failed: %v", err)
	}

	delayedDepth, err := q.DelayedDepth(ctx, queueName)
	if err != nil {
		t.Fatalf("DelayedDepth failed: %v", err)
	}
	if delayedDepth != 1 {
		t.Errorf("expected job rescheduled into the delayed set, got depth %d", delayedDepth)
	}
}

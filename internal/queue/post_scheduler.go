package queue

import (
	"context"
	"time"
)

// PostScheduler adapts Queue to the domain's post.JobScheduler
// interface, so internal/domain/post never imports this package
// directly.
type PostScheduler struct {
	queue *Queue
}

func NewPostScheduler(queue *Queue) *PostScheduler {
	return &PostScheduler{queue: queue}
}

func (s *PostScheduler) EnqueuePublish(ctx context.Context, userID, postID string, runAt time.Time) error {
	payload := map[string]interface{}{"user_id": userID, "post_id": postID}
	return s.queue.EnqueueAt(ctx, QueuePostPublish, postID, payload, runAt, 5)
}

func (s *PostScheduler) CancelPublish(ctx context.Context, postID string) error {
	return s.queue.Cancel(ctx, QueuePostPublish, postID)
}

// Package scheduler owns the publication algorithm (§4.5.2): the piece
// that needs the post and user domains, the Twitter client, and the
// queue all at once, kept out of internal/domain/post so that package
// stays free of infrastructure imports (see its service.go comment).
// The processing shape — load job, do the work, mark complete/failed —
// is the same one cmd/worker/publish_post.go used, generalized from a
// single ticker-driven processor into a fire-on-dequeue worker loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vouse/postqueue/internal/domain/engagement"
	"github.com/vouse/postqueue/internal/domain/post"
	"github.com/vouse/postqueue/internal/domain/user"
	"github.com/vouse/postqueue/internal/queue"
	"github.com/vouse/postqueue/internal/twitter"
)

// ImageFetcher retrieves raw bytes for a cloud-stored image URL. Kept
// narrow so this package doesn't need to know which object store is in
// use.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Notifier delivers a best-effort push notification. The call runs
// inline inside ProcessJob; no push-notify job is queued. Failure here
// never fails the publish itself, per §4.5.2 step 9.
type Notifier interface {
	NotifyPublished(ctx context.Context, userID, postID string) error
}

// PublishObserver records the outcome of one ProcessJob call. Kept
// narrow and nil-safe so tests and callers that don't care about
// metrics can omit it entirely.
type PublishObserver interface {
	ObservePublish(outcome string, duration time.Duration)
}

const refreshSkew = 60 * time.Second
const retryBaseDelay = 30 * time.Second
const stuckRecoveryDelay = 30 * time.Second

type Publisher struct {
	posts       post.Repository
	users       *user.Service
	engagements *engagement.Service
	twitterCli  *twitter.Client
	jobs        *queue.Queue
	images      ImageFetcher
	notifier    Notifier
	metrics     PublishObserver
	logger      *logrus.Entry
}

func NewPublisher(
	posts post.Repository,
	users *user.Service,
	engagements *engagement.Service,
	twitterCli *twitter.Client,
	jobs *queue.Queue,
	images ImageFetcher,
	notifier Notifier,
	logger *logrus.Entry,
) *Publisher {
	return &Publisher{
		posts: posts, users: users, engagements: engagements,
		twitterCli: twitterCli, jobs: jobs, images: images,
		notifier: notifier, logger: logger,
	}
}

// WithMetrics attaches a PublishObserver; omit to run without metrics.
func (p *Publisher) WithMetrics(observer PublishObserver) *Publisher {
	p.metrics = observer
	return p
}

// ProcessJob runs one fire of the post-publish queue, implementing the
// nine-step algorithm of §4.5.2. jobErr, when non-nil, is passed back to
// the caller so it can decide how to acknowledge the queue job (retry /
// dead-letter / drop).
func (p *Publisher) ProcessJob(ctx context.Context, job *queue.Job) (jobErr error) {
	start := time.Now()
	outcome := "dropped"
	defer func() {
		if p.metrics != nil {
			p.metrics.ObservePublish(outcome, time.Since(start))
		}
	}()

	postID, _ := job.Payload["post_id"].(string)
	userID, _ := job.Payload["user_id"].(string)

	pst, err := p.findByIDAnyUser(ctx, userID, postID)
	if err != nil {
		outcome = "error"
		return fmt.Errorf("scheduler: load post %s: %w", postID, err)
	}
	if pst == nil {
		p.logger.WithField("post_id", postID).Info("scheduler: post gone, dropping job")
		return nil
	}

	// Step 1: drop stale jobs — idempotent against duplicate delivery.
	if pst.Status() != post.StatusScheduled {
		p.logger.WithField("post_id", postID).WithField("status", pst.Status()).
			Info("scheduler: post no longer scheduled, dropping job")
		return nil
	}

	// Step 2: lock.
	if err := pst.MarkPublishing(); err != nil {
		outcome = "error"
		return fmt.Errorf("scheduler: mark publishing: %w", err)
	}
	if err := p.posts.Save(ctx, pst); err != nil {
		outcome = "error"
		return fmt.Errorf("scheduler: persist publishing state: %w", err)
	}

	tweetID, publishErr := p.publish(ctx, pst)
	if publishErr == nil {
		outcome = "published"
		return p.onSuccess(ctx, pst, tweetID)
	}
	outcome = string(pst.Status())
	return p.onFailure(ctx, pst, job, publishErr)
}

// publish executes steps 3-6: token load/refresh, media upload, tweet
// creation.
func (p *Publisher) publish(ctx context.Context, pst *post.Post) (tweetID string, err error) {
	// Step 3.
	tokens, err := p.users.GetPlaintextTokens(ctx, pst.UserID())
	if err != nil {
		return "", fmt.Errorf("scheduler: load tokens: %w", err)
	}
	if tokens == nil || tokens.AccessToken == "" {
		return "", twitter.FatalError{Reason: "account disconnected"}
	}

	// Step 4.
	if tokens.ExpiresAt != nil && !tokens.ExpiresAt.After(time.Now().Add(refreshSkew)) {
		refreshed, err := p.twitterCli.RefreshTokens(ctx, pst.UserID(), tokens.RefreshToken)
		if err != nil {
			_ = p.users.DisconnectTwitter(ctx, pst.UserID())
			return "", twitter.FatalError{Reason: "token refresh failed"}
		}
		if _, err := p.users.RefreshTokens(ctx, pst.UserID(), refreshed.AccessToken, refreshed.RefreshToken, &refreshed.ExpiresAt); err != nil {
			return "", fmt.Errorf("scheduler: persist refreshed tokens: %w", err)
		}
		tokens.AccessToken = refreshed.AccessToken
	}

	// Step 5.
	mediaIDs := make([]string, 0, len(pst.CloudImageURLs()))
	for _, url := range pst.CloudImageURLs() {
		bytes, err := p.images.Fetch(ctx, url)
		if err != nil {
			return "", twitter.FatalError{Reason: "image unavailable"}
		}
		mediaID, err := p.twitterCli.UploadMedia(ctx, pst.UserID(), bytes, tokens.AccessToken)
		if err != nil {
			return "", err
		}
		mediaIDs = append(mediaIDs, mediaID)
	}

	// Step 6. A 401 gets one in-line token refresh and one retry.
	tweetID, err = p.twitterCli.CreateTweet(ctx, pst.UserID(), pst.Content(), mediaIDs, tokens.AccessToken)
	var authExpired twitter.AuthExpiredError
	if errors.As(err, &authExpired) {
		refreshed, rerr := p.twitterCli.RefreshTokens(ctx, pst.UserID(), tokens.RefreshToken)
		if rerr != nil {
			return "", err
		}
		if _, serr := p.users.RefreshTokens(ctx, pst.UserID(), refreshed.AccessToken, refreshed.RefreshToken, &refreshed.ExpiresAt); serr != nil {
			return "", fmt.Errorf("scheduler: persist refreshed tokens: %w", serr)
		}
		tweetID, err = p.twitterCli.CreateTweet(ctx, pst.UserID(), pst.Content(), mediaIDs, refreshed.AccessToken)
	}
	if err != nil {
		return "", err
	}
	return tweetID, nil
}

// onSuccess runs steps 7-9.
func (p *Publisher) onSuccess(ctx context.Context, pst *post.Post, tweetID string) error {
	if err := pst.MarkPublished(tweetID); err != nil {
		return fmt.Errorf("scheduler: mark published: %w", err)
	}
	if err := p.posts.Save(ctx, pst); err != nil {
		return fmt.Errorf("scheduler: persist published state: %w", err)
	}

	if err := p.engagements.CreateOnPublish(ctx, tweetID, pst.PostIDLocal(), pst.UserID()); err != nil {
		p.logger.WithError(err).WithField("post_id", pst.ID()).Warn("scheduler: failed to create engagement row")
	}

	if err := p.notifier.NotifyPublished(ctx, pst.UserID(), pst.ID()); err != nil {
		p.logger.WithError(err).WithField("post_id", pst.ID()).Warn("scheduler: push notification failed")
	}

	return p.jobs.MarkComplete(ctx, queue.QueuePostPublish, pst.ID())
}

// onFailure implements the retry policy of §4.5.3.
func (p *Publisher) onFailure(ctx context.Context, pst *post.Post, job *queue.Job, publishErr error) error {
	var rateLimited twitter.RateLimitedError
	var authExpired twitter.AuthExpiredError
	var fatal twitter.FatalError

	switch {
	case errors.As(publishErr, &rateLimited):
		pst.MarkRateLimited(rateLimited.ResetAt)
		if err := p.posts.Save(ctx, pst); err != nil {
			return err
		}
		return p.jobs.RescheduleAt(ctx, queue.QueuePostPublish, pst.ID(), rateLimited.ResetAt)

	case errors.As(publishErr, &authExpired):
		// Single in-line refresh-and-retry already happened inside
		// publish(); reaching here means it's still failing.
		pst.MarkFailed("authentication expired")
		if err := p.posts.Save(ctx, pst); err != nil {
			return err
		}
		return p.jobs.MarkComplete(ctx, queue.QueuePostPublish, pst.ID())

	case errors.As(publishErr, &fatal):
		pst.MarkFailed(fatal.Reason)
		if err := p.posts.Save(ctx, pst); err != nil {
			return err
		}
		return p.jobs.MarkComplete(ctx, queue.QueuePostPublish, pst.ID())

	default: // TransientError and anything unclassified
		if job.Attempt+1 >= 5 {
			pst.MarkFailed(publishErr.Error())
			if err := p.posts.Save(ctx, pst); err != nil {
				return err
			}
			return p.jobs.MarkComplete(ctx, queue.QueuePostPublish, pst.ID())
		}
		pst.MarkRetrying(time.Now().Add(retryBaseDelay))
		if err := p.posts.Save(ctx, pst); err != nil {
			return err
		}
		return p.jobs.MarkFailed(ctx, queue.QueuePostPublish, pst.ID(), publishErr.Error(), retryBaseDelay)
	}
}

// RecoverStuck implements the crash-recovery reconciliation of §4.5.1:
// on worker startup, any post left in publishing is reset to scheduled
// with a short re-fire delay.
func (p *Publisher) RecoverStuck(ctx context.Context) (int, error) {
	stuck, err := p.posts.FindStuckPublishing(ctx)
	if err != nil {
		return 0, err
	}
	for _, pst := range stuck {
		runAt := time.Now().Add(stuckRecoveryDelay)
		pst.ResetStuckPublishing(runAt)
		if err := p.posts.Save(ctx, pst); err != nil {
			p.logger.WithError(err).WithField("post_id", pst.ID()).Warn("scheduler: failed to recover stuck post")
			continue
		}
		if err := p.jobs.EnqueueAt(ctx, queue.QueuePostPublish, pst.ID(),
			map[string]interface{}{"user_id": pst.UserID(), "post_id": pst.ID()}, runAt, 5); err != nil {
			p.logger.WithError(err).WithField("post_id", pst.ID()).Warn("scheduler: failed to re-enqueue recovered post")
		}
	}
	return len(stuck), nil
}

func (p *Publisher) findByIDAnyUser(ctx context.Context, userID, postID string) (*post.Post, error) {
	pst, err := p.posts.FindByID(ctx, userID, postID)
	if errors.Is(err, post.ErrPostNotFound) {
		return nil, nil
	}
	return pst, err
}

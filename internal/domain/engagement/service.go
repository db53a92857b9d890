package engagement

import (
	"context"
	"errors"
	"time"
)

// MetricsFetcher is the narrow contract onto the Twitter Client, mirroring
// the JobScheduler/TokenCipher split used by the post and user domain
// packages: this package only knows it can ask for a snapshot by tweet
// ID, not how that call is made or throttled.
type MetricsFetcher interface {
	FetchMetrics(ctx context.Context, userID, tweetID string) (Snapshot, error)
}

// PostLookup is the narrow contract onto the post domain needed to drive
// a collection pass: find the X-assigned ID and local ID for a post, and
// confirm it is actually published before a refresh is attempted.
type PostLookup interface {
	IsPublished(ctx context.Context, userID, postID string) (postIDX, postIDLocal string, ok bool, err error)
}

type Service struct {
	repo    Repository
	fetcher MetricsFetcher
	posts   PostLookup
}

func NewService(repo Repository, fetcher MetricsFetcher, posts PostLookup) *Service {
	return &Service{repo: repo, fetcher: fetcher, posts: posts}
}

// CreateOnPublish is invoked by the Publisher (§4.5.2 step 8) the moment
// a post transitions to published: it creates the zeroed engagement row
// that every later refresh appends to.
func (s *Service) CreateOnPublish(ctx context.Context, postIDX, postIDLocal, userID string) error {
	e := New(postIDX, postIDLocal, userID)
	return s.repo.Create(ctx, e)
}

// Refresh fetches current metrics for one post and appends a snapshot.
// Returns ErrPostNotPublished if the post has not yet published, per
// §4.6's "409 if the post has not been published yet".
func (s *Service) Refresh(ctx context.Context, userID, postID string) (*Engagement, error) {
	postIDX, _, ok, err := s.posts.IsPublished(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPostNotPublished
	}

	e, err := s.repo.FindByPostIDX(ctx, userID, postIDX)
	if err != nil {
		return nil, err
	}

	snap, err := s.fetcher.FetchMetrics(ctx, userID, postIDX)
	if err != nil {
		var rc resetCarrier
		if errors.As(err, &rc) {
			return nil, RateLimitedError{ResetAt: rc.Reset()}
		}
		return nil, ErrFetchFailed
	}

	e.ApplyRefresh(time.Now().UTC(), snap)
	if err := s.repo.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) Get(ctx context.Context, userID, postID string) (*Engagement, error) {
	postIDX, postIDLocal, ok, err := s.posts.IsPublished(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPostNotPublished
	}
	e, err := s.repo.FindByPostIDX(ctx, userID, postIDX)
	if err == nil {
		return e, nil
	}
	return s.repo.FindByPostIDLocal(ctx, userID, postIDLocal)
}

func (s *Service) List(ctx context.Context, userID string) ([]*Engagement, error) {
	return s.repo.ListForUser(ctx, userID)
}

// RefreshStale drives the collector's periodic batch sweep: every
// engagement row not refreshed since cutoff gets one fetch-and-append
// pass. Individual fetch failures are collected, not fatal to the sweep.
func (s *Service) RefreshStale(ctx context.Context, cutoff time.Time) (refreshed int, errs []error) {
	stale, err := s.repo.ListStaleForCollection(ctx, cutoff)
	if err != nil {
		return 0, []error{err}
	}

	for _, e := range stale {
		snap, err := s.fetcher.FetchMetrics(ctx, e.UserID(), e.PostIDX())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		e.ApplyRefresh(time.Now().UTC(), snap)
		if err := s.repo.Save(ctx, e); err != nil {
			errs = append(errs, err)
			continue
		}
		refreshed++
	}
	return refreshed, errs
}

// path: internal/domain/post/service.go
package post

import (
	"context"
	"time"
)

// JobScheduler is the delayed-queue contract as seen from the post
// domain: enqueue/cancel a publish job for a given post. The concrete
// Redis-backed implementation lives in internal/queue; kept as a narrow
// interface here so the domain package stays free of infrastructure
// imports, the same split the starting codebase's post/service.go used
// for its SchedulerRepository.
type JobScheduler interface {
	EnqueuePublish(ctx context.Context, userID, postID string, runAt time.Time) error
	CancelPublish(ctx context.Context, postID string) error
}

// Service implements the CRUD and scheduling half of the Scheduler &
// Publisher component (§4.5); the publish algorithm itself (§4.5.2),
// which also needs the Twitter Client and User & Token Store, lives in
// internal/scheduler to keep this package free of those dependencies —
// the "Twitter Client speaks only HTTP/JSON, Publisher owns the state
// machine" split called out in spec.md's Design Notes.
type Service struct {
	repo  Repository
	queue JobScheduler
}

func NewService(repo Repository, queue JobScheduler) *Service {
	return &Service{repo: repo, queue: queue}
}

// Create persists a draft or scheduled post, per the create row of
// §4.5.1, enqueueing a publish job when scheduledAt is present & future.
func (s *Service) Create(ctx context.Context, id, postIDLocal, userID, content string, scheduledAt *time.Time) (*Post, error) {
	p, err := New(id, postIDLocal, userID, content, scheduledAt)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	if p.Status() == StatusScheduled {
		if err := s.queue.EnqueuePublish(ctx, userID, p.ID(), *p.ScheduledAt()); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Post, error) {
	return s.repo.FindByID(ctx, userID, id)
}

func (s *Service) GetByLocalID(ctx context.Context, userID, postIDLocal string) (*Post, error) {
	return s.repo.FindByLocalID(ctx, userID, postIDLocal)
}

func (s *Service) List(ctx context.Context, userID string, offset, limit int) ([]*Post, error) {
	return s.repo.ListForUser(ctx, userID, offset, limit)
}

// Update mutates content/media/location and, if scheduledAt changes,
// cancels any prior job and enqueues (or clears) a new one — the
// scheduled→scheduled and scheduled→draft rows of §4.5.1.
func (s *Service) Update(
	ctx context.Context, userID, id, content, title string,
	cloudImageURLs []string, location *Location, visibility Visibility,
	scheduledAt *time.Time, scheduledAtSet bool,
) (*Post, error) {
	p, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := ValidateLocation(location); err != nil {
		return nil, err
	}
	if err := p.UpdateContent(content, title, cloudImageURLs, location, visibility); err != nil {
		return nil, err
	}

	if scheduledAtSet {
		prevStatus := p.Status()
		if err := p.Schedule(scheduledAt); err != nil {
			return nil, err
		}
		if prevStatus == StatusScheduled {
			if err := s.queue.CancelPublish(ctx, p.ID()); err != nil {
				return nil, err
			}
		}
		if p.Status() == StatusScheduled {
			if err := s.queue.EnqueuePublish(ctx, userID, p.ID(), *p.ScheduledAt()); err != nil {
				return nil, err
			}
		}
	}

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete cancels any pending job and removes the row. Disallowed while
// publishing, per §4.5.4.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	p, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if !p.CanDelete() {
		return ErrDeleteWhilePublishing
	}
	if p.Status() == StatusScheduled {
		if err := s.queue.CancelPublish(ctx, p.ID()); err != nil {
			return err
		}
	}
	return s.repo.Delete(ctx, userID, id)
}

// path: internal/domain/post/post.go
package post

import (
	"time"
)

// Status is one of the five states in the post lifecycle state machine.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusScheduled  Status = "scheduled"
	StatusPublishing Status = "publishing"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
)

// Visibility mirrors the client-supplied visibility tag; the server does
// not interpret it beyond persisting and echoing it back.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Location is an optional geotag attached to a post.
type Location struct {
	Lat     float64
	Lng     float64
	Address string
}

// Post is the aggregate root for the scheduling/publishing domain.
// Private fields plus getters and transition methods mirror the shape
// internal/domain/post/post.go used in the starting codebase, narrowed
// to the five-state machine and schema of this spec.
type Post struct {
	id             string
	postIDLocal    string
	postIDX        string
	userID         string
	content        string
	title          string
	visibility     Visibility
	cloudImageURLs []string
	location       *Location
	scheduledAt    *time.Time
	publishedAt    *time.Time
	status         Status
	failureReason  string
	attempt        int
	version        int
	createdAt      time.Time
	updatedAt      time.Time
}

const MaxContentLength = 280
const MaxImages = 4

// New constructs a scheduled Post when scheduledAt is given and in the
// future, and a draft otherwise, per the create-transition row of §4.5.1.
func New(id, postIDLocal, userID, content string, scheduledAt *time.Time) (*Post, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &Post{
		id:          id,
		postIDLocal: postIDLocal,
		userID:      userID,
		content:     content,
		visibility:  VisibilityPublic,
		status:      StatusDraft,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}

	if scheduledAt != nil && scheduledAt.After(now) {
		p.status = StatusScheduled
		p.scheduledAt = scheduledAt
	}

	return p, nil
}

// Reconstruct rebuilds a Post from persisted fields without re-running
// constructor validation — the store is the source of truth.
func Reconstruct(
	id, postIDLocal, postIDX, userID, content, title string,
	visibility Visibility,
	cloudImageURLs []string,
	location *Location,
	scheduledAt, publishedAt *time.Time,
	status Status,
	failureReason string,
	attempt, version int,
	createdAt, updatedAt time.Time,
) *Post {
	return &Post{
		id: id, postIDLocal: postIDLocal, postIDX: postIDX, userID: userID,
		content: content, title: title, visibility: visibility,
		cloudImageURLs: cloudImageURLs, location: location,
		scheduledAt: scheduledAt, publishedAt: publishedAt,
		status: status, failureReason: failureReason, attempt: attempt,
		version: version, createdAt: createdAt, updatedAt: updatedAt,
	}
}

func (p *Post) ID() string               { return p.id }
func (p *Post) PostIDLocal() string      { return p.postIDLocal }
func (p *Post) PostIDX() string          { return p.postIDX }
func (p *Post) UserID() string           { return p.userID }
func (p *Post) Content() string          { return p.content }
func (p *Post) Title() string            { return p.title }
func (p *Post) Visibility() Visibility   { return p.visibility }
func (p *Post) CloudImageURLs() []string { return p.cloudImageURLs }
func (p *Post) Location() *Location      { return p.location }
func (p *Post) ScheduledAt() *time.Time  { return p.scheduledAt }
func (p *Post) PublishedAt() *time.Time  { return p.publishedAt }
func (p *Post) Status() Status           { return p.status }
func (p *Post) FailureReason() string    { return p.failureReason }
func (p *Post) Attempt() int             { return p.attempt }
func (p *Post) Version() int             { return p.version }
func (p *Post) CreatedAt() time.Time     { return p.createdAt }
func (p *Post) UpdatedAt() time.Time     { return p.updatedAt }

// UpdateContent is only legal while the post has not yet published; the
// caller (application layer) is responsible for routing postIdX/status
// mutation attempts to a rejection before calling this.
func (p *Post) UpdateContent(content, title string, cloudImageURLs []string, location *Location, visibility Visibility) error {
	if p.status == StatusPublished || p.status == StatusPublishing {
		return ErrCannotEditPublished
	}
	if err := ValidateContent(content); err != nil {
		return err
	}
	if len(cloudImageURLs) > MaxImages {
		return ErrTooManyImages
	}

	p.content = content
	p.title = title
	p.cloudImageURLs = cloudImageURLs
	p.location = location
	if visibility != "" {
		p.visibility = visibility
	}
	p.touch()
	return nil
}

// Schedule sets or changes scheduledAt. Per §4.5.1: draft→scheduled on
// set, scheduled→scheduled on reschedule (caller re-enqueues), and
// scheduled→draft when scheduledAt is cleared.
func (p *Post) Schedule(scheduledAt *time.Time) error {
	if p.status != StatusDraft && p.status != StatusScheduled && p.status != StatusFailed {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	if scheduledAt == nil {
		if p.status != StatusScheduled {
			return ErrInvalidTransition
		}
		p.status = StatusDraft
		p.scheduledAt = nil
		p.touch()
		return nil
	}

	if !scheduledAt.After(now) {
		return ErrScheduleTimeInPast
	}

	if p.status == StatusFailed {
		p.attempt = 0
		p.failureReason = ""
	}
	p.status = StatusScheduled
	p.scheduledAt = scheduledAt
	p.touch()
	return nil
}

// MarkPublishing transitions scheduled → publishing, the transient lock
// state described in §4.5.1/§4.5.4.
func (p *Post) MarkPublishing() error {
	if p.status != StatusScheduled {
		return ErrInvalidTransition
	}
	p.status = StatusPublishing
	p.touch()
	return nil
}

// MarkPublished records the successful outcome of the publication
// algorithm (§4.5.2 step 7).
func (p *Post) MarkPublished(tweetID string) error {
	if p.status != StatusPublishing {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	p.status = StatusPublished
	p.postIDX = tweetID
	p.publishedAt = &now
	p.failureReason = ""
	p.touch()
	return nil
}

// MarkRetrying transitions publishing → scheduled after a retryable
// failure, per the retry-policy row of §4.5.1/§4.5.3. runAt is the
// backoff-computed next attempt time.
func (p *Post) MarkRetrying(runAt time.Time) {
	p.status = StatusScheduled
	p.scheduledAt = &runAt
	p.attempt++
	p.touch()
}

// MarkRateLimited transitions publishing → scheduled without consuming
// an attempt, per §4.5.3's "RateLimited does not consume an attempt" —
// being throttled is not the post's fault.
func (p *Post) MarkRateLimited(runAt time.Time) {
	p.status = StatusScheduled
	p.scheduledAt = &runAt
	p.touch()
}

// MarkFailed transitions publishing → failed on a non-retryable error or
// after exhausting attempts.
func (p *Post) MarkFailed(reason string) {
	p.status = StatusFailed
	p.failureReason = reason
	p.touch()
}

// ResetStuckPublishing is the worker-startup crash-recovery step of
// §4.5.1: any post left in publishing whose job is not currently held is
// reset to scheduled, firing again shortly.
func (p *Post) ResetStuckPublishing(runAt time.Time) {
	if p.status != StatusPublishing {
		return
	}
	p.status = StatusScheduled
	p.scheduledAt = &runAt
	p.touch()
}

func (p *Post) IsDue(now time.Time) bool {
	return p.status == StatusScheduled && p.scheduledAt != nil && !p.scheduledAt.After(now)
}

// CanDelete enforces §4.5.4: deleting during publishing is disallowed.
func (p *Post) CanDelete() bool {
	return p.status != StatusPublishing
}

func (p *Post) touch() {
	p.updatedAt = time.Now().UTC()
	p.version++
}

// ValidateContent enforces the 280-character limit of §3.
func ValidateContent(content string) error {
	if content == "" {
		return ErrEmptyContent
	}
	if len([]rune(content)) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// ValidateLocation enforces the lat/lng bounds of §3.
func ValidateLocation(loc *Location) error {
	if loc == nil {
		return nil
	}
	if loc.Lat < -90 || loc.Lat > 90 {
		return ErrInvalidLocation
	}
	if loc.Lng < -180 || loc.Lng > 180 {
		return ErrInvalidLocation
	}
	return nil
}

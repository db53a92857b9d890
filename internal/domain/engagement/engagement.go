// Package engagement holds the Engagement aggregate: per-post metric
// aggregates plus an append-only hourly time-series, modeled after the
// Analytics value type of the starting codebase's domain/post/post.go
// but promoted to its own aggregate since it has an independent
// lifecycle (created once on publish, refreshed repeatedly thereafter).
package engagement

import "time"

// Snapshot is one point-in-time engagement reading.
type Snapshot struct {
	Likes       int
	Retweets    int
	Quotes      int
	Replies     int
	Impressions int
}

// DataPoint is one entry in the append-only time-series.
type DataPoint struct {
	Timestamp time.Time
	Snapshot  Snapshot
}

// Engagement is keyed by (postIDX, userID), also indexed by postIDLocal.
type Engagement struct {
	postIDX     string
	postIDLocal string
	userID      string
	current     Snapshot
	history     []DataPoint
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates the zeroed row made when a post transitions to published,
// per §4.5.2 step 8.
func New(postIDX, postIDLocal, userID string) *Engagement {
	now := time.Now().UTC()
	return &Engagement{
		postIDX:     postIDX,
		postIDLocal: postIDLocal,
		userID:      userID,
		createdAt:   now,
		updatedAt:   now,
	}
}

func Reconstruct(postIDX, postIDLocal, userID string, current Snapshot, history []DataPoint, createdAt, updatedAt time.Time) *Engagement {
	return &Engagement{
		postIDX: postIDX, postIDLocal: postIDLocal, userID: userID,
		current: current, history: history, createdAt: createdAt, updatedAt: updatedAt,
	}
}

func (e *Engagement) PostIDX() string        { return e.postIDX }
func (e *Engagement) PostIDLocal() string    { return e.postIDLocal }
func (e *Engagement) UserID() string         { return e.userID }
func (e *Engagement) Current() Snapshot      { return e.current }
func (e *Engagement) History() []DataPoint   { return e.history }
func (e *Engagement) CreatedAt() time.Time   { return e.createdAt }
func (e *Engagement) UpdatedAt() time.Time   { return e.updatedAt }

// ApplyRefresh appends a new datapoint and updates aggregates. Per
// spec.md §4.6: "never decrease an aggregate below a previously observed
// value unless Twitter itself returns a lower number" — Twitter's value
// is accepted verbatim, the rule only forbids the collector inventing a
// lower number itself, so this is a plain overwrite.
func (e *Engagement) ApplyRefresh(at time.Time, snap Snapshot) {
	e.current = snap
	e.history = append(e.history, DataPoint{Timestamp: at, Snapshot: snap})
	e.updatedAt = at
}

package engagement

import (
	"context"
	"time"
)

// Repository persists the Engagement aggregate. Create is called exactly
// once, at post-publish time; Save appends a refreshed snapshot.
type Repository interface {
	Create(ctx context.Context, e *Engagement) error
	Save(ctx context.Context, e *Engagement) error

	FindByPostIDX(ctx context.Context, userID, postIDX string) (*Engagement, error)
	FindByPostIDLocal(ctx context.Context, userID, postIDLocal string) (*Engagement, error)
	ListForUser(ctx context.Context, userID string) ([]*Engagement, error)

	// ListStaleForCollection returns published posts' engagement rows not
	// refreshed since the given cutoff, feeding the collector's periodic
	// batch sweep (§4.6).
	ListStaleForCollection(ctx context.Context, cutoff time.Time) ([]*Engagement, error)
}

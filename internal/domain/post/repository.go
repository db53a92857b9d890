// path: internal/domain/post/repository.go
package post

import (
	"context"
	"time"
)

// Repository persists the Post aggregate. Save uses compare-and-set on
// an internal row version (see internal/store) to satisfy the
// "concurrent updates race on a compare-and-set of status" requirement
// of spec.md §5; the loser returns ErrOptimisticLock.
type Repository interface {
	Create(ctx context.Context, p *Post) error
	Save(ctx context.Context, p *Post) error
	Delete(ctx context.Context, userID, id string) error

	FindByID(ctx context.Context, userID, id string) (*Post, error)
	FindByLocalID(ctx context.Context, userID, postIDLocal string) (*Post, error)
	FindByXID(ctx context.Context, userID, postIDX string) (*Post, error)
	ListForUser(ctx context.Context, userID string, offset, limit int) ([]*Post, error)

	// FindDue returns scheduled posts whose scheduledAt has passed; used
	// by the worker poller as a fallback/reconciliation sweep alongside
	// the delayed queue.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*Post, error)

	// FindStuckPublishing supports the crash-recovery reconciliation of
	// §4.5.1: posts left in publishing across a worker restart.
	FindStuckPublishing(ctx context.Context) ([]*Post, error)

	FindPublished(ctx context.Context, offset, limit int) ([]*Post, error)
}

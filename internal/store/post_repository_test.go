package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vouse/postqueue/internal/domain/post"
)

// testDB connects to a real Postgres instance gated behind an env var,
// the same pattern internal/queue and internal/scheduler use for Redis
// (grounded on dexidp-dex's storage/redis tests gating on DEX_REDIS_ADDR).
// No sqlite/gorm in-memory driver appears anywhere in the example pack,
// so a live database is the only grounded way to exercise these repos.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("POSTQUEUE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTQUEUE_TEST_POSTGRES_DSN not set, skipping store integration test")
	}
	db, err := Connect(dsn)
	if err != nil {
		t.Skipf("could not connect to test postgres: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	return db
}

func newTestPost(t *testing.T, userID, content string) *post.Post {
	t.Helper()
	p, err := post.New(uuid.NewString(), uuid.NewString(), userID, content, nil)
	if err != nil {
		t.Fatalf("post.New failed: %v", err)
	}
	return p
}

func TestPostRepository_CreateThenFindByID(t *testing.T) {
	db := testDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()
	p := newTestPost(t, userID, "hello from the store test")

	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := repo.FindByID(ctx, userID, p.ID())
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if found.Content() != "hello from the store test" {
		t.Errorf("expected content to round-trip, got %q", found.Content())
	}
	if found.Status() != post.StatusDraft {
		t.Errorf("expected draft status, got %q", found.Status())
	}
}

func TestPostRepository_FindByIDWrongOwnerReturnsNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()
	p := newTestPost(t, userID, "owner-scoped content")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := repo.FindByID(ctx, "someone-else", p.ID())
	if err != post.ErrPostNotFound {
		t.Errorf("expected ErrPostNotFound for a different owner, got %v", err)
	}
}

func TestPostRepository_SaveConflictingVersionReturnsOptimisticLock(t *testing.T) {
	db := testDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()
	p := newTestPost(t, userID, "will be edited twice")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// simulate two workers loading the same row, then racing to save.
	stale := post.Reconstruct(
		p.ID(), p.PostIDLocal(), p.PostIDX(), p.UserID(), p.Content(), p.Title(),
		p.Visibility(), p.CloudImageURLs(), p.Location(),
		p.ScheduledAt(), p.PublishedAt(), p.Status(), p.FailureReason(),
		p.Attempt(), p.Version(), p.CreatedAt(), p.UpdatedAt(),
	)

	winner := post.Reconstruct(
		p.ID(), p.PostIDLocal(), p.PostIDX(), p.UserID(), "winner edit", p.Title(),
		p.Visibility(), p.CloudImageURLs(), p.Location(),
		p.ScheduledAt(), p.PublishedAt(), p.Status(), p.FailureReason(),
		p.Attempt(), p.Version()+1, time.Now().UTC(), time.Now().UTC(),
	)
	if err := repo.Save(ctx, winner); err != nil {
		t.Fatalf("expected winning save to succeed, got %v", err)
	}

	loser := post.Reconstruct(
		stale.ID(), stale.PostIDLocal(), stale.PostIDX(), stale.UserID(), "loser edit", stale.Title(),
		stale.Visibility(), stale.CloudImageURLs(), stale.Location(),
		stale.ScheduledAt(), stale.PublishedAt(), stale.Status(), stale.FailureReason(),
		stale.Attempt(), stale.Version()+1, time.Now().UTC(), time.Now().UTC(),
	)
	if err := repo.Save(ctx, loser); err != post.ErrOptimisticLock {
		t.Errorf("expected ErrOptimisticLock on stale version, got %v", err)
	}
}

func TestPostRepository_FindDueReturnsOnlyScheduledAndDue(t *testing.T) {
	db := testDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	due := newTestPost(t, userID, "scheduled in the past")
	due = post.Reconstruct(
		due.ID(), due.PostIDLocal(), due.PostIDX(), due.UserID(), due.Content(), due.Title(),
		due.Visibility(), due.CloudImageURLs(), due.Location(),
		&past, due.PublishedAt(), post.StatusScheduled, due.FailureReason(),
		due.Attempt(), due.Version(), due.CreatedAt(), due.UpdatedAt(),
	)
	if err := repo.Create(ctx, due); err != nil {
		t.Fatalf("Create (due) failed: %v", err)
	}

	notDue := newTestPost(t, userID, "scheduled in the future")
	notDue = post.Reconstruct(
		notDue.ID(), notDue.PostIDLocal(), notDue.PostIDX(), notDue.UserID(), notDue.Content(), notDue.Title(),
		notDue.Visibility(), notDue.CloudImageURLs(), notDue.Location(),
		&future, notDue.PublishedAt(), post.StatusScheduled, notDue.FailureReason(),
		notDue.Attempt(), notDue.Version(), notDue.CreatedAt(), notDue.UpdatedAt(),
	)
	if err := repo.Create(ctx, notDue); err != nil {
		t.Fatalf("Create (not due) failed: %v", err)
	}

	results, err := repo.FindDue(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("FindDue failed: %v", err)
	}
	foundDue := false
	for _, r := range results {
		if r.ID() == notDue.ID() {
			t.Fatalf("expected future-scheduled post to be excluded from FindDue")
		}
		if r.ID() == due.ID() {
			foundDue = true
		}
	}
	if !foundDue {
		t.Error("expected the past-scheduled post to appear in FindDue")
	}
}

func TestPostRepository_DeleteRemovesRow(t *testing.T) {
	db := testDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()
	p := newTestPost(t, userID, "to be deleted")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.Delete(ctx, userID, p.ID()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := repo.FindByID(ctx, userID, p.ID()); err != post.ErrPostNotFound {
		t.Errorf("expected ErrPostNotFound after delete, got %v", err)
	}
}

func TestPostRepository_ImageURLsRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()
	p := newTestPost(t, userID, "carries images")
	p = post.Reconstruct(
		p.ID(), p.PostIDLocal(), p.PostIDX(), p.UserID(), p.Content(), p.Title(),
		p.Visibility(), []string{"https://img.example/a.png", "https://img.example/b.png"}, p.Location(),
		p.ScheduledAt(), p.PublishedAt(), p.Status(), p.FailureReason(),
		p.Attempt(), p.Version(), p.CreatedAt(), p.UpdatedAt(),
	)
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := repo.FindByID(ctx, userID, p.ID())
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if len(found.CloudImageURLs()) != 2 || found.CloudImageURLs()[1] != "https://img.example/b.png" {
		t.Errorf("expected image URLs to round-trip intact, got %v", found.CloudImageURLs())
	}
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vouse/postqueue/internal/domain/engagement"
)

func TestEngagementRepository_CreateThenFindByPostIDX(t *testing.T) {
	db := testDB(t)
	repo := NewEngagementRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()
	postIDX := "x-" + uuid.NewString()
	postIDLocal := "local-" + uuid.NewString()

	e := engagement.New(postIDX, postIDLocal, userID)
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := repo.FindByPostIDX(ctx, userID, postIDX)
	if err != nil {
		t.Fatalf("FindByPostIDX failed: %v", err)
	}
	if found.PostIDLocal() != postIDLocal {
		t.Errorf("expected postIDLocal to round-trip, got %q", found.PostIDLocal())
	}
	if found.Current().Likes != 0 {
		t.Errorf("expected a freshly created row to have zeroed metrics, got %+v", found.Current())
	}
}

func TestEngagementRepository_SavePersistsCurrentAndAppendsHistory(t *testing.T) {
	db := testDB(t)
	repo := NewEngagementRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()
	postIDX := "x-" + uuid.NewString()
	e := engagement.New(postIDX, "local-"+uuid.NewString(), userID)
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	e.ApplyRefresh(time.Now().UTC(), engagement.Snapshot{Likes: 12, Retweets: 3, Impressions: 500})
	if err := repo.Save(ctx, e); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	found, err := repo.FindByPostIDX(ctx, userID, postIDX)
	if err != nil {
		t.Fatalf("FindByPostIDX failed: %v", err)
	}
	if found.Current().Likes != 12 || found.Current().Impressions != 500 {
		t.Errorf("expected refreshed aggregates to persist, got %+v", found.Current())
	}
	if len(found.History()) != 1 {
		t.Fatalf("expected exactly one history point, got %d", len(found.History()))
	}
	if found.History()[0].Snapshot.Retweets != 3 {
		t.Errorf("expected history point to carry the refreshed snapshot, got %+v", found.History()[0].Snapshot)
	}
}

func TestEngagementRepository_ListStaleForCollectionFiltersByCutoff(t *testing.T) {
	db := testDB(t)
	repo := NewEngagementRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()

	stale := engagement.New("x-"+uuid.NewString(), "local-"+uuid.NewString(), userID)
	if err := repo.Create(ctx, stale); err != nil {
		t.Fatalf("Create (stale) failed: %v", err)
	}

	fresh := engagement.New("x-"+uuid.NewString(), "local-"+uuid.NewString(), userID)
	if err := repo.Create(ctx, fresh); err != nil {
		t.Fatalf("Create (fresh) failed: %v", err)
	}
	fresh.ApplyRefresh(time.Now().UTC(), engagement.Snapshot{Likes: 1})
	if err := repo.Save(ctx, fresh); err != nil {
		t.Fatalf("Save (fresh) failed: %v", err)
	}

	cutoff := time.Now().Add(-time.Minute)
	results, err := repo.ListStaleForCollection(ctx, cutoff)
	if err != nil {
		t.Fatalf("ListStaleForCollection failed: %v", err)
	}

	foundStale := false
	for _, r := range results {
		if r.PostIDX() == fresh.PostIDX() {
			t.Fatalf("expected the just-refreshed row to be excluded as not stale")
		}
		if r.PostIDX() == stale.PostIDX() {
			foundStale = true
		}
	}
	if !foundStale {
		t.Error("expected the never-refreshed row to be reported as stale")
	}
}

func TestEngagementRepository_FindByPostIDXNotFoundReturnsSentinel(t *testing.T) {
	db := testDB(t)
	repo := NewEngagementRepository(db)
	ctx := context.Background()

	if _, err := repo.FindByPostIDX(ctx, "user-x", "ghost-"+uuid.NewString()); err != engagement.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

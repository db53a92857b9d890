package store

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/vouse/postqueue/internal/domain/user"
)

func TestUserRepository_FindOrCreateIsIdempotent(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()

	first, err := repo.FindOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("first FindOrCreate failed: %v", err)
	}
	if first.IsConnected() {
		t.Error("expected a freshly created user to be disconnected")
	}

	second, err := repo.FindOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("second FindOrCreate failed: %v", err)
	}
	if second.UserID() != first.UserID() {
		t.Errorf("expected the second call to return the same row, got %q vs %q", second.UserID(), first.UserID())
	}
}

func TestUserRepository_SaveConflictingVersionReturnsOptimisticLock(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()
	u, err := repo.FindOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("FindOrCreate failed: %v", err)
	}

	winner := user.Reconstruct(
		u.UserID(), "access-cipher", "refresh-cipher", nil, true,
		u.Version()+1, u.CreatedAt(), u.UpdatedAt(),
	)
	if err := repo.Save(ctx, winner); err != nil {
		t.Fatalf("expected winning save to succeed, got %v", err)
	}

	loser := user.Reconstruct(
		u.UserID(), "stale-access", "stale-refresh", nil, true,
		u.Version()+1, u.CreatedAt(), u.UpdatedAt(),
	)
	if err := repo.Save(ctx, loser); err != user.ErrOptimisticLock {
		t.Errorf("expected ErrOptimisticLock on stale version, got %v", err)
	}
}

func TestUserRepository_FindByIDReturnsNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if _, err := repo.FindByID(ctx, "ghost-"+uuid.NewString()); err != user.ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDeviceTokenRepository_UpsertMigratesOwnershipOnReRegister(t *testing.T) {
	db := testDB(t)
	repo := NewDeviceTokenRepository(db)
	ctx := context.Background()

	token := "push-token-" + uuid.NewString()
	first := user.NewDeviceToken(uuid.NewString(), "user-a", token, user.PlatformIOS)
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}

	second := user.NewDeviceToken(uuid.NewString(), "user-b", token, user.PlatformAndroid)
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	tokens, err := repo.ListForUser(ctx, "user-b")
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Token() != token {
		t.Fatalf("expected the token to have migrated to user-b, got %+v", tokens)
	}

	oldOwnerTokens, err := repo.ListForUser(ctx, "user-a")
	if err != nil {
		t.Fatalf("ListForUser (old owner) failed: %v", err)
	}
	if len(oldOwnerTokens) != 0 {
		t.Errorf("expected the token to no longer belong to user-a, got %+v", oldOwnerTokens)
	}
}

func TestDeviceTokenRepository_DeleteRemovesToken(t *testing.T) {
	db := testDB(t)
	repo := NewDeviceTokenRepository(db)
	ctx := context.Background()

	userID := "user-" + uuid.NewString()
	token := "push-token-" + uuid.NewString()
	d := user.NewDeviceToken(uuid.NewString(), userID, token, user.PlatformWeb)
	if err := repo.Upsert(ctx, d); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := repo.Delete(ctx, userID, token); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	tokens, err := repo.ListForUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(tokens) != 0 {
		t.Errorf("expected no device tokens after delete, got %+v", tokens)
	}
}

// path: internal/domain/user/repository.go
package user

import "context"

// Repository persists the User aggregate. Implementations (see
// internal/store) translate between this domain shape and the gorm row
// struct at the store boundary.
type Repository interface {
	// FindOrCreate is idempotent: on a unique-violation race during
	// insert, it MUST re-fetch and return the row a concurrent caller won.
	FindOrCreate(ctx context.Context, userID string) (*User, error)

	FindByID(ctx context.Context, userID string) (*User, error)

	// Save persists u using an optimistic compare-and-swap on Version();
	// it returns ErrOptimisticLock if the row changed since it was read.
	Save(ctx context.Context, u *User) error
}

// DeviceTokenRepository persists push-notification device tokens.
type DeviceTokenRepository interface {
	// Upsert inserts a new row, or rebinds an existing row with the same
	// token to userID/platform if one already exists.
	Upsert(ctx context.Context, d *DeviceToken) error

	Delete(ctx context.Context, userID, token string) error

	ListForUser(ctx context.Context, userID string) ([]*DeviceToken, error)
}

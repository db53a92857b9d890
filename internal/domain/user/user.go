// Package user holds the User aggregate and its DeviceToken sub-entity,
// modeled the way internal/domain/social/account.go shaped its Account
// aggregate: private fields, explicit getters, and methods that enforce
// the entity's own invariants rather than leaving that to callers.
package user

import (
	"time"
)

// User is the durable record of an identity-provider subject plus its
// encrypted Twitter OAuth tokens. Ciphertexts are opaque vault envelopes;
// User never sees or returns plaintext tokens itself.
type User struct {
	userID                 string
	accessTokenCiphertext  string
	refreshTokenCiphertext string
	tokenExpiresAt         *time.Time
	isConnected            bool
	version                int
	createdAt              time.Time
	updatedAt              time.Time
}

// New constructs a brand-new User with no connected account yet.
func New(userID string) *User {
	now := time.Now().UTC()
	return &User{
		userID:    userID,
		createdAt: now,
		updatedAt: now,
	}
}

// Reconstruct rebuilds a User from persisted fields, skipping invariant
// re-derivation — the store is the source of truth for what was saved.
func Reconstruct(
	userID, accessCiphertext, refreshCiphertext string,
	tokenExpiresAt *time.Time,
	isConnected bool,
	version int,
	createdAt, updatedAt time.Time,
) *User {
	return &User{
		userID:                 userID,
		accessTokenCiphertext:  accessCiphertext,
		refreshTokenCiphertext: refreshCiphertext,
		tokenExpiresAt:         tokenExpiresAt,
		isConnected:            isConnected,
		version:                version,
		createdAt:              createdAt,
		updatedAt:              updatedAt,
	}
}

func (u *User) UserID() string                { return u.userID }
func (u *User) AccessTokenCiphertext() string  { return u.accessTokenCiphertext }
func (u *User) RefreshTokenCiphertext() string { return u.refreshTokenCiphertext }
func (u *User) TokenExpiresAt() *time.Time     { return u.tokenExpiresAt }
func (u *User) IsConnected() bool              { return u.isConnected }
func (u *User) Version() int                   { return u.version }
func (u *User) CreatedAt() time.Time           { return u.createdAt }
func (u *User) UpdatedAt() time.Time           { return u.updatedAt }

// Connect stores newly-encrypted tokens and marks the account connected.
// If refreshCiphertext is empty, the previously stored refresh token is
// preserved — Twitter does not always return a fresh one.
func (u *User) Connect(accessCiphertext, refreshCiphertext string, expiresAt *time.Time) {
	u.accessTokenCiphertext = accessCiphertext
	if refreshCiphertext != "" {
		u.refreshTokenCiphertext = refreshCiphertext
	}
	u.tokenExpiresAt = expiresAt
	u.isConnected = true
	u.touch()
}

// Disconnect atomically clears both ciphertexts and the expiry, and marks
// the account disconnected. Same effect whether triggered by an explicit
// disconnect call or updateConnectionStatus(false).
func (u *User) Disconnect() {
	u.accessTokenCiphertext = ""
	u.refreshTokenCiphertext = ""
	u.tokenExpiresAt = nil
	u.isConnected = false
	u.touch()
}

// RefreshTokens replaces both ciphertexts after a successful token refresh.
// The new refresh token is always persisted, even if Twitter's refresh
// tokens turn out not to be single-use — see open question (a).
func (u *User) RefreshTokens(accessCiphertext, refreshCiphertext string, expiresAt *time.Time) {
	u.accessTokenCiphertext = accessCiphertext
	u.refreshTokenCiphertext = refreshCiphertext
	u.tokenExpiresAt = expiresAt
	u.isConnected = true
	u.touch()
}

// NeedsRefresh reports whether the stored access token is at or near expiry.
func (u *User) NeedsRefresh(now time.Time, skew time.Duration) bool {
	if u.tokenExpiresAt == nil {
		return false
	}
	return !u.tokenExpiresAt.After(now.Add(skew))
}

func (u *User) touch() {
	u.updatedAt = time.Now().UTC()
	u.version++
}

// DevicePlatform enumerates where a push token was registered from.
type DevicePlatform string

const (
	PlatformIOS     DevicePlatform = "ios"
	PlatformAndroid DevicePlatform = "android"
	PlatformWeb     DevicePlatform = "web"
)

// DeviceToken binds a push-notification token to exactly one user at a
// time. Re-registering an existing token migrates ownership rather than
// erroring, per spec: "re-registering migrates ownership."
type DeviceToken struct {
	id        string
	userID    string
	token     string
	platform  DevicePlatform
	createdAt time.Time
}

func NewDeviceToken(id, userID, token string, platform DevicePlatform) *DeviceToken {
	return &DeviceToken{
		id:        id,
		userID:    userID,
		token:     token,
		platform:  platform,
		createdAt: time.Now().UTC(),
	}
}

func ReconstructDeviceToken(id, userID, token string, platform DevicePlatform, createdAt time.Time) *DeviceToken {
	return &DeviceToken{id: id, userID: userID, token: token, platform: platform, createdAt: createdAt}
}

func (d *DeviceToken) ID() string               { return d.id }
func (d *DeviceToken) UserID() string           { return d.userID }
func (d *DeviceToken) Token() string            { return d.token }
func (d *DeviceToken) Platform() DevicePlatform { return d.platform }
func (d *DeviceToken) CreatedAt() time.Time     { return d.createdAt }

// Rebind changes ownership and platform of an existing token row, used
// when register() finds the token already claimed by someone else.
func (d *DeviceToken) Rebind(userID string, platform DevicePlatform) {
	d.userID = userID
	d.platform = platform
}

// path: internal/domain/user/service.go
package user

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// TokenCipher is the Crypto Vault's contract as seen by this service —
// kept as a narrow interface so the domain package never imports the
// vault's concrete AES-GCM implementation directly.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Service implements the User & Token Store operations of the spec: a
// durable user record plus the OAuth token vault, grounded on the
// connect/disconnect/refresh shape of the starting codebase's
// social.Service but narrowed to a single Twitter account per user.
type Service struct {
	repo       Repository
	deviceRepo DeviceTokenRepository
	cipher     TokenCipher
	logger     *logrus.Entry
}

func NewService(repo Repository, deviceRepo DeviceTokenRepository, cipher TokenCipher, logger *logrus.Entry) *Service {
	return &Service{repo: repo, deviceRepo: deviceRepo, cipher: cipher, logger: logger}
}

// FindOrCreate returns the user, creating a row on first authenticated
// touch. Idempotent under races per Repository.FindOrCreate's contract.
func (s *Service) FindOrCreate(ctx context.Context, userID string) (*User, error) {
	return s.repo.FindOrCreate(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

// PlaintextTokens is the decrypted pair handed to the publisher; it is
// never persisted or logged.
type PlaintextTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// ConnectTwitter encrypts and stores a freshly obtained token pair. An
// empty refreshToken preserves whatever refresh token was already stored.
func (s *Service) ConnectTwitter(ctx context.Context, userID, accessToken, refreshToken string, expiresAt *time.Time) (*User, error) {
	u, err := s.repo.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	accessCipher, err := s.cipher.Encrypt(accessToken)
	if err != nil {
		return nil, ErrTokenDecryptFailed
	}
	var refreshCipher string
	if refreshToken != "" {
		refreshCipher, err = s.cipher.Encrypt(refreshToken)
		if err != nil {
			return nil, ErrTokenDecryptFailed
		}
	}

	u.Connect(accessCipher, refreshCipher, expiresAt)
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DisconnectTwitter atomically clears both ciphertexts and isConnected.
func (s *Service) DisconnectTwitter(ctx context.Context, userID string) error {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	u.Disconnect()
	return s.repo.Save(ctx, u)
}

// UpdateConnectionStatus mirrors DisconnectTwitter when connected=false,
// per spec §4.3: "when set to false, MUST also clear tokens."
func (s *Service) UpdateConnectionStatus(ctx context.Context, userID string, connected bool) (*User, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !connected {
		u.Disconnect()
	}
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// RefreshTokens persists a new token pair obtained from the Twitter Client.
func (s *Service) RefreshTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt *time.Time) (*User, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	accessCipher, err := s.cipher.Encrypt(accessToken)
	if err != nil {
		return nil, ErrTokenDecryptFailed
	}
	refreshCipher, err := s.cipher.Encrypt(refreshToken)
	if err != nil {
		return nil, ErrTokenDecryptFailed
	}

	u.RefreshTokens(accessCipher, refreshCipher, expiresAt)
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// GetPlaintextTokens decrypts the stored pair for internal publisher use.
// Returns (nil, nil) — not an error — if either ciphertext is missing or
// decryption fails, per spec: "returns null if ... decryption fails."
func (s *Service) GetPlaintextTokens(ctx context.Context, userID string) (*PlaintextTokens, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.AccessTokenCiphertext() == "" || u.RefreshTokenCiphertext() == "" {
		return nil, nil
	}

	access, err := s.cipher.Decrypt(u.AccessTokenCiphertext())
	if err != nil || access == "" {
		s.logger.WithField("user_id", userID).Warn("access token decrypt failed")
		return nil, nil
	}
	refresh, err := s.cipher.Decrypt(u.RefreshTokenCiphertext())
	if err != nil || refresh == "" {
		s.logger.WithField("user_id", userID).Warn("refresh token decrypt failed")
		return nil, nil
	}

	return &PlaintextTokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: u.TokenExpiresAt()}, nil
}

// RegisterDevice upserts a push token, migrating ownership if the token
// was previously registered to someone else. Fails with ErrUserNotFound
// if userID has no row — referential integrity per spec §4.3. id is
// only used if the token hasn't been seen before; the caller (HTTP
// handler) generates it the same way post IDs are generated there.
func (s *Service) RegisterDevice(ctx context.Context, id, userID, token string, platform DevicePlatform) error {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return err
	}
	return s.deviceRepo.Upsert(ctx, NewDeviceToken(id, userID, token, platform))
}

func (s *Service) UnregisterDevice(ctx context.Context, userID, token string) error {
	return s.deviceRepo.Delete(ctx, userID, token)
}

func (s *Service) ListDevices(ctx context.Context, userID string) ([]*DeviceToken, error) {
	return s.deviceRepo.ListForUser(ctx, userID)
}

package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeRepository struct {
	byID map[string]*User
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byID: make(map[string]*User)}
}

func (f *fakeRepository) FindOrCreate(_ context.Context, userID string) (*User, error) {
	if u, ok := f.byID[userID]; ok {
		return u, nil
	}
	u := New(userID)
	f.byID[userID] = u
	return u, nil
}

func (f *fakeRepository) FindByID(_ context.Context, userID string) (*User, error) {
	u, ok := f.byID[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeRepository) Save(_ context.Context, u *User) error {
	f.byID[u.UserID()] = u
	return nil
}

type fakeDeviceRepository struct {
	tokens map[string]*DeviceToken
}

func newFakeDeviceRepository() *fakeDeviceRepository {
	return &fakeDeviceRepository{tokens: make(map[string]*DeviceToken)}
}

func (f *fakeDeviceRepository) Upsert(_ context.Context, d *DeviceToken) error {
	if existing, ok := f.tokens[d.Token()]; ok {
		existing.Rebind(d.UserID(), d.Platform())
		return nil
	}
	f.tokens[d.Token()] = d
	return nil
}

func (f *fakeDeviceRepository) Delete(_ context.Context, userID, token string) error {
	d, ok := f.tokens[token]
	if !ok || d.UserID() != userID {
		return ErrDeviceTokenNotFound
	}
	delete(f.tokens, token)
	return nil
}

func (f *fakeDeviceRepository) ListForUser(_ context.Context, userID string) ([]*DeviceToken, error) {
	var out []*DeviceToken
	for _, d := range f.tokens {
		if d.UserID() == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

// fakeCipher round-trips by prefixing, good enough to exercise the
// encrypt/decrypt call sites without pulling in internal/vault.
type fakeCipher struct {
	failDecrypt bool
}

func (f *fakeCipher) Encrypt(plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

func (f *fakeCipher) Decrypt(ciphertext string) (string, error) {
	if f.failDecrypt {
		return "", errors.New("decrypt failed")
	}
	if len(ciphertext) < 4 {
		return "", errors.New("bad ciphertext")
	}
	return ciphertext[4:], nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestService_ConnectTwitter_EncryptsTokens(t *testing.T) {
	svc := NewService(newFakeRepository(), newFakeDeviceRepository(), &fakeCipher{}, testLogger())

	future := time.Now().Add(time.Hour)
	u, err := svc.ConnectTwitter(context.Background(), "user-1", "access-plain", "refresh-plain", &future)
	if err != nil {
		t.Fatalf("ConnectTwitter failed: %v", err)
	}
	if u.AccessTokenCiphertext() != "enc:access-plain" {
		t.Errorf("expected encrypted access token, got %q", u.AccessTokenCiphertext())
	}
	if !u.IsConnected() {
		t.Error("expected connected after ConnectTwitter")
	}
}

func TestService_GetPlaintextTokens_DecryptsBothFields(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, newFakeDeviceRepository(), &fakeCipher{}, testLogger())

	future := time.Now().Add(time.Hour)
	_, _ = svc.ConnectTwitter(context.Background(), "user-1", "access-plain", "refresh-plain", &future)

	tokens, err := svc.GetPlaintextTokens(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetPlaintextTokens failed: %v", err)
	}
	if tokens == nil {
		t.Fatal("expected non-nil tokens")
	}
	if tokens.AccessToken != "access-plain" || tokens.RefreshToken != "refresh-plain" {
		t.Errorf("expected decrypted tokens, got %+v", tokens)
	}
}

func TestService_GetPlaintextTokens_NilWhenNotConnected(t *testing.T) {
	repo := newFakeRepository()
	_, _ = repo.FindOrCreate(context.Background(), "user-1")
	svc := NewService(repo, newFakeDeviceRepository(), &fakeCipher{}, testLogger())

	tokens, err := svc.GetPlaintextTokens(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tokens != nil {
		t.Errorf("expected nil tokens for a disconnected user, got %+v", tokens)
	}
}

func TestService_GetPlaintextTokens_NilOnDecryptFailure(t *testing.T) {
	repo := newFakeRepository()
	cipher := &fakeCipher{}
	svc := NewService(repo, newFakeDeviceRepository(), cipher, testLogger())

	future := time.Now().Add(time.Hour)
	_, _ = svc.ConnectTwitter(context.Background(), "user-1", "access-plain", "refresh-plain", &future)

	cipher.failDecrypt = true
	tokens, err := svc.GetPlaintextTokens(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error on decrypt failure, got %v", err)
	}
	if tokens != nil {
		t.Errorf("expected nil tokens on decrypt failure, got %+v", tokens)
	}
}

func TestService_UpdateConnectionStatus_FalseClearsTokens(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, newFakeDeviceRepository(), &fakeCipher{}, testLogger())

	future := time.Now().Add(time.Hour)
	_, _ = svc.ConnectTwitter(context.Background(), "user-1", "access-plain", "refresh-plain", &future)

	u, err := svc.UpdateConnectionStatus(context.Background(), "user-1", false)
	if err != nil {
		t.Fatalf("UpdateConnectionStatus failed: %v", err)
	}
	if u.IsConnected() {
		t.Error("expected disconnected")
	}
	if u.AccessTokenCiphertext() != "" {
		t.Error("expected access token cleared")
	}
}

func TestService_RegisterDevice_RequiresExistingUser(t *testing.T) {
	svc := NewService(newFakeRepository(), newFakeDeviceRepository(), &fakeCipher{}, testLogger())

	if err := svc.RegisterDevice(context.Background(), "device-1", "ghost-user", "push-token", PlatformIOS); err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestService_RegisterDevice_MigratesOwnershipOnReregister(t *testing.T) {
	repo := newFakeRepository()
	devices := newFakeDeviceRepository()
	svc := NewService(repo, devices, &fakeCipher{}, testLogger())

	_, _ = repo.FindOrCreate(context.Background(), "user-1")
	_, _ = repo.FindOrCreate(context.Background(), "user-2")

	if err := svc.RegisterDevice(context.Background(), "device-1", "user-1", "shared-token", PlatformIOS); err != nil {
		t.Fatalf("first RegisterDevice failed: %v", err)
	}
	if err := svc.RegisterDevice(context.Background(), "device-2", "user-2", "shared-token", PlatformAndroid); err != nil {
		t.Fatalf("second RegisterDevice failed: %v", err)
	}

	owned, err := svc.ListDevices(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(owned) != 1 || owned[0].Platform() != PlatformAndroid {
		t.Errorf("expected token migrated to user-2 on android, got %+v", owned)
	}

	stillOwned, _ := svc.ListDevices(context.Background(), "user-1")
	if len(stillOwned) != 0 {
		t.Errorf("expected user-1 to no longer own the token, got %+v", stillOwned)
	}
}

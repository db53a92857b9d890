package user

import (
	"testing"
	"time"
)

func TestConnect_PreservesRefreshTokenWhenEmpty(t *testing.T) {
	u := New("user-1")
	future := time.Now().Add(time.Hour)
	u.Connect("access-1", "refresh-1", &future)

	u.Connect("access-2", "", &future)

	if u.AccessTokenCiphertext() != "access-2" {
		t.Errorf("expected access token updated, got %q", u.AccessTokenCiphertext())
	}
	if u.RefreshTokenCiphertext() != "refresh-1" {
		t.Errorf("expected refresh token preserved, got %q", u.RefreshTokenCiphertext())
	}
	if !u.IsConnected() {
		t.Error("expected connected after Connect")
	}
}

func TestDisconnect_ClearsEverything(t *testing.T) {
	u := New("user-1")
	future := time.Now().Add(time.Hour)
	u.Connect("access-1", "refresh-1", &future)

	u.Disconnect()

	if u.IsConnected() {
		t.Error("expected disconnected")
	}
	if u.AccessTokenCiphertext() != "" || u.RefreshTokenCiphertext() != "" {
		t.Error("expected both ciphertexts cleared")
	}
	if u.TokenExpiresAt() != nil {
		t.Error("expected expiry cleared")
	}
}

func TestNeedsRefresh(t *testing.T) {
	u := New("user-1")
	if u.NeedsRefresh(time.Now(), time.Minute) {
		t.Error("expected no refresh needed with no expiry set")
	}

	nearExpiry := time.Now().Add(30 * time.Second)
	u.Connect("access-1", "refresh-1", &nearExpiry)
	if !u.NeedsRefresh(time.Now(), time.Minute) {
		t.Error("expected refresh needed when within skew of expiry")
	}

	farExpiry := time.Now().Add(time.Hour)
	u.Connect("access-2", "refresh-2", &farExpiry)
	if u.NeedsRefresh(time.Now(), time.Minute) {
		t.Error("expected no refresh needed when far from expiry")
	}
}

func TestRebind_ChangesOwnerAndPlatform(t *testing.T) {
	d := NewDeviceToken("device-1", "user-1", "push-token", PlatformIOS)
	d.Rebind("user-2", PlatformAndroid)

	if d.UserID() != "user-2" {
		t.Errorf("expected rebound user id, got %q", d.UserID())
	}
	if d.Platform() != PlatformAndroid {
		t.Errorf("expected rebound platform, got %q", d.Platform())
	}
}

func TestGetErrorCode(t *testing.T) {
	if GetErrorCode(ErrUserNotFound) != CodeUserNotFound {
		t.Error("expected ErrUserNotFound to map to CodeUserNotFound")
	}
	if GetErrorCode(nil) != CodeInternal {
		t.Error("expected nil error to map to CodeInternal")
	}
}

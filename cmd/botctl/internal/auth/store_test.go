package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := Load()
	if err != nil {
		t.Fatalf("Load() on empty home error = %v", err)
	}
	if got != nil {
		t.Fatalf("Load() on empty home = %+v, want nil", got)
	}
	if IsLoggedIn() {
		t.Error("IsLoggedIn() = true before login")
	}

	stored := &StoredAuth{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		Username:    "admin",
		APIURL:      "http://localhost:8080",
	}
	if err := Save(stored); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(home, ".botctl", "auth.json"))
	if err != nil {
		t.Fatalf("auth file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("auth file mode = %v, want 0600", info.Mode().Perm())
	}

	if !IsLoggedIn() {
		t.Error("IsLoggedIn() = false after Save")
	}
	if GetToken() != "tok" {
		t.Errorf("GetToken() = %q, want tok", GetToken())
	}

	if err := Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := Clear(); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}
	if GetToken() != "" {
		t.Error("GetToken() after Clear should be empty")
	}
}

func TestIsLoggedIn_Expired(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := Save(&StoredAuth{AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if IsLoggedIn() {
		t.Error("IsLoggedIn() = true for an expired token")
	}
}

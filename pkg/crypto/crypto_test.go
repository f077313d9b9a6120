package crypto

import (
	"regexp"
	"testing"
	"time"
)

func TestGenerateReference(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	ref, err := GenerateReference("air", now)
	if err != nil {
		t.Fatalf("GenerateReference() error = %v", err)
	}

	pattern := regexp.MustCompile(`^AIR-261019-[A-HJ-NP-Z2-9]{6}$`)
	if !pattern.MatchString(ref) {
		t.Errorf("GenerateReference() = %s, does not match %s", ref, pattern)
	}

	seen := map[string]bool{ref: true}
	for i := 0; i < 50; i++ {
		r, _ := GenerateReference("air", now)
		if seen[r] {
			t.Fatalf("duplicate reference %s", r)
		}
		seen[r] = true
	}
}

func TestHashPassword(t *testing.T) {
	password := "correct horse battery staple"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == password {
		t.Error("HashPassword() should not return the same string")
	}
	if !CheckPassword(password, hash) {
		t.Error("CheckPassword() should accept the original password")
	}
	if CheckPassword("wrong", hash) {
		t.Error("CheckPassword() should reject a wrong password")
	}
}

func TestSignatures(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)

	tests := []struct {
		name   string
		sign   func(string, []byte) string
		hexLen int
	}{
		{"sha256", SignSHA256, 64},
		{"sha512", SignSHA512, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := tt.sign("secret", body)
			if len(sig) != tt.hexLen {
				t.Errorf("signature length = %d, want %d", len(sig), tt.hexLen)
			}
			if !VerifySignature(sig, tt.sign("secret", body)) {
				t.Error("identical signatures should verify")
			}
			if VerifySignature(sig, tt.sign("other", body)) {
				t.Error("signature with a different secret should not verify")
			}
			if VerifySignature(sig, "not-hex") {
				t.Error("malformed signature should not verify")
			}
		})
	}
}

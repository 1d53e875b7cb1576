package crypto

import (
	"strings"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if err := CheckPassword(hash, "secret"); err != nil {
		t.Fatalf("expected password to match")
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatalf("expected password mismatch")
	}
}

func TestPasswordHashIsSalted(t *testing.T) {
	first, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	second, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct hashes for repeated calls")
	}
	if !VerifyPassword("same-input", first) || !VerifyPassword("same-input", second) {
		t.Fatalf("expected both hashes to verify")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	for _, hash := range []string{"", "not-a-bcrypt-hash", "$2a$10$short"} {
		if VerifyPassword("secret", hash) {
			t.Fatalf("expected malformed hash %q to fail", hash)
		}
	}
}

func TestNewOTPCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := NewOTPCode()
		if err != nil {
			t.Fatalf("otp error: %v", err)
		}
		if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
			t.Fatalf("expected six digits, got %q", code)
		}
	}
}

func TestNewState(t *testing.T) {
	a, err := NewState()
	if err != nil {
		t.Fatalf("state error: %v", err)
	}
	b, _ := NewState()
	if a == "" || a == b {
		t.Fatalf("expected distinct non-empty states")
	}
}

func TestLongPasswordsAreNotTruncated(t *testing.T) {
	base := strings.Repeat("a", 80)
	hash, err := HashPassword(base + "1")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if !VerifyPassword(base+"1", hash) {
		t.Fatalf("expected long password to verify")
	}
	if VerifyPassword(base+"2", hash) {
		t.Fatalf("expected difference past byte 72 to matter")
	}
}

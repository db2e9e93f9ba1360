// ABOUTME: Unit tests for password hashing
// ABOUTME: Tests hash round-trip and rejection of wrong passwords

package auth

import "testing"

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("admin123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "admin123" {
		t.Fatal("hash must not equal the plaintext")
	}

	if !CheckPassword(hash, "admin123") {
		t.Error("CheckPassword() = false for correct password")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("CheckPassword() = true for wrong password")
	}
}

func TestHashPassword_DistinctSalts(t *testing.T) {
	h1, err := HashPassword("same")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	h2, err := HashPassword("same")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password should differ")
	}
}

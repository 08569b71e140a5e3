package auth

import "testing"

// TestPasswordRoundTrip establishes property 3: a password verifies
// against its own hash and fails against any other password. Corrupted
// hash/salt inputs are covered by TestPasswordRejectsCorruptInputs.
func TestPasswordRoundTrip(t *testing.T) {
	hash, salt, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !VerifyPassword("correct horse battery staple", hash, salt) {
		t.Fatal("expected correct password to verify")
	}
	if VerifyPassword("wrong password", hash, salt) {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestPasswordDistinctSalts(t *testing.T) {
	hash1, salt1, _ := HashPassword("same-password")
	hash2, salt2, _ := HashPassword("same-password")
	if salt1 == salt2 {
		t.Fatal("expected distinct random salts across calls")
	}
	if hash1 == hash2 {
		t.Fatal("expected distinct hashes due to distinct salts")
	}
	if !VerifyPassword("same-password", hash1, salt1) {
		t.Fatal("hash1/salt1 should verify")
	}
	if !VerifyPassword("same-password", hash2, salt2) {
		t.Fatal("hash2/salt2 should verify")
	}
}

func TestPasswordRejectsCorruptInputs(t *testing.T) {
	hash, salt, _ := HashPassword("p@ssw0rd")
	if VerifyPassword("p@ssw0rd", "not-hex", salt) {
		t.Fatal("expected malformed hash to fail")
	}
	if VerifyPassword("p@ssw0rd", hash, "not-hex") {
		t.Fatal("expected malformed salt to fail")
	}
}

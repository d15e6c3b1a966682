package auth

import "testing"

func TestDevModeAllowsEverything(t *testing.T) {
	v := New("")
	if v.Mode != "dev" {
		t.Fatalf("mode = %q, want dev", v.Mode)
	}
	if !v.Allow("") || !v.Allow("anything") {
		t.Fatalf("dev mode must allow all requests")
	}
}

func TestKeyModeMatchesExactly(t *testing.T) {
	v := New("s3cret")
	if !v.Allow("s3cret") {
		t.Fatalf("matching key rejected")
	}
	if v.Allow("") || v.Allow("S3CRET") || v.Allow("s3cret ") {
		t.Fatalf("non-matching key accepted")
	}
}

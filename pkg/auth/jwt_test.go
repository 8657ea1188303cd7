package auth

import (
	"testing"
	"time"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	token, err := NewSessionToken("6123456789abcdef01234567", "user@example.com", "member", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := Parse(token, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if claims.ID != "6123456789abcdef01234567" {
		t.Errorf("id = %q", claims.ID)
	}
	if claims.Email != "user@example.com" || claims.Role != "member" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParse_WrongSecret(t *testing.T) {
	token, err := NewSessionToken("id", "a@b.com", "member", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(token, "other-secret"); err == nil {
		t.Fatal("expected signature verification failure")
	}
}

func TestParse_Expired(t *testing.T) {
	token, err := NewSessionToken("id", "a@b.com", "member", "secret", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(token, "secret"); err == nil {
		t.Fatal("expected expiry failure")
	}
}

func TestParse_Garbage(t *testing.T) {
	if _, err := Parse("not-a-token", "secret"); err == nil {
		t.Fatal("expected parse failure")
	}
}

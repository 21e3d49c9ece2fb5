package livekit

import (
	"testing"
	"time"

	"github.com/livekit/protocol/auth"
)

func TestNewTokenIssuerRequiresCredentials(t *testing.T) {
	if _, err := NewTokenIssuer("", "secret", time.Hour); err == nil {
		t.Fatalf("expected error without api key")
	}
	if _, err := NewTokenIssuer("key", "", time.Hour); err == nil {
		t.Fatalf("expected error without api secret")
	}
}

func TestNewTokenIssuerDefaultsTTL(t *testing.T) {
	issuer, err := NewTokenIssuer("key", "secret", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issuer.TTL() != DefaultTokenTTL {
		t.Fatalf("expected default ttl %s, got %s", DefaultTokenTTL, issuer.TTL())
	}
}

func TestIssueEmbedsIdentity(t *testing.T) {
	issuer, err := NewTokenIssuer("APIkey", "a-secret-that-is-long-enough-for-hmac", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := issuer.Issue("main", "human-abc123", "Ada")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := auth.ParseAPIToken(token)
	if err != nil {
		t.Fatalf("expected parseable token, got %v", err)
	}
	if parsed.Identity() != "human-abc123" {
		t.Fatalf("expected identity human-abc123, got %s", parsed.Identity())
	}
	if parsed.APIKey() != "APIkey" {
		t.Fatalf("expected api key APIkey, got %s", parsed.APIKey())
	}
}

func TestIssueRequiresRoomAndIdentity(t *testing.T) {
	issuer, err := NewTokenIssuer("key", "secret", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := issuer.Issue("", "someone", ""); err == nil {
		t.Fatalf("expected error without room")
	}
	if _, err := issuer.Issue("main", "", ""); err == nil {
		t.Fatalf("expected error without identity")
	}
}

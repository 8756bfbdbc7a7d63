package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSignParseRoundTrip(t *testing.T) {
	m := NewManager("secret", 15*time.Minute)
	token, err := m.Sign(Claims{Subject: "user-1", Username: "alice", OrgID: "org-1", WorkspaceID: "ws-1"})
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.Subject != "user-1" || claims.Username != "alice" || claims.OrgID != "org-1" || claims.WorkspaceID != "ws-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	m := NewManager("secret", time.Minute)
	token, err := m.Sign(Claims{Subject: "user-1", Username: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	other := NewManager("different", time.Minute)
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewManager("secret", time.Minute)
	token, err := m.Sign(Claims{Subject: "user-1", Username: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	m.Now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }
	if _, err := m.Parse(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	if got := BearerToken("Bearer abc"); got != "abc" {
		t.Fatalf("unexpected token: %q", got)
	}
	if got := BearerToken("Basic abc"); got != "" {
		t.Fatalf("expected empty token for non-bearer header, got %q", got)
	}
	if got := BearerToken(""); got != "" {
		t.Fatalf("expected empty token for empty header, got %q", got)
	}
}

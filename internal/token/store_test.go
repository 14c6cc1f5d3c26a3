package token

import (
	"context"
	"testing"
	"time"

	"github.com/authpipe/authpipe/internal/pipeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AuthenticateRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := Record{
		Token:      "tok-alpha",
		Subject:    "bob",
		Scopes:     []string{"profile"},
		Audiences:  []string{"resource-1", "resource-2"},
		Presenters: []string{"client-1"},
		Claims: pipeline.Params{
			"given_name":  pipeline.StringParam("Bob"),
			"family_name": pipeline.StringParam("Bricoleur"),
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	p, err := s.Authenticate(ctx, "tok-alpha")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.Subject != "bob" {
		t.Errorf("subject: got %q", p.Subject)
	}
	if !p.HasScope("profile") {
		t.Error("expected granted scope")
	}
	if len(p.Audiences) != 2 {
		t.Errorf("audiences: got %v", p.Audiences)
	}
	if got := p.Claims.Get("given_name").String(); got != "Bob" {
		t.Errorf("claim given_name: got %q", got)
	}
}

func TestStore_UnknownTokenIsMalformed(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Authenticate(context.Background(), "never-issued")
	f, ok := AsFailure(err)
	if !ok {
		t.Fatalf("expected AuthFailure, got %v", err)
	}
	if f.Reason != FailureMalformed {
		t.Errorf("expected malformed, got %q", f.Reason)
	}
}

func TestStore_ExpiredToken(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, Record{
		Token:     "tok-stale",
		Subject:   "bob",
		ExpiresAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err := s.Authenticate(ctx, "tok-stale")
	f, ok := AsFailure(err)
	if !ok || f.Reason != FailureExpired {
		t.Fatalf("expected expired failure, got %v", err)
	}
}

func TestStore_RevokeThenAuthenticate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, Record{Token: "tok-revoke-me", Subject: "bob"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	found, err := s.Revoke(ctx, "tok-revoke-me")
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !found {
		t.Fatal("expected revocation to match a row")
	}

	_, err = s.Authenticate(ctx, "tok-revoke-me")
	f, ok := AsFailure(err)
	if !ok || f.Reason != FailureExpired {
		t.Fatalf("revoked token must report expired, got %v", err)
	}
}

func TestStore_RevokeUnknownToken(t *testing.T) {
	s := openTestStore(t)

	found, err := s.Revoke(context.Background(), "never-issued")
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if found {
		t.Error("unknown token must not report a match")
	}
}

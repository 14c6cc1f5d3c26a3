package token

import (
	"context"
	"testing"

	"github.com/authpipe/authpipe/internal/testutil"
)

func TestIntrospection_ActiveToken(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "introspection_active")
	defer cleanup()

	a := &IntrospectionAuthenticator{
		Endpoint:     "https://auth.example.test/introspect",
		ClientID:     "resource-server",
		ClientSecret: "secret",
		Audience:     "resource-1",
		HTTPClient:   testutil.VCRHTTPClient(r),
	}

	p, err := a.Authenticate(context.Background(), "tok-active")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.Subject != "bob" {
		t.Errorf("subject: got %q", p.Subject)
	}
	if !p.HasScope("profile") || !p.HasScope("email") {
		t.Errorf("scopes: got %v", p.Scopes)
	}
	if len(p.Presenters) != 1 || p.Presenters[0] != "client-1" {
		t.Errorf("presenters: got %v", p.Presenters)
	}
	if got := p.Claims.Get("email").String(); got != "bob@example.test" {
		t.Errorf("email claim: got %q", got)
	}
}

func TestIntrospection_InactiveTokenIsExpired(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "introspection_inactive")
	defer cleanup()

	a := &IntrospectionAuthenticator{
		Endpoint:   "https://auth.example.test/introspect",
		ClientID:   "resource-server",
		HTTPClient: testutil.VCRHTTPClient(r),
	}

	_, err := a.Authenticate(context.Background(), "tok-stale")
	f, ok := AsFailure(err)
	if !ok || f.Reason != FailureExpired {
		t.Fatalf("expected expired failure, got %v", err)
	}
}

func TestIntrospection_WrongAudience(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "introspection_active")
	defer cleanup()

	a := &IntrospectionAuthenticator{
		Endpoint:   "https://auth.example.test/introspect",
		ClientID:   "resource-server",
		Audience:   "some-other-resource",
		HTTPClient: testutil.VCRHTTPClient(r),
	}

	_, err := a.Authenticate(context.Background(), "tok-active")
	f, ok := AsFailure(err)
	if !ok || f.Reason != FailureAudience {
		t.Fatalf("expected audience failure, got %v", err)
	}
}

func TestIntrospection_TransportFailureIsUnverifiable(t *testing.T) {
	a := &IntrospectionAuthenticator{
		// Nothing listens here; the request must fail at the transport.
		Endpoint: "http://127.0.0.1:1/introspect",
		ClientID: "resource-server",
	}

	_, err := a.Authenticate(context.Background(), "tok-any")
	f, ok := AsFailure(err)
	if !ok || f.Reason != FailureSignature {
		t.Fatalf("expected unverifiable failure, got %v", err)
	}
}

func TestIntrospection_MissingToken(t *testing.T) {
	a := &IntrospectionAuthenticator{Endpoint: "https://auth.example.test/introspect"}

	_, err := a.Authenticate(context.Background(), "")
	f, ok := AsFailure(err)
	if !ok || f.Reason != FailureMissing {
		t.Fatalf("expected missing failure, got %v", err)
	}
}

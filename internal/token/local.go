package token

import (
	"context"
	"strings"
	"time"

	"github.com/authpipe/authpipe/internal/pipeline"
)

// LocalAuthenticator fabricates a default principal without any backing
// store. It backs degraded operation: any well-formed bearer token is
// granted the configured identity and scopes, so the pipeline can be
// exercised without entity-store collaborators.
type LocalAuthenticator struct {
	// Subject identifies the fabricated principal.
	Subject string

	// Claims are attached to the fabricated principal verbatim.
	Claims pipeline.Params

	// Scopes are granted to every accepted token.
	Scopes []string

	// Audiences the fabricated token is considered issued for.
	Audiences []string

	// Lifetime bounds the fabricated principal's validity, measured from
	// the moment of authentication. Zero means one hour.
	Lifetime time.Duration
}

// Authenticate accepts any single-line, non-empty token and returns the
// configured default principal.
func (a *LocalAuthenticator) Authenticate(ctx context.Context, tok string) (*pipeline.Principal, error) {
	if tok == "" {
		return nil, &AuthFailure{Reason: FailureMissing}
	}
	if strings.ContainsAny(tok, " \t\r\n") {
		return nil, &AuthFailure{Reason: FailureMalformed, Detail: "token contains whitespace"}
	}

	lifetime := a.Lifetime
	if lifetime == 0 {
		lifetime = time.Hour
	}

	claims := make(pipeline.Params, len(a.Claims))
	for k, v := range a.Claims {
		claims[k] = v
	}

	return &pipeline.Principal{
		Subject:   a.Subject,
		TokenType: "Bearer",
		Scopes:    append([]string(nil), a.Scopes...),
		Audiences: append([]string(nil), a.Audiences...),
		ExpiresAt: time.Now().Add(lifetime),
		Claims:    claims,
	}, nil
}

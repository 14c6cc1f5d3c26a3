// Package token supplies the bearer-token authentication boundary consumed
// by the pipeline's Validate stage, together with its three concrete
// implementations: a degraded-mode local authenticator, a reference-token
// store, and a remote introspection client.
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/authpipe/authpipe/internal/pipeline"
)

// FailureReason classifies why a token could not be authenticated.
type FailureReason string

const (
	// FailureMissing means no token was presented at all.
	FailureMissing FailureReason = "missing"
	// FailureMalformed means the token could not be parsed.
	FailureMalformed FailureReason = "malformed"
	// FailureExpired means the token is no longer valid, evaluated against
	// the current time. Revoked tokens fall here too.
	FailureExpired FailureReason = "expired"
	// FailureSignature means the token's signature could not be verified,
	// including transport failures that leave the token unverifiable.
	FailureSignature FailureReason = "signature"
	// FailureAudience means the token was not issued for this resource.
	FailureAudience FailureReason = "audience"
)

// AuthFailure is the structured result of a failed authentication.
type AuthFailure struct {
	Reason FailureReason
	// Detail is internal diagnostic context, never sent to clients.
	Detail string
}

func (f *AuthFailure) Error() string {
	if f.Detail == "" {
		return fmt.Sprintf("token authentication failed: %s", f.Reason)
	}
	return fmt.Sprintf("token authentication failed: %s: %s", f.Reason, f.Detail)
}

// AsFailure extracts the structured failure from an authentication error.
func AsFailure(err error) (*AuthFailure, bool) {
	var f *AuthFailure
	ok := errors.As(err, &f)
	return f, ok
}

// Rejection maps a failure reason to the fixed protocol error the Validate
// stage emits: invalid_request for a missing token, invalid_token for every
// cryptographic or semantic failure.
func (f *AuthFailure) Rejection() pipeline.Rejection {
	switch f.Reason {
	case FailureMissing:
		return pipeline.Rejection{
			Code:        pipeline.ErrorInvalidRequest,
			Description: "The mandatory 'access_token' parameter is missing.",
		}
	case FailureExpired:
		return pipeline.Rejection{
			Code:        pipeline.ErrorInvalidToken,
			Description: "The specified token is no longer valid.",
		}
	case FailureAudience:
		return pipeline.Rejection{
			Code:        pipeline.ErrorInvalidToken,
			Description: "The specified token cannot be used with this resource server.",
		}
	default:
		return pipeline.Rejection{
			Code:        pipeline.ErrorInvalidToken,
			Description: "The specified token is invalid.",
		}
	}
}

// Authenticator turns a bearer token string into a validated principal or a
// structured failure. Implementations may block on I/O; they receive the
// operation's context for cancellation.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*pipeline.Principal, error)
}

// Revoker marks a presented token as revoked. Implementations report
// whether a matching token existed; an unknown token is not an error.
type Revoker interface {
	Revoke(ctx context.Context, token string) (bool, error)
}

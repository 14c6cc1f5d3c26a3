// Package userinfo wires the built-in handlers for the userinfo operation:
// bearer-token extraction, token authentication, scope-gated claim
// computation, and response serialization.
package userinfo

import (
	"context"
	"fmt"
	"strings"

	"github.com/authpipe/authpipe/internal/pipeline"
	"github.com/authpipe/authpipe/internal/token"
)

// Options carries the collaborators the default handlers need.
type Options struct {
	// Issuer is emitted as the mandatory iss claim.
	Issuer string

	// Authenticator validates the presented bearer token.
	Authenticator token.Authenticator
}

// Built-in handler identities. Configuration may replace any of them by
// registering the same name with replace intent.
const (
	HandlerExtractToken      = "userinfo:extract-token"
	HandlerAuthenticateToken = "userinfo:authenticate-token"
	HandlerAttachClaims      = "userinfo:attach-claims"
	HandlerSerializeResponse = "userinfo:serialize-response"
)

// Register wires the operation's default handlers, one per stage, each at
// pipeline.DefaultHandlerOrder.
func Register(r *pipeline.Registry, opts Options) error {
	if opts.Authenticator == nil {
		return fmt.Errorf("userinfo: authenticator is required")
	}

	h := &handlers{opts: opts}
	descriptors := []pipeline.Descriptor{
		{
			Name:        HandlerExtractToken,
			ContextType: pipeline.ContextTypeFor(pipeline.OperationUserinfo, pipeline.StageExtract),
			Default:     true,
			Handler:     pipeline.HandlerFor(h.extractToken),
		},
		{
			Name:        HandlerAuthenticateToken,
			ContextType: pipeline.ContextTypeFor(pipeline.OperationUserinfo, pipeline.StageValidate),
			Default:     true,
			Handler:     pipeline.HandlerFor(h.authenticateToken),
		},
		{
			Name:        HandlerAttachClaims,
			ContextType: pipeline.ContextTypeFor(pipeline.OperationUserinfo, pipeline.StageHandle),
			Default:     true,
			Handler:     pipeline.HandlerFor(h.attachClaims),
		},
		{
			Name:        HandlerSerializeResponse,
			ContextType: pipeline.ContextTypeFor(pipeline.OperationUserinfo, pipeline.StageApply),
			Default:     true,
			Handler:     pipeline.HandlerFor(h.serializeResponse),
		},
	}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

type handlers struct {
	opts Options
}

// extractToken pulls the bearer token from the raw input. The Authorization
// header takes precedence over the access_token parameter.
func (h *handlers) extractToken(ctx context.Context, ec *pipeline.ExtractContext) error {
	if header := ec.AuthorizationHeader; header != "" {
		scheme, rest, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			ec.Reject(pipeline.ErrorInvalidRequest, "The 'Authorization' header is malformed.", "")
			return nil
		}
		ec.Token = strings.TrimSpace(rest)
		return nil
	}
	ec.Token = ec.Transaction().Request.Get("access_token").String()
	return nil
}

// authenticateToken establishes the transaction's principal, mapping each
// authenticator failure to its fixed protocol rejection.
func (h *handlers) authenticateToken(ctx context.Context, vc *pipeline.ValidateContext) error {
	if vc.Transaction().IsHandled() {
		return nil
	}

	principal, err := h.opts.Authenticator.Authenticate(ctx, vc.Token)
	if err != nil {
		if f, ok := token.AsFailure(err); ok {
			rej := f.Rejection()
			vc.Reject(rej.Code, rej.Description, rej.URI)
			return nil
		}
		return err
	}

	vc.Transaction().Principal = principal
	return nil
}

// attachClaims computes the claim set: the mandatory issuer, subject, and
// audience entries, then the scope-gated optional claims.
func (h *handlers) attachClaims(ctx context.Context, hc *pipeline.HandleContext) error {
	txn := hc.Transaction()
	if txn.IsHandled() {
		return nil
	}
	principal := txn.Principal
	if principal == nil {
		// A skipped or custom Validate stage may have left no principal;
		// the operation proceeds on whatever state already exists.
		return nil
	}

	hc.Claims.Set("iss", pipeline.StringParam(h.opts.Issuer))
	hc.Claims.Set("sub", pipeline.StringParam(principal.Subject))
	switch len(principal.Audiences) {
	case 0:
	case 1:
		hc.Claims.Set("aud", pipeline.StringParam(principal.Audiences[0]))
	default:
		hc.Claims.Set("aud", pipeline.ListParam(principal.Audiences...))
	}

	for scope, names := range scopeClaims {
		if !principal.HasScope(scope) {
			continue
		}
		for _, name := range names {
			if v := principal.Claims.Get(name); !v.IsZero() {
				hc.Claims.Set(name, v)
			}
		}
	}
	return nil
}

// serializeResponse copies the computed claims into the transaction's
// response parameters. It runs even for handled transactions so the
// response composer always sees a fully applied response; absent claims are
// never emitted.
func (h *handlers) serializeResponse(ctx context.Context, ac *pipeline.ApplyContext) error {
	for name, v := range ac.Claims {
		if v.IsZero() {
			continue
		}
		ac.Transaction().Response.Set(name, v)
	}
	return nil
}

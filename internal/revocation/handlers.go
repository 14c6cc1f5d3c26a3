// Package revocation wires the built-in handlers for the token revocation
// operation (RFC 7009 shape). Revoking an unknown or already-invalid token
// still succeeds with an empty response object.
package revocation

import (
	"context"
	"fmt"

	"github.com/authpipe/authpipe/internal/pipeline"
	"github.com/authpipe/authpipe/internal/token"
)

// Options carries the collaborators the default handlers need.
type Options struct {
	// Authenticator resolves the presented token to a principal when
	// possible. An unauthenticated token is not a rejection here.
	Authenticator token.Authenticator

	// Revoker records the revocation. Nil disables the write, which is the
	// degraded-mode behavior.
	Revoker token.Revoker
}

// Built-in handler identities.
const (
	HandlerExtractToken      = "revocation:extract-token"
	HandlerAuthenticateToken = "revocation:authenticate-token"
	HandlerRevokeToken       = "revocation:revoke-token"
	HandlerSerializeResponse = "revocation:serialize-response"
)

// Register wires the operation's default handlers, one per stage.
func Register(r *pipeline.Registry, opts Options) error {
	if opts.Authenticator == nil {
		return fmt.Errorf("revocation: authenticator is required")
	}

	h := &handlers{opts: opts}
	descriptors := []pipeline.Descriptor{
		{
			Name:        HandlerExtractToken,
			ContextType: pipeline.ContextTypeFor(pipeline.OperationRevocation, pipeline.StageExtract),
			Default:     true,
			Handler:     pipeline.HandlerFor(h.extractToken),
		},
		{
			Name:        HandlerAuthenticateToken,
			ContextType: pipeline.ContextTypeFor(pipeline.OperationRevocation, pipeline.StageValidate),
			Default:     true,
			Handler:     pipeline.HandlerFor(h.authenticateToken),
		},
		{
			Name:        HandlerRevokeToken,
			ContextType: pipeline.ContextTypeFor(pipeline.OperationRevocation, pipeline.StageHandle),
			Default:     true,
			Handler:     pipeline.HandlerFor(h.revokeToken),
		},
		{
			Name:        HandlerSerializeResponse,
			ContextType: pipeline.ContextTypeFor(pipeline.OperationRevocation, pipeline.StageApply),
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

// PropertyTokenTypeHint carries the optional token_type_hint parameter to
// later stages. The default revoker looks tokens up by value, so the hint is
// advisory only.
const PropertyTokenTypeHint = "revocation.token_type_hint"

// extractToken reads the mandatory token parameter and the optional
// token_type_hint.
func (h *handlers) extractToken(ctx context.Context, ec *pipeline.ExtractContext) error {
	txn := ec.Transaction()
	tok := txn.Request.Get("token").String()
	if tok == "" {
		ec.Reject(pipeline.ErrorInvalidRequest, "The mandatory 'token' parameter is missing.", "")
		return nil
	}
	ec.Token = tok
	if hint := txn.Request.Get("token_type_hint").String(); hint != "" {
		txn.SetProperty(PropertyTokenTypeHint, hint)
	}
	return nil
}

// authenticateToken tries to resolve the token's principal for later
// handlers. Per RFC 7009 an invalid token does not reject the operation.
func (h *handlers) authenticateToken(ctx context.Context, vc *pipeline.ValidateContext) error {
	if vc.Transaction().IsHandled() {
		return nil
	}

	principal, err := h.opts.Authenticator.Authenticate(ctx, vc.Token)
	if err != nil {
		if _, ok := token.AsFailure(err); ok {
			return nil
		}
		return err
	}
	vc.Transaction().Principal = principal
	return nil
}

// revokeToken marks the presented token revoked in the backing store.
func (h *handlers) revokeToken(ctx context.Context, hc *pipeline.HandleContext) error {
	if hc.Transaction().IsHandled() {
		return nil
	}
	if h.opts.Revoker == nil {
		return nil
	}
	if _, err := h.opts.Revoker.Revoke(ctx, hc.Token); err != nil {
		return err
	}
	return nil
}

// serializeResponse leaves the success body as an empty object; handlers
// earlier in the operation may have placed parameters or a custom response,
// which the composer layers in.
func (h *handlers) serializeResponse(ctx context.Context, ac *pipeline.ApplyContext) error {
	return nil
}

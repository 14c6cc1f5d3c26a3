package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/authpipe/authpipe/internal/pipeline"
)

// Endpoint is the outer driver: it owns one Transaction per request, runs
// the four stages in order through the pipeline, and serializes the
// composed response. The pipeline defines per-stage semantics; everything
// HTTP-shaped lives here.
type Endpoint struct {
	pipe   *pipeline.Pipeline
	logger *slog.Logger
}

// NewEndpoint creates the protocol endpoint driver.
func NewEndpoint(p *pipeline.Pipeline, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}
	return &Endpoint{pipe: p, logger: logger}
}

// Userinfo serves the userinfo operation.
func (e *Endpoint) Userinfo(w http.ResponseWriter, r *http.Request) {
	e.run(w, r, pipeline.OperationUserinfo)
}

// Revoke serves the token revocation operation.
func (e *Endpoint) Revoke(w http.ResponseWriter, r *http.Request) {
	e.run(w, r, pipeline.OperationRevocation)
}

func (e *Endpoint) run(w http.ResponseWriter, r *http.Request, op pipeline.OperationKind) {
	ctx := r.Context()

	txn := pipeline.NewTransaction(op)
	if err := r.ParseForm(); err != nil {
		e.writeRejection(w, pipeline.Rejection{
			Code:        pipeline.ErrorInvalidRequest,
			Description: "The request parameters cannot be parsed.",
		})
		return
	}
	for name, values := range r.Form {
		if len(values) == 1 {
			txn.Request.Set(name, pipeline.StringParam(values[0]))
		} else {
			txn.Request.Set(name, pipeline.ListParam(values...))
		}
	}
	AddLogField(ctx, "transaction_id", txn.ID)

	ec := pipeline.NewExtractContext(txn)
	ec.AuthorizationHeader = r.Header.Get("Authorization")
	if done := e.runStage(ctx, w, ec); done {
		return
	}

	vc := pipeline.NewValidateContext(txn, ec.Token)
	if done := e.runStage(ctx, w, vc); done {
		return
	}

	hc := pipeline.NewHandleContext(txn, ec.Token)
	if done := e.runStage(ctx, w, hc); done {
		return
	}

	ac := pipeline.NewApplyContext(txn, hc.Claims)
	if done := e.runStage(ctx, w, ac); done {
		return
	}

	e.writeJSON(w, http.StatusOK, pipeline.ComposeResponse(txn))
}

// runStage executes one stage and reports whether the operation is
// finished, writing the response when it is. A cancelled request produces
// no response at all.
func (e *Endpoint) runStage(ctx context.Context, w http.ResponseWriter, sc pipeline.StageContext) bool {
	if err := e.pipe.RunStage(ctx, sc); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.logger.Warn("operation cancelled",
				slog.String("context_type", string(sc.ContextType())),
				slog.String("transaction_id", sc.Transaction().ID),
			)
			return true
		}

		AddError(ctx, err)
		e.logger.Error("operation failed",
			slog.String("context_type", string(sc.ContextType())),
			slog.String("transaction_id", sc.Transaction().ID),
			slog.String("error", err.Error()),
		)
		e.writeJSON(w, http.StatusInternalServerError, pipeline.ComposeRejection(pipeline.Rejection{
			Code: pipeline.ErrorServerError,
		}))
		return true
	}

	if rej, ok := sc.Rejection(); ok {
		e.writeRejection(w, rej)
		return true
	}
	return false
}

func (e *Endpoint) writeRejection(w http.ResponseWriter, rej pipeline.Rejection) {
	status := http.StatusBadRequest
	if rej.Code == pipeline.ErrorInvalidToken {
		status = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(
			"Bearer error=%q, error_description=%q", rej.Code, rej.Description))
	}
	e.writeJSON(w, status, pipeline.ComposeRejection(rej))
}

func (e *Endpoint) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		e.logger.Error("failed to write response", slog.String("error", err.Error()))
	}
}

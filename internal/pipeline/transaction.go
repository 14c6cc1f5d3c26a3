package pipeline

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// OperationKind identifies which protocol operation a transaction drives.
type OperationKind string

const (
	OperationUserinfo   OperationKind = "userinfo"
	OperationRevocation OperationKind = "revocation"
)

// PropertyCustomResponse is the well-known property key whose value, a
// Params map, fully replaces the default response body when present.
const PropertyCustomResponse = "custom_response"

// Principal is the authenticated identity established by the Validate stage
// and consumed by the Handle stage.
type Principal struct {
	Subject    string
	TokenType  string
	Scopes     []string
	Audiences  []string
	Presenters []string
	ExpiresAt  time.Time
	Claims     Params
}

// HasScope reports whether the scope was granted to the presented token.
func (p *Principal) HasScope(scope string) bool {
	return slices.Contains(p.Scopes, scope)
}

// Transaction is the per-request state container shared by all stages of one
// logical operation. It is exclusively owned by that operation's goroutine
// for its entire lifetime and never shared across operations.
type Transaction struct {
	ID        string
	Operation OperationKind

	// Request holds the inbound parameters, Response the outbound ones.
	// Response is built up during the Handle and Apply stages.
	Request  Params
	Response Params

	// Properties carries handler-injected values across stages. Insertion
	// order is irrelevant; last writer wins.
	Properties map[string]any

	// Principal is populated by Validate and consumed by Handle. Nil until
	// a token has been authenticated.
	Principal *Principal

	handled bool
}

// NewTransaction creates the state container for one protocol operation.
func NewTransaction(op OperationKind) *Transaction {
	return &Transaction{
		ID:         uuid.New().String(),
		Operation:  op,
		Request:    make(Params),
		Response:   make(Params),
		Properties: make(map[string]any),
	}
}

// SetProperty stores a cross-stage property, last writer wins.
func (t *Transaction) SetProperty(key string, value any) {
	t.Properties[key] = value
}

// Property returns a cross-stage property and whether it was set.
func (t *Transaction) Property(key string) (any, bool) {
	v, ok := t.Properties[key]
	return v, ok
}

// CustomResponse returns the handler-supplied replacement response body, if
// one was stored under PropertyCustomResponse.
func (t *Transaction) CustomResponse() (Params, bool) {
	v, ok := t.Properties[PropertyCustomResponse]
	if !ok {
		return nil, false
	}
	ps, ok := v.(Params)
	return ps, ok
}

// SetCustomResponse stores a replacement response body. Handlers that mark a
// stage handled typically pair it with this call.
func (t *Transaction) SetCustomResponse(ps Params) {
	t.Properties[PropertyCustomResponse] = ps
}

// markHandled records that some stage finished with OutcomeHandled. Default
// handlers of later stages treat the transaction as already computed and
// no-op, while custom handlers on those stages still run.
func (t *Transaction) markHandled() {
	t.handled = true
}

// IsHandled reports whether an earlier stage finished with OutcomeHandled.
func (t *Transaction) IsHandled() bool {
	return t.handled
}

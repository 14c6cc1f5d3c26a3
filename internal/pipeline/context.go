package pipeline

import "fmt"

// Stage is one of the four fixed phases every protocol operation passes
// through.
type Stage string

const (
	StageExtract  Stage = "extract"
	StageValidate Stage = "validate"
	StageHandle   Stage = "handle"
	StageApply    Stage = "apply"
)

// ContextType discriminates which stage-context variant a handler applies
// to. Handlers are registered against a context type, never against a stage
// alone, so one registry serves every operation kind.
type ContextType string

// ContextTypeFor derives the context type for an operation kind and stage,
// e.g. "userinfo.validate".
func ContextTypeFor(op OperationKind, stage Stage) ContextType {
	return ContextType(fmt.Sprintf("%s.%s", op, stage))
}

// Protocol error codes used by rejections.
const (
	ErrorInvalidRequest = "invalid_request"
	ErrorInvalidToken   = "invalid_token"
	ErrorServerError    = "server_error"
)

// Rejection is the protocol error triple carried by a rejected stage.
type Rejection struct {
	Code        string
	Description string
	URI         string
}

// StageContext is implemented by every stage-context variant. One instance
// exists per stage per operation; handlers observe and mutate it in order.
type StageContext interface {
	Transaction() *Transaction
	ContextType() ContextType
	Outcome() Outcome

	// Rejection returns the error triple and true when the outcome is
	// OutcomeRejected.
	Rejection() (Rejection, bool)

	// Reject aborts the whole operation with a protocol error. An empty
	// code defaults to "invalid_request".
	Reject(code, description, uri string)

	// MarkHandled signals the handler fully computed the stage's result.
	MarkHandled()

	// SkipDefault suppresses the stage's built-in default logic while
	// letting the rest of the operation proceed.
	SkipDefault()
}

// baseContext carries the outcome machinery shared by all stage contexts.
// The outcome is monotonic: once it leaves OutcomeContinue the first writer
// wins and later calls are ignored.
type baseContext struct {
	txn   *Transaction
	ctype ContextType

	outcome   Outcome
	rejection Rejection
}

func newBaseContext(txn *Transaction, stage Stage) baseContext {
	return baseContext{txn: txn, ctype: ContextTypeFor(txn.Operation, stage)}
}

func (c *baseContext) Transaction() *Transaction { return c.txn }
func (c *baseContext) ContextType() ContextType  { return c.ctype }
func (c *baseContext) Outcome() Outcome          { return c.outcome }

func (c *baseContext) Rejection() (Rejection, bool) {
	if c.outcome != OutcomeRejected {
		return Rejection{}, false
	}
	return c.rejection, true
}

func (c *baseContext) Reject(code, description, uri string) {
	if c.outcome != OutcomeContinue {
		return
	}
	if code == "" {
		code = ErrorInvalidRequest
	}
	c.outcome = OutcomeRejected
	c.rejection = Rejection{Code: code, Description: description, URI: uri}
}

func (c *baseContext) MarkHandled() {
	if c.outcome != OutcomeContinue {
		return
	}
	c.outcome = OutcomeHandled
}

func (c *baseContext) SkipDefault() {
	if c.outcome != OutcomeContinue {
		return
	}
	c.outcome = OutcomeSkipped
}

// ExtractContext populates the logical request from raw transport input.
type ExtractContext struct {
	baseContext

	// AuthorizationHeader is the raw Authorization header value, when the
	// transport carried one.
	AuthorizationHeader string

	// Token receives the credential extracted from the raw input. It is
	// handed to the Validate stage by the endpoint driver.
	Token string
}

// NewExtractContext creates the Extract stage context for the transaction's
// operation kind.
func NewExtractContext(txn *Transaction) *ExtractContext {
	return &ExtractContext{baseContext: newBaseContext(txn, StageExtract)}
}

// ValidateContext authenticates and authorizes the extracted request.
type ValidateContext struct {
	baseContext

	// Token is the credential to authenticate, as produced by Extract.
	Token string
}

// NewValidateContext creates the Validate stage context.
func NewValidateContext(txn *Transaction, token string) *ValidateContext {
	return &ValidateContext{baseContext: newBaseContext(txn, StageValidate), Token: token}
}

// HandleContext computes the operation's domain result.
type HandleContext struct {
	baseContext

	// Token is the raw credential, for operations that act on the token
	// itself (revocation) rather than on the principal.
	Token string

	// Claims is the computed claim set for claim-producing operations
	// (userinfo). Keyed by claim name.
	Claims Params
}

// NewHandleContext creates the Handle stage context.
func NewHandleContext(txn *Transaction, token string) *HandleContext {
	return &HandleContext{
		baseContext: newBaseContext(txn, StageHandle),
		Token:       token,
		Claims:      make(Params),
	}
}

// ApplyContext serializes the computed result into response parameters.
type ApplyContext struct {
	baseContext

	// Claims is the result handed over from the Handle stage.
	Claims Params
}

// NewApplyContext creates the Apply stage context.
func NewApplyContext(txn *Transaction, claims Params) *ApplyContext {
	if claims == nil {
		claims = make(Params)
	}
	return &ApplyContext{baseContext: newBaseContext(txn, StageApply), Claims: claims}
}

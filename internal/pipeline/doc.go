// Package pipeline implements the ordered request-processing pipeline that
// drives every protocol endpoint.
//
// Each inbound operation owns one Transaction and passes through four fixed
// stages: Extract, Validate, Handle, Apply. A stage is represented by a
// mutable context object that flows through a priority-ordered chain of
// pluggable handlers. A handler may let the default logic proceed, reject
// the operation with a protocol error, mark the stage fully handled, or
// suppress the stage's built-in logic while the rest of the operation
// continues.
//
// # Ordering
//
// Handlers register against a context type such as "userinfo.validate"
// with an explicit signed order; chains execute in (order ascending,
// registration sequence ascending). Each stage carries exactly one built-in
// default handler at DefaultHandlerOrder, so custom handlers insert before
// or after it deterministically.
//
// # Short-circuiting
//
// The first handler to move a stage's outcome away from Continue wins: no
// later handler in that stage runs. Rejected additionally aborts all later
// stages; Handled and Skipped let the rest of the operation proceed, with
// Handled giving the custom response precedence during composition.
//
// Registries are assembled once at configuration time; the request path
// only iterates precomputed Snapshot chains, so no request ever mutates
// shared state.
package pipeline

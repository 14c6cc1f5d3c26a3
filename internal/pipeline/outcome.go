package pipeline

// Outcome is the per-stage short-circuit signal. Every stage context starts
// at OutcomeContinue; the first handler to move it away from Continue wins
// and no handler after it in the same stage runs.
type Outcome int

const (
	// OutcomeContinue lets the stage's remaining handlers, including the
	// built-in default, execute normally.
	OutcomeContinue Outcome = iota

	// OutcomeRejected aborts the entire operation. The final wire response
	// is a protocol error object.
	OutcomeRejected

	// OutcomeHandled signals that a handler fully computed the stage's
	// result itself. Remaining handlers in the current stage are skipped,
	// but later stages still run so response formatting happens normally.
	OutcomeHandled

	// OutcomeSkipped suppresses the stage's built-in default logic without
	// aborting the operation. Later stages proceed on whatever state the
	// transaction already carries.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomeRejected:
		return "rejected"
	case OutcomeHandled:
		return "handled"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

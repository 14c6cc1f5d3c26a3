package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline runs stage contexts through their handler chains. It holds an
// atomically swappable Snapshot so a configuration reload never disturbs
// in-flight operations: each stage run iterates the snapshot it loaded.
type Pipeline struct {
	snap   atomic.Pointer[Snapshot]
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline executing the given snapshot's handler chains.
func New(snap *Snapshot, opts ...Option) *Pipeline {
	p := &Pipeline{
		logger: slog.Default(),
		tracer: otel.Tracer("authpipe/pipeline"),
	}
	p.snap.Store(snap)
	for _, o := range opts {
		o(p)
	}
	return p
}

// Swap installs a rebuilt snapshot. In-flight stage runs keep the snapshot
// they started with.
func (p *Pipeline) Swap(snap *Snapshot) {
	p.snap.Store(snap)
}

// RunStage invokes the context type's handlers one at a time, in order,
// against the same stage context. After each invocation, a non-Continue
// outcome stops the stage immediately. A handler error aborts the operation
// as a HandlerFailure; context cancellation stops invocation and returns
// ctx.Err() so the driver does not attempt to deliver a response.
func (p *Pipeline) RunStage(ctx context.Context, sc StageContext) error {
	chain := p.snap.Load().Handlers(sc.ContextType())

	ctx, span := p.tracer.Start(ctx, "pipeline.stage",
		trace.WithAttributes(
			attribute.String("pipeline.context_type", string(sc.ContextType())),
			attribute.String("pipeline.transaction_id", sc.Transaction().ID),
		))
	defer span.End()

	for _, d := range chain {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := d.Handler(ctx, sc); err != nil {
			p.logger.Error("pipeline handler failed",
				slog.String("context_type", string(sc.ContextType())),
				slog.String("handler", d.Name),
				slog.String("transaction_id", sc.Transaction().ID),
				slog.String("error", err.Error()),
			)
			return &HandlerFailure{ContextType: sc.ContextType(), Handler: d.Name, Err: err}
		}

		if sc.Outcome() != OutcomeContinue {
			p.logger.Debug("pipeline stage short-circuited",
				slog.String("context_type", string(sc.ContextType())),
				slog.String("handler", d.Name),
				slog.String("outcome", sc.Outcome().String()),
			)
			break
		}
	}

	span.SetAttributes(attribute.String("pipeline.outcome", sc.Outcome().String()))

	if sc.Outcome() == OutcomeHandled {
		sc.Transaction().markHandled()
	}
	return nil
}

package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler is one pluggable unit of pipeline logic. It receives exclusive
// write access to the stage context for the duration of the call and may
// block on I/O; handlers within a stage never run concurrently.
type Handler func(ctx context.Context, sc StageContext) error

// HandlerFor adapts a handler typed on a concrete stage context. The
// registry keys descriptors by context type, so for a correctly registered
// handler the assertion cannot fail; a mismatch is reported as a handler
// failure rather than a panic.
func HandlerFor[C StageContext](fn func(ctx context.Context, sc C) error) Handler {
	return func(ctx context.Context, sc StageContext) error {
		c, ok := sc.(C)
		if !ok {
			return fmt.Errorf("handler expects %T, got %T", c, sc)
		}
		return fn(ctx, c)
	}
}

// DefaultHandlerOrder is the fixed order value of each stage's built-in
// default handler. Custom handlers register with a lower order to run
// before the default, or a higher one to run after it.
const DefaultHandlerOrder = 0

// Descriptor binds a handler to a stage-context type at an explicit order.
type Descriptor struct {
	// Name is the handler's identity, used for replace semantics. Unique
	// within one context type.
	Name string

	// ContextType selects the stage-context variant this handler applies to.
	ContextType ContextType

	// Order positions the handler within its context type's chain,
	// ascending. Ties are broken by registration sequence.
	Order int

	// Default marks the stage's built-in handler. At most one descriptor
	// per context type may carry it, and its order must be
	// DefaultHandlerOrder.
	Default bool

	// Replace lets this registration take over an earlier one with the
	// same name. Passing the same Order keeps the original chain position;
	// a different Order moves it.
	Replace bool

	Handler Handler
}

type registration struct {
	Descriptor
	seq int
}

// Registry maintains, per context type, the set of registered handler
// descriptors. Registration is additive and happens at configuration time;
// the per-request path only iterates Snapshot chains built from it.
type Registry struct {
	mu    sync.Mutex
	seq   int
	items []registration
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a descriptor. A duplicate (context type, name) identity
// without replace intent is rejected with a ConfigurationError. A replace
// registration keeps the original registration sequence so equal-order ties
// preserve the replaced handler's position.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return &ConfigurationError{ContextType: d.ContextType, Reason: "handler name must not be empty"}
	}
	if d.ContextType == "" {
		return &ConfigurationError{Name: d.Name, Reason: "context type must not be empty"}
	}
	if d.Handler == nil {
		return &ConfigurationError{ContextType: d.ContextType, Name: d.Name, Reason: "handler must not be nil"}
	}
	if d.Default && d.Order != DefaultHandlerOrder {
		return &ConfigurationError{
			ContextType: d.ContextType,
			Name:        d.Name,
			Reason:      fmt.Sprintf("default handler must use order %d, got %d", DefaultHandlerOrder, d.Order),
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.items {
		if existing.ContextType != d.ContextType || existing.Name != d.Name {
			continue
		}
		if !d.Replace {
			return &ConfigurationError{
				ContextType: d.ContextType,
				Name:        d.Name,
				Reason:      "already registered without replace intent",
			}
		}
		r.items[i] = registration{Descriptor: d, seq: existing.seq}
		return nil
	}

	r.items = append(r.items, registration{Descriptor: d, seq: r.seq})
	r.seq++
	return nil
}

// Build validates the registered set and produces an immutable Snapshot
// with each context type's chain sorted by (order ascending, registration
// sequence ascending). Called once per configuration change, never per
// request.
func (r *Registry) Build() (*Snapshot, error) {
	r.mu.Lock()
	byType := make(map[ContextType][]registration)
	for _, item := range r.items {
		byType[item.ContextType] = append(byType[item.ContextType], item)
	}
	r.mu.Unlock()

	chains := make(map[ContextType][]Descriptor, len(byType))
	for ctype, regs := range byType {
		var defaultName string
		for _, reg := range regs {
			if !reg.Default {
				continue
			}
			if defaultName != "" {
				return nil, &ConfigurationError{
					ContextType: ctype,
					Name:        reg.Name,
					Reason:      fmt.Sprintf("second default handler, %q is already the default", defaultName),
				}
			}
			defaultName = reg.Name
		}

		sort.SliceStable(regs, func(i, j int) bool {
			if regs[i].Order != regs[j].Order {
				return regs[i].Order < regs[j].Order
			}
			return regs[i].seq < regs[j].seq
		})

		chain := make([]Descriptor, len(regs))
		for i, reg := range regs {
			chain[i] = reg.Descriptor
		}
		chains[ctype] = chain
	}

	return &Snapshot{chains: chains}, nil
}

// Snapshot is an immutable, precomputed view of the registry shared
// read-only by all per-request executions.
type Snapshot struct {
	chains map[ContextType][]Descriptor
}

// Handlers returns the ordered handler chain for a context type. The
// returned slice must not be mutated.
func (s *Snapshot) Handlers(ctype ContextType) []Descriptor {
	return s.chains[ctype]
}

// ContextTypes returns the context types that have at least one handler.
func (s *Snapshot) ContextTypes() []ContextType {
	types := make([]ContextType, 0, len(s.chains))
	for ct := range s.chains {
		types = append(types, ct)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

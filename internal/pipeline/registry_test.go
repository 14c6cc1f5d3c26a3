package pipeline

import (
	"context"
	"testing"
)

func nopHandler(ctx context.Context, sc StageContext) error { return nil }

func chainNames(t *testing.T, snap *Snapshot, ctype ContextType) []string {
	t.Helper()
	chain := snap.Handlers(ctype)
	names := make([]string, len(chain))
	for i, d := range chain {
		names[i] = d.Name
	}
	return names
}

func TestRegistry_OrderThenRegistrationSequence(t *testing.T) {
	ctype := ContextTypeFor(OperationUserinfo, StageHandle)
	other := ContextTypeFor(OperationRevocation, StageHandle)

	r := NewRegistry()
	// Interleave registrations across unrelated context types to show
	// sequence numbering is global but ordering is per chain.
	regs := []Descriptor{
		{Name: "tie-one", ContextType: ctype, Order: 5, Handler: nopHandler},
		{Name: "unrelated", ContextType: other, Order: 1, Handler: nopHandler},
		{Name: "first", ContextType: ctype, Order: -3, Handler: nopHandler},
		{Name: "tie-two", ContextType: ctype, Order: 5, Handler: nopHandler},
		{Name: "default", ContextType: ctype, Order: DefaultHandlerOrder, Default: true, Handler: nopHandler},
	}
	for _, d := range regs {
		if err := r.Register(d); err != nil {
			t.Fatalf("register %q: %v", d.Name, err)
		}
	}

	snap, err := r.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got := chainNames(t, snap, ctype)
	want := []string{"first", "default", "tie-one", "tie-two"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestRegistry_DuplicateWithoutReplaceIsRejected(t *testing.T) {
	ctype := ContextTypeFor(OperationUserinfo, StageValidate)

	r := NewRegistry()
	if err := r.Register(Descriptor{Name: "auth", ContextType: ctype, Handler: nopHandler}); err != nil {
		t.Fatalf("first register: %v", err)
	}

	err := r.Register(Descriptor{Name: "auth", ContextType: ctype, Order: 7, Handler: nopHandler})
	if err == nil {
		t.Fatal("expected error on duplicate identity")
	}
	if !IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
}

func TestRegistry_ReplaceKeepsChainPosition(t *testing.T) {
	ctype := ContextTypeFor(OperationUserinfo, StageValidate)

	r := NewRegistry()
	for _, d := range []Descriptor{
		{Name: "a", ContextType: ctype, Order: 1, Handler: nopHandler},
		{Name: "b", ContextType: ctype, Order: 1, Handler: nopHandler},
		{Name: "c", ContextType: ctype, Order: 1, Handler: nopHandler},
	} {
		if err := r.Register(d); err != nil {
			t.Fatalf("register %q: %v", d.Name, err)
		}
	}

	// Replacing "a" at the same order must keep it ahead of its
	// equal-order peers even though the replacement came last.
	var replaced bool
	err := r.Register(Descriptor{
		Name: "a", ContextType: ctype, Order: 1, Replace: true,
		Handler: func(ctx context.Context, sc StageContext) error {
			replaced = true
			return nil
		},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	snap, err := r.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got := chainNames(t, snap, ctype)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if err := snap.Handlers(ctype)[0].Handler(context.Background(), NewValidateContext(NewTransaction(OperationUserinfo), "")); err != nil {
		t.Fatalf("replaced handler: %v", err)
	}
	if !replaced {
		t.Error("expected replacement handler body to run")
	}
}

func TestRegistry_ReplaceWithNewOrderMoves(t *testing.T) {
	ctype := ContextTypeFor(OperationUserinfo, StageValidate)

	r := NewRegistry()
	for _, d := range []Descriptor{
		{Name: "a", ContextType: ctype, Order: 1, Handler: nopHandler},
		{Name: "b", ContextType: ctype, Order: 2, Handler: nopHandler},
	} {
		if err := r.Register(d); err != nil {
			t.Fatalf("register %q: %v", d.Name, err)
		}
	}
	if err := r.Register(Descriptor{Name: "a", ContextType: ctype, Order: 3, Replace: true, Handler: nopHandler}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	snap, err := r.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got := chainNames(t, snap, ctype)
	if got[0] != "b" || got[1] != "a" {
		t.Errorf("expected explicit reorder to move the handler, got %v", got)
	}
}

func TestRegistry_SecondDefaultIsRejected(t *testing.T) {
	ctype := ContextTypeFor(OperationUserinfo, StageApply)

	r := NewRegistry()
	if err := r.Register(Descriptor{Name: "builtin", ContextType: ctype, Default: true, Handler: nopHandler}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(Descriptor{Name: "impostor", ContextType: ctype, Default: true, Handler: nopHandler}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := r.Build()
	if !IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError for second default, got %v", err)
	}
}

func TestRegistry_DefaultMustSitAtFixedOrder(t *testing.T) {
	err := NewRegistry().Register(Descriptor{
		Name:        "builtin",
		ContextType: ContextTypeFor(OperationUserinfo, StageApply),
		Order:       3,
		Default:     true,
		Handler:     nopHandler,
	})
	if !IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError for misplaced default, got %v", err)
	}
}

func TestRegistry_RejectsIncompleteDescriptors(t *testing.T) {
	ctype := ContextTypeFor(OperationUserinfo, StageExtract)
	cases := []struct {
		name string
		d    Descriptor
	}{
		{"empty name", Descriptor{ContextType: ctype, Handler: nopHandler}},
		{"empty context type", Descriptor{Name: "x", Handler: nopHandler}},
		{"nil handler", Descriptor{Name: "x", ContextType: ctype}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := NewRegistry().Register(tc.d); !IsConfigurationError(err) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

package hook

import (
	"context"
	"testing"

	"github.com/xraph/concierge/order"
)

type namedHook struct {
	name string
}

func (h *namedHook) Name() string { return h.name }

type submitHook struct {
	namedHook
	calls int
}

func (h *submitHook) OnOrderSubmitted(_ context.Context, _ *order.Order) error {
	h.calls++
	return nil
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&namedHook{name: "audit"}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := r.Register(&namedHook{name: "audit"}); err == nil {
		t.Error("expected error for duplicate hook name")
	}
	if r.Count() != 1 {
		t.Errorf("Count: got %d, want 1", r.Count())
	}
}

func TestGetAndList(t *testing.T) {
	r := NewRegistry()

	h := &namedHook{name: "audit"}
	if err := r.Register(h); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if got := r.Get("audit"); got != h {
		t.Errorf("Get: got %v, want %v", got, h)
	}
	if got := r.Get("missing"); got != nil {
		t.Errorf("Get(missing): got %v, want nil", got)
	}
	if list := r.List(); len(list) != 1 {
		t.Errorf("List: got %d hooks, want 1", len(list))
	}
}

func TestEmitDispatchesOnlyToImplementers(t *testing.T) {
	r := NewRegistry()

	plain := &namedHook{name: "plain"}
	sub := &submitHook{namedHook: namedHook{name: "submit"}}

	if err := r.Register(plain); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(sub); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	r.EmitOrderSubmitted(context.Background(), &order.Order{})
	r.EmitOrderSubmitted(context.Background(), &order.Order{})

	if sub.calls != 2 {
		t.Errorf("submit hook calls: got %d, want 2", sub.calls)
	}
}

package indicator

import (
	"errors"
	"testing"

	"stockdbv1/internal/model"
)

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestResolver_DependenciesBeforeDependents(t *testing.T) {
	r := NewResolver()
	order := r.Resolve([]string{"macd", "rsi", "bollinger_bands"})

	ma := indexOf(order, "moving_average")
	if ma == -1 {
		t.Fatalf("required ancestor moving_average missing from order %v", order)
	}
	if macd := indexOf(order, "macd"); macd < ma {
		t.Errorf("macd at %d before moving_average at %d", macd, ma)
	}
	if bb := indexOf(order, "bollinger_bands"); bb < ma {
		t.Errorf("bollinger_bands at %d before moving_average at %d", bb, ma)
	}
	if indexOf(order, "rsi") == -1 {
		t.Error("requested rsi missing from order")
	}
	if len(order) != 4 {
		t.Errorf("order %v has %d entries, want 4", order, len(order))
	}
}

func TestResolver_Deterministic(t *testing.T) {
	r := NewResolver()
	first := r.Resolve([]string{"obv", "macd", "cci"})
	for i := 0; i < 5; i++ {
		again := r.Resolve([]string{"obv", "macd", "cci"})
		if len(again) != len(first) {
			t.Fatalf("order length changed: %v vs %v", again, first)
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("order not deterministic: %v vs %v", again, first)
			}
		}
	}
}

func TestResolver_CycleRejectedAtRegistration(t *testing.T) {
	r := NewResolver()
	if err := r.Add("a", "b", DepRequired); err != nil {
		t.Fatalf("a->b: %v", err)
	}
	if err := r.Add("b", "c", DepRequired); err != nil {
		t.Fatalf("b->c: %v", err)
	}
	err := r.Add("c", "a", DepRequired)
	if !errors.Is(err, model.ErrCircularDependency) {
		t.Fatalf("c->a should close a cycle, got %v", err)
	}
	// Graph unchanged: c still has no dependencies.
	if len(r.Dependencies("c")) != 0 {
		t.Error("rejected edge was recorded")
	}
	// Self-dependency is the trivial cycle.
	if err := r.Add("a", "a", DepRequired); !errors.Is(err, model.ErrCircularDependency) {
		t.Fatalf("self edge should fail, got %v", err)
	}
}

func TestResolver_OptionalEdgesDoNotExpandResolve(t *testing.T) {
	r := NewResolver()
	if err := r.Add("obv", "moving_average", DepOptional); err != nil {
		t.Fatalf("add optional: %v", err)
	}
	order := r.Resolve([]string{"obv"})
	if len(order) != 1 || order[0] != "obv" {
		t.Fatalf("optional dependency pulled into order: %v", order)
	}
}

func TestResolver_Validate(t *testing.T) {
	r := NewResolver()
	if r.Validate("macd", map[string]bool{}) {
		t.Error("macd without moving_average should not validate")
	}
	if !r.Validate("macd", map[string]bool{"moving_average": true}) {
		t.Error("macd with moving_average available should validate")
	}
	if !r.Validate("rsi", map[string]bool{}) {
		t.Error("rsi has no required deps and should validate")
	}
}

func TestRegistry_UnknownName(t *testing.T) {
	reg := NewDefaultRegistry()
	_, err := reg.New("vortex", nil)
	if !errors.Is(err, model.ErrUnregisteredIndicator) {
		t.Fatalf("unknown indicator error = %v", err)
	}
}

func TestRegistry_ListsAllBuiltins(t *testing.T) {
	reg := NewDefaultRegistry()
	want := []string{
		"bollinger_bands", "cci", "ichimoku_cloud", "macd", "moving_average",
		"obv", "parabolic_sar", "rsi", "stochastic", "williams_r",
	}
	got := reg.List()
	if len(got) != len(want) {
		t.Fatalf("registry has %d indicators, want %d", len(got), len(want))
	}
	for i, d := range got {
		if d.Name != want[i] {
			t.Errorf("registry[%d] = %s, want %s", i, d.Name, want[i])
		}
	}
}

func TestRegistry_OverridesApplied(t *testing.T) {
	reg := NewDefaultRegistry()
	ind, err := reg.New("rsi", Params{"period": 7})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	// period+10 with a floor at 20.
	if got := ind.MinDataPoints(); got != 20 {
		t.Errorf("MinDataPoints = %d, want 20", got)
	}
}

package filter

import (
	"errors"
	"sort"
	"strings"
	"testing"
)

// stubFilter returns fixed fragments regardless of input.
type stubFilter struct {
	name  string
	frags []string
	err   error
	calls int
}

func (s *stubFilter) Apply(string) ([]string, error) {
	s.calls++
	return s.frags, s.err
}

func (s *stubFilter) Name() string { return s.name }

func TestNewChain_RejectsEmptyAndUnknown(t *testing.T) {
	if _, err := NewChain(StrategySequence); err == nil {
		t.Error("expected error for empty filter list")
	}
	f, _ := NewCSS("p", true)
	if _, err := NewChain(Strategy("bogus"), f); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestChain_SequenceFolds(t *testing.T) {
	outer, err := NewCSS(".product", false)
	if err != nil {
		t.Fatal(err)
	}
	inner, err := NewCSS(".price", true)
	if err != nil {
		t.Fatal(err)
	}
	chain, err := NewChain(StrategySequence, outer, inner)
	if err != nil {
		t.Fatal(err)
	}

	got, err := chain.Apply(`<div class="product"><span class="price">€19,90</span></div>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "€19,90" {
		t.Errorf("got %v, want [€19,90]", got)
	}
}

func TestChain_SequenceShortCircuitsOnEmpty(t *testing.T) {
	empty := &stubFilter{name: "empty"}
	never := &stubFilter{name: "never", frags: []string{"x"}}
	chain, err := NewChain(StrategySequence, empty, never)
	if err != nil {
		t.Fatal(err)
	}

	got, err := chain.Apply("<html></html>")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
	if never.calls != 0 {
		t.Error("later stage ran after empty intermediate result")
	}
}

func TestChain_AllIntersects(t *testing.T) {
	a := &stubFilter{name: "a", frags: []string{"one", "two ", "three"}}
	b := &stubFilter{name: "b", frags: []string{"two", "three", "four"}}
	chain, err := NewChain(StrategyAll, a, b)
	if err != nil {
		t.Fatal(err)
	}

	got, err := chain.Apply("x")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(got)
	if strings.Join(got, ",") != "three,two" {
		t.Errorf("got %v, want [three two]", got)
	}
}

func TestChain_AnyUnions(t *testing.T) {
	a := &stubFilter{name: "a", frags: []string{"one", "two"}}
	b := &stubFilter{name: "b", frags: []string{"two", "three"}}
	chain, err := NewChain(StrategyAny, a, b)
	if err != nil {
		t.Fatal(err)
	}

	got, err := chain.Apply("x")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "one,two,three" {
		t.Errorf("got %v, want union without duplicates", got)
	}
}

func TestChain_AllAndAnyCommutative(t *testing.T) {
	a := &stubFilter{name: "a", frags: []string{"one", "two"}}
	b := &stubFilter{name: "b", frags: []string{"two", "three"}}

	for _, strategy := range []Strategy{StrategyAll, StrategyAny} {
		fwd, _ := NewChain(strategy, a, b)
		rev, _ := NewChain(strategy, b, a)

		got1, err := fwd.Apply("x")
		if err != nil {
			t.Fatal(err)
		}
		got2, err := rev.Apply("x")
		if err != nil {
			t.Fatal(err)
		}
		sort.Strings(got1)
		sort.Strings(got2)
		if strings.Join(got1, ",") != strings.Join(got2, ",") {
			t.Errorf("%s not commutative: %v vs %v", strategy, got1, got2)
		}
	}
}

func TestChain_Nesting(t *testing.T) {
	inner, err := NewChain(StrategyAny,
		&stubFilter{name: "a", frags: []string{"one"}},
		&stubFilter{name: "b", frags: []string{"two"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	outer, err := NewChain(StrategySequence, inner, &stubFilter{name: "c", frags: []string{"done"}})
	if err != nil {
		t.Fatal(err)
	}

	got, err := outer.Apply("x")
	if err != nil {
		t.Fatal(err)
	}
	// The stub ignores input, so two inner fragments produce two outputs.
	if len(got) != 2 {
		t.Errorf("got %v", got)
	}
}

func TestChain_StageErrorSurfaces(t *testing.T) {
	boom := errors.New("bad stage")
	chain, err := NewChain(StrategySequence, &stubFilter{name: "x", err: boom})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := chain.Apply("x"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}

func TestChain_Named(t *testing.T) {
	chain, err := NewChain(StrategyAny, &stubFilter{name: "a", frags: []string{"one"}})
	if err != nil {
		t.Fatal(err)
	}
	if chain.Named("main-content").ChainName() != "main-content" {
		t.Error("chain name not set")
	}
}

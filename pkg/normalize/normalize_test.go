package normalize

import (
	"errors"
	"strings"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "Warfarin", "warfarin"},
		{"trim", "  ibuprofen  ", "ibuprofen"},
		{"collapse whitespace", "st.  john's   wort", "st. john's wort"},
		{"slash spacing", "amlodipine / benazepril", "amlodipine/benazepril"},
		{"slash left space", "amlodipine /benazepril", "amlodipine/benazepril"},
		{"tabs and newlines", "fish\toil\n1000mg", "fish oil 1000mg"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Canonicalize(tt.input)
			if got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []string{"Warfarin ", "  Amlodipine / Benazepril", "FISH  OIL", "st. john's wort"}
	for _, in := range inputs {
		once := Canonicalize(in)
		twice := Canonicalize(once)
		if once != twice {
			t.Errorf("Canonicalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestPairKey_Symmetric(t *testing.T) {
	if PairKey("warfarin", "ibuprofen") != PairKey("ibuprofen", "warfarin") {
		t.Error("PairKey is not symmetric")
	}
	if PairKey(" Warfarin", "IBUPROFEN ") != "ibuprofen::warfarin" {
		t.Errorf("PairKey canonical form wrong: %q", PairKey(" Warfarin", "IBUPROFEN "))
	}
}

func TestItems_Validation(t *testing.T) {
	if _, err := Items(nil); err == nil {
		t.Error("expected error for empty input")
	}

	eleven := make([]string, 11)
	for i := range eleven {
		eleven[i] = "drug"
	}
	_, err := Items(eleven)
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Errorf("expected InvalidInputError for 11 items, got %v", err)
	}

	if _, err := Items([]string{"warfarin", "   "}); err == nil {
		t.Error("expected error for blank item")
	}

	items, err := Items([]string{"Warfarin", "ibuprofen"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items[0].Normalized != "warfarin" || items[0].Original != "Warfarin" {
		t.Errorf("unexpected item: %+v", items[0])
	}
}

func TestPairsAndTriples_Counts(t *testing.T) {
	tests := []struct {
		n       int
		pairs   int
		triples int
	}{
		{1, 0, 0},
		{2, 1, 0},
		{3, 3, 1},
		{10, 45, 120},
	}

	for _, tt := range tests {
		values := make([]string, tt.n)
		for i := range values {
			values[i] = "item" + strings.Repeat("x", i+1)
		}
		items, err := Items(values)
		if err != nil {
			t.Fatalf("Items(%d): %v", tt.n, err)
		}
		if got := len(Pairs(items)); got != tt.pairs {
			t.Errorf("n=%d: got %d pairs, want %d", tt.n, got, tt.pairs)
		}
		if got := len(Triples(items)); got != tt.triples {
			t.Errorf("n=%d: got %d triples, want %d", tt.n, got, tt.triples)
		}
	}
}

func TestUnique_DropsCanonicalDuplicates(t *testing.T) {
	items, err := Items([]string{"Warfarin", "warfarin ", "ibuprofen"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u := Unique(items)
	if len(u) != 2 {
		t.Fatalf("expected 2 unique items, got %d", len(u))
	}
	if u[0].Original != "Warfarin" {
		t.Errorf("expected first occurrence preserved, got %q", u[0].Original)
	}
	if got := len(Pairs(items)); got != 1 {
		t.Errorf("duplicates must not create self-pairs: got %d pairs", got)
	}
}

func TestTripleKey_OrderInsensitive(t *testing.T) {
	a := TripleKey("c", "a", "b")
	b := TripleKey("B", "C", "A")
	if a != b || a != "a::b::c" {
		t.Errorf("TripleKey unstable: %q vs %q", a, b)
	}
}

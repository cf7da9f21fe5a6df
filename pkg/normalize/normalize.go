package normalize

import (
	"fmt"
	"sort"
	"strings"
)

// MaxItems is the policy bound on the number of items in a single request.
const MaxItems = 10

// PairKeySeparator joins the two canonical values of a pair key.
const PairKeySeparator = "::"

// Item is a single analyzed item: the canonical value used for caching and
// matching, plus the original string as the user typed it.
type Item struct {
	Normalized string `json:"normalized"`
	Original   string `json:"original"`
}

// InvalidInputError reports a request that violates the input policy.
// The message is safe to return to the caller verbatim.
type InvalidInputError struct {
	Reason string
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// Canonicalize returns the canonical form of an item name: trimmed,
// lowercased, with internal whitespace runs collapsed to a single space and
// whitespace around "/" removed so combination products share one spelling
// ("amlodipine / benazepril" == "amlodipine/benazepril").
//
// Canonicalize is idempotent: Canonicalize(Canonicalize(s)) == Canonicalize(s).
func Canonicalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, " /", "/")
	s = strings.ReplaceAll(s, "/ ", "/")
	return s
}

// PairKey returns the order-insensitive cache key for a pair of item names.
// Inputs are canonicalized, sorted lexicographically, and joined with "::",
// so PairKey(a, b) == PairKey(b, a) and the key is stable across processes.
func PairKey(a, b string) string {
	ca, cb := Canonicalize(a), Canonicalize(b)
	if ca > cb {
		ca, cb = cb, ca
	}
	return ca + PairKeySeparator + cb
}

// Items validates and canonicalizes a list of raw item names.
// It fails when the list is empty, exceeds MaxItems, or contains an entry
// that canonicalizes to the empty string.
func Items(values []string) ([]Item, error) {
	if len(values) == 0 {
		return nil, &InvalidInputError{Reason: "at least one item is required"}
	}
	if len(values) > MaxItems {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("at most %d items are supported, got %d", MaxItems, len(values))}
	}

	items := make([]Item, 0, len(values))
	for i, v := range values {
		c := Canonicalize(v)
		if c == "" {
			return nil, &InvalidInputError{Reason: fmt.Sprintf("item %d is empty", i+1)}
		}
		items = append(items, Item{Normalized: c, Original: v})
	}
	return items, nil
}

// Unique returns the items deduplicated by canonical value, preserving the
// first occurrence of each. Pair and triple enumeration operates on the
// unique set so duplicate inputs never produce a self-pair.
func Unique(items []Item) []Item {
	seen := make(map[string]bool, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if seen[it.Normalized] {
			continue
		}
		seen[it.Normalized] = true
		out = append(out, it)
	}
	return out
}

// Pairs enumerates every unordered pair of canonically distinct items.
// For n unique items it returns n*(n-1)/2 pairs.
func Pairs(items []Item) [][2]Item {
	u := Unique(items)
	var pairs [][2]Item
	for i := 0; i < len(u); i++ {
		for j := i + 1; j < len(u); j++ {
			pairs = append(pairs, [2]Item{u[i], u[j]})
		}
	}
	return pairs
}

// Triples enumerates every unordered triple of canonically distinct items.
// No two triples share the same canonical set. For n unique items it returns
// n*(n-1)*(n-2)/6 triples.
func Triples(items []Item) [][3]Item {
	u := Unique(items)
	var triples [][3]Item
	for i := 0; i < len(u); i++ {
		for j := i + 1; j < len(u); j++ {
			for k := j + 1; k < len(u); k++ {
				triples = append(triples, [3]Item{u[i], u[j], u[k]})
			}
		}
	}
	return triples
}

// TripleKey returns a stable identifier for a triple: the three canonical
// values sorted and joined with "::". Used for in-memory bookkeeping only;
// triples are never persisted.
func TripleKey(a, b, c string) string {
	vals := []string{Canonicalize(a), Canonicalize(b), Canonicalize(c)}
	sort.Strings(vals)
	return strings.Join(vals, PairKeySeparator)
}

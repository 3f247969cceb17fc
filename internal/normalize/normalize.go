// Package normalize repairs encoding damage (mojibake) in text fields using an
// injected substitution table.
//
// A Table is an ordered list of byte-sequence rules. Compile turns it into a
// read-only Normalizer that is safe for concurrent use. Matching is a single
// left-to-right scan; at every offset the longest matching rule wins, and the
// table order only decides between exact duplicates (the first one wins).
//
// Normalize is total and idempotent. Each pass composes the text to NFC and
// applies the rules once; passes repeat until the text stops changing. Input
// that does not settle within maxPasses is returned unchanged, so repeated
// application can never drift.
package normalize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// maxPasses bounds the fixpoint iteration in Normalize.
const maxPasses = 8

// Rule replaces every occurrence of From with To.
type Rule struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Table is a named, versioned, ordered rule list.
type Table struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules"`
}

// Normalizer applies a compiled Table. The zero value is not usable; use
// Compile. A nil *Normalizer passes text through unchanged.
type Normalizer struct {
	name    string
	version string
	// buckets holds rules keyed by the first byte of From, longest first.
	buckets [256][]Rule
	rules   int
	dropped []Rule
}

// Compile validates t and builds a Normalizer.
//
// Rules with an empty From are an error. Identity rules, later duplicates of
// an earlier From, and rules whose replacement text would itself be rewritten
// by the table are dropped and reported by Dropped.
func Compile(t Table) (*Normalizer, error) {
	n := &Normalizer{name: t.Name, version: t.Version}

	seen := make(map[string]struct{}, len(t.Rules))
	kept := make([]Rule, 0, len(t.Rules))
	for i, r := range t.Rules {
		if r.From == "" {
			return nil, fmt.Errorf("normalize: table %q rule %d has empty from", t.Name, i)
		}
		if _, dup := seen[r.From]; dup || r.From == r.To {
			n.dropped = append(n.dropped, r)
			continue
		}
		seen[r.From] = struct{}{}
		kept = append(kept, r)
	}

	// A rule is stable when one pass over its own replacement is a no-op.
	// Dropping one rule can only make others more stable, so this settles.
	for {
		n.index(kept)
		var next []Rule
		for _, r := range kept {
			if n.pass(r.To) != r.To {
				n.dropped = append(n.dropped, r)
				continue
			}
			next = append(next, r)
		}
		if len(next) == len(kept) {
			break
		}
		kept = next
	}
	return n, nil
}

// MustCompile is like Compile but panics on error. It is meant for the
// embedded default tables.
func MustCompile(t Table) *Normalizer {
	n, err := Compile(t)
	if err != nil {
		panic(err)
	}
	return n
}

func (n *Normalizer) index(rules []Rule) {
	for i := range n.buckets {
		n.buckets[i] = n.buckets[i][:0]
	}
	for _, r := range rules {
		b := r.From[0]
		n.buckets[b] = append(n.buckets[b], r)
	}
	for i := range n.buckets {
		sortLongestFirst(n.buckets[i])
	}
	n.rules = len(rules)
}

// sortLongestFirst is a stable insertion sort by descending From length.
// Buckets are small, and stability keeps table order among equal lengths.
func sortLongestFirst(rs []Rule) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && len(rs[j].From) > len(rs[j-1].From); j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}

// Normalize returns s with all table rules applied.
func (n *Normalizer) Normalize(s string) string {
	if n == nil || n.rules == 0 || s == "" {
		return s
	}
	cur := s
	for i := 0; i < maxPasses; i++ {
		next := n.pass(norm.NFC.String(cur))
		if next == cur {
			return cur
		}
		cur = next
	}
	return s
}

// pass performs one longest-match-first scan over s.
func (n *Normalizer) pass(s string) string {
	var sb *strings.Builder
	last := 0 // start of the pending unmatched run
	for i := 0; i < len(s); {
		if r, ok := n.match(s[i:]); ok {
			if sb == nil {
				sb = &strings.Builder{}
				sb.Grow(len(s))
			}
			sb.WriteString(s[last:i])
			sb.WriteString(r.To)
			i += len(r.From)
			last = i
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	if sb == nil {
		return s
	}
	sb.WriteString(s[last:])
	return sb.String()
}

func (n *Normalizer) match(s string) (Rule, bool) {
	for _, r := range n.buckets[s[0]] {
		if strings.HasPrefix(s, r.From) {
			return r, true
		}
	}
	return Rule{}, false
}

// Dropped lists the rules Compile discarded, in discovery order.
func (n *Normalizer) Dropped() []Rule { return append([]Rule(nil), n.dropped...) }

// Len reports the number of active rules.
func (n *Normalizer) Len() int { return n.rules }

// Version returns "name@version" of the compiled table.
func (n *Normalizer) Version() string {
	if n == nil {
		return ""
	}
	return n.name + "@" + n.version
}

package report

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"satload/internal/record"
	"satload/internal/schema"
)

// mojibakeChars are the characters that show up when UTF-8 text was decoded
// as Latin-1 or cp1252, plus the replacement '?'.
const mojibakeChars = "?ÃÂƒ†‡‰‹›ŒŽ‘’“”•–—˜™š›œžŸ¡¢£¤¥¦§¨©ª«¬®¯°±²³´µ¶·¸¹º»¼½¾¿Ðð"

const (
	// DefaultQualityColumn is the column audited when none is configured.
	DefaultQualityColumn = "ReceptorNombre"

	// MinTextLength is the shortest value not reported as suspicious.
	MinTextLength = 3

	// Evidence printed in the audit file.
	MaxMojibakeEvidence = 100
	MaxShortEvidence    = 50

	// Per-batch sample sizes and the cap on unique samples kept per run.
	batchMojibakeSamples = 10
	batchShortSamples    = 5
	maxStoredSamples     = 1000
)

// QualitySummary holds the data quality counters of a run.
type QualitySummary struct {
	Column   string
	Nulls    int64
	Mojibake int64
	Short    int64

	// Sorted unique samples, at most maxStoredSamples each.
	MojibakeSamples []string
	ShortSamples    []string
}

// QualityAuditor inspects one text column of every batch for nulls,
// encoding artifacts and suspiciously short values.
type QualityAuditor struct {
	column string
	idx    int
	log    zerolog.Logger

	mu       sync.Mutex
	sum      QualitySummary
	mojibake map[string]struct{}
	short    map[string]struct{}
}

// NewQualityAuditor audits column of s. When the column is not in the
// schema the auditor records nothing.
func NewQualityAuditor(column string, s schema.Schema, log zerolog.Logger) *QualityAuditor {
	if column == "" {
		column = DefaultQualityColumn
	}
	return &QualityAuditor{
		column:   column,
		idx:      s.Index(column),
		log:      log,
		sum:      QualitySummary{Column: column},
		mojibake: map[string]struct{}{},
		short:    map[string]struct{}{},
	}
}

// Enabled reports whether the audited column exists.
func (q *QualityAuditor) Enabled() bool { return q != nil && q.idx >= 0 }

// Audit inspects the canonical records of b.
func (q *QualityAuditor) Audit(b record.Batch[record.Canonical]) {
	if !q.Enabled() {
		return
	}

	var nulls, moji, short int64
	var mojiSamples, shortSamples []string
	for _, r := range b.Records {
		if q.idx >= len(r.Values) {
			continue
		}
		var v string
		switch x := r.Values[q.idx].(type) {
		case nil:
			nulls++
			continue
		case string:
			v = x
		default:
			continue
		}
		if strings.ContainsAny(v, mojibakeChars) {
			moji++
			mojiSamples = appendUnique(mojiSamples, v, batchMojibakeSamples)
		}
		if utf8.RuneCountInString(v) < MinTextLength {
			short++
			shortSamples = appendUnique(shortSamples, v, batchShortSamples)
		}
	}

	q.mu.Lock()
	q.sum.Nulls += nulls
	q.sum.Mojibake += moji
	q.sum.Short += short
	addSamples(q.mojibake, mojiSamples)
	addSamples(q.short, shortSamples)
	q.mu.Unlock()

	if nulls > 0 || moji > 0 || short > 0 {
		q.log.Warn().
			Int64("batch", b.Seq).
			Str("column", q.column).
			Int64("nulls", nulls).
			Int64("mojibake", moji).
			Int64("short", short).
			Msg("batch quality issue")
	}
}

// Summary returns the counters and sorted samples collected so far.
func (q *QualityAuditor) Summary() QualitySummary {
	if q == nil {
		return QualitySummary{}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.sum
	s.MojibakeSamples = sortedKeys(q.mojibake)
	s.ShortSamples = sortedKeys(q.short)
	return s
}

func appendUnique(dst []string, v string, limit int) []string {
	if len(dst) >= limit {
		return dst
	}
	for _, d := range dst {
		if d == v {
			return dst
		}
	}
	return append(dst, v)
}

func addSamples(set map[string]struct{}, vs []string) {
	for _, v := range vs {
		if len(set) >= maxStoredSamples {
			return
		}
		set[v] = struct{}{}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

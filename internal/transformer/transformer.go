// Package transformer turns raw extract rows into canonical, destination-ready
// rows. Each field is trimmed, optionally upper-cased and normalized, mapped to
// NULL when it holds a null sentinel, coerced to its schema kind and checked
// against the column limits.
//
// A per-column plan of closures is compiled once in New so the per-row loop
// does no map lookups. Rows that fail are returned as Rejections; a bad row
// never fails its batch.
package transformer

import (
	"context"
	"fmt"
	"strings"

	"satload/internal/normalize"
	"satload/internal/record"
	"satload/internal/schema"
)

// Reason classifies a rejected row.
type Reason string

const (
	ReasonMissingField Reason = "missing_required_field"
	ReasonCoercion     Reason = "coercion_failure"
	ReasonOutOfRange   Reason = "out_of_range"
)

// Reasons lists every rejection reason in reporting order.
var Reasons = []Reason{ReasonMissingField, ReasonCoercion, ReasonOutOfRange}

// Rejection describes why one row was dropped.
type Rejection struct {
	Position int64
	UUID     string
	Field    string
	Reason   Reason
	Value    string
}

func (r Rejection) Error() string {
	return fmt.Sprintf("position %d: field %s: %s (%q)", r.Position, r.Field, r.Reason, r.Value)
}

// Options tune a Transformer. Field lists are matched case-insensitively;
// names not in the schema are ignored.
type Options struct {
	// NormalizeFields are cleaned with the mojibake Normalizer.
	NormalizeFields []string
	// RFCFields are cleaned with RFC instead.
	RFCFields []string
	RFC       *normalize.Normalizer
	// NullSentinels are compared after trimming, case-insensitively.
	NullSentinels []string
	Uppercase     bool
}

// DefaultOptions returns the SAT defaults.
func DefaultOptions() Options {
	return Options{
		NormalizeFields: []string{"EmisorNombre", "ReceptorNombre"},
		RFCFields:       []string{"EmisorRFC", "ReceptorRFC"},
		NullSentinels:   []string{"", "NULL"},
		Uppercase:       true,
	}
}

// Transformer is safe for concurrent use once built.
type Transformer struct {
	schema schema.Schema
	cols   []colPlan
	idIdx  int
}

// New compiles the plan for s. Text in NormalizeFields goes through norm;
// either Normalizer may be nil to disable that step.
func New(s schema.Schema, norm *normalize.Normalizer, opt Options) (*Transformer, error) {
	idIdx := s.IDIndex()
	if idIdx < 0 {
		return nil, fmt.Errorf("transformer: %w: %q", schema.ErrNoIdentifier, s.IDColumn)
	}

	names := foldSet(opt.NormalizeFields)
	rfcs := foldSet(opt.RFCFields)
	sentinels := foldSet(opt.NullSentinels)

	t := &Transformer{schema: s, cols: make([]colPlan, len(s.Columns)), idIdx: idIdx}
	for i, c := range s.Columns {
		var n *normalize.Normalizer
		key := strings.ToUpper(c.Name)
		if _, ok := rfcs[key]; ok {
			n = opt.RFC
		} else if _, ok := names[key]; ok {
			n = norm
		}
		p, err := compileColumn(c, n, opt.Uppercase, sentinels, i == idIdx)
		if err != nil {
			return nil, err
		}
		t.cols[i] = p
	}
	return t, nil
}

// Schema returns the schema the plan was compiled for.
func (t *Transformer) Schema() schema.Schema { return t.schema }

// Transform converts one row. Exactly one of the results is meaningful: a
// non-nil Rejection means the row must not be loaded.
func (t *Transformer) Transform(r record.Raw) (record.Canonical, *Rejection) {
	out := record.Canonical{Position: r.Position, Values: make([]any, len(t.cols))}
	for i := range t.cols {
		var raw any
		if i < len(r.Values) {
			raw = r.Values[i]
		}
		v, reason := t.cols[i].apply(raw)
		if reason != "" {
			return record.Canonical{}, &Rejection{
				Position: r.Position,
				UUID:     r.UUID,
				Field:    t.cols[i].name,
				Reason:   reason,
				Value:    valueString(raw),
			}
		}
		out.Values[i] = v
	}
	out.UUID, _ = out.Values[t.idIdx].(string)
	return out, nil
}

// TransformBatch converts every row of b. The output batch keeps b's Seq and
// position range even when rows were rejected.
func (t *Transformer) TransformBatch(b record.Batch[record.Raw]) (record.Batch[record.Canonical], []Rejection) {
	out := record.Batch[record.Canonical]{
		Seq:     b.Seq,
		First:   b.First,
		Last:    b.Last,
		Records: make([]record.Canonical, 0, len(b.Records)),
	}
	var rejected []Rejection
	for _, r := range b.Records {
		c, rej := t.Transform(r)
		if rej != nil {
			rejected = append(rejected, *rej)
			continue
		}
		out.Records = append(out.Records, c)
	}
	return out, rejected
}

// Run transforms batches from in and forwards them to out in order. observe,
// when non-nil, sees each batch with its rejections before it is forwarded.
// Run returns nil when in is closed, or ctx.Err() once ctx is done.
func (t *Transformer) Run(
	ctx context.Context,
	in <-chan record.Batch[record.Raw],
	out chan<- record.Batch[record.Canonical],
	observe func(record.Batch[record.Canonical], []Rejection),
) error {
	for {
		var (
			b  record.Batch[record.Raw]
			ok bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok = <-in:
			if !ok {
				return nil
			}
		}

		cb, rejected := t.TransformBatch(b)
		if observe != nil {
			observe(cb, rejected)
		}

		select {
		case out <- cb:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func foldSet(in []string) map[string]struct{} {
	m := make(map[string]struct{}, len(in))
	for _, s := range in {
		m[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	return m
}

func valueString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

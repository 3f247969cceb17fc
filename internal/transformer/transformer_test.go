package transformer

import (
	"context"
	"errors"
	"testing"
	"time"

	"satload/internal/normalize"
	"satload/internal/record"
	"satload/internal/schema"
)

var testHeader = []string{"UUID", "EmisorRFC", "ReceptorNombre", "FechaEmision", "Total", "TipoCambio", "Folio"}

func newTestTransformer(t *testing.T, required ...string) *Transformer {
	t.Helper()

	s, err := schema.FromHeader(testHeader, schema.Options{Required: required})
	if err != nil {
		t.Fatalf("FromHeader: %v", err)
	}
	mojibake, err := normalize.Builtin(normalize.TableMojibake)
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	rfc, err := normalize.Builtin(normalize.TableRFC)
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}

	opt := DefaultOptions()
	opt.RFC = normalize.MustCompile(rfc)
	tr, err := New(s, normalize.MustCompile(mojibake), opt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func raw(pos int64, vals ...any) record.Raw {
	uuid, _ := vals[0].(string)
	return record.Raw{Position: pos, UUID: uuid, Values: vals}
}

func TestTransform_Canonical(t *testing.T) {
	t.Parallel()

	tr := newTestTransformer(t)
	got, rej := tr.Transform(raw(7,
		"  abc-123 ", "xaxx010101000", "muÃ±oz juan", "2025-01-15T10:20:30", "1,234.5", "17.12345", "f-1"))
	if rej != nil {
		t.Fatalf("Transform rejected: %v", rej)
	}

	want := []any{
		"ABC-123", "XAXX010101000", "MUÑOZ JUAN",
		time.Date(2025, 1, 15, 10, 20, 30, 0, time.UTC),
		"1234.50", "17.1235", "F-1",
	}
	for i := range want {
		if w, ok := want[i].(time.Time); ok {
			if g, ok := got.Values[i].(time.Time); !ok || !g.Equal(w) {
				t.Fatalf("Values[%d] = %v, want %v", i, got.Values[i], w)
			}
			continue
		}
		if got.Values[i] != want[i] {
			t.Fatalf("Values[%d] = %#v, want %#v", i, got.Values[i], want[i])
		}
	}
	if got.UUID != "ABC-123" || got.Position != 7 {
		t.Fatalf("UUID/Position = %q/%d", got.UUID, got.Position)
	}
}

func TestTransform_Rejections(t *testing.T) {
	t.Parallel()

	tr := newTestTransformer(t, "ReceptorNombre")

	tests := []struct {
		name   string
		in     record.Raw
		reason Reason
		field  string
	}{
		{
			name:   "identifier absent",
			in:     record.Raw{Position: 1, Values: []any{nil, "AAA010101AAA"}},
			reason: ReasonMissingField, field: "UUID",
		},
		{
			name:   "identifier holds sentinel",
			in:     raw(2, "NULL", "AAA010101AAA", "X"),
			reason: ReasonMissingField, field: "UUID",
		},
		{
			name:   "required field absent from short row",
			in:     raw(3, "u-3", "AAA010101AAA"),
			reason: ReasonMissingField, field: "ReceptorNombre",
		},
		{
			name:   "bad decimal",
			in:     raw(4, "u-4", "", "X", "", "12abc"),
			reason: ReasonCoercion, field: "Total",
		},
		{
			name:   "bad datetime",
			in:     raw(5, "u-5", "", "X", "2025-13-45"),
			reason: ReasonCoercion, field: "FechaEmision",
		},
		{
			name:   "rfc too long",
			in:     raw(6, "u-6", "AAAA010101AAAB", "X"),
			reason: ReasonOutOfRange, field: "EmisorRFC",
		},
		{
			name:   "decimal overflow",
			in:     raw(7, "u-7", "", "X", "", "12345678901234567"),
			reason: ReasonOutOfRange, field: "Total",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, rej := tr.Transform(tt.in)
			if rej == nil {
				t.Fatalf("Transform(%v) accepted, want %s", tt.in.Values, tt.reason)
			}
			if rej.Reason != tt.reason || rej.Field != tt.field || rej.Position != tt.in.Position {
				t.Fatalf("Rejection = %+v, want %s on %s", *rej, tt.reason, tt.field)
			}
		})
	}
}

// TestTransform_RequiredSentinel checks that a required field holding the
// null sentinel loads as NULL.
func TestTransform_RequiredSentinel(t *testing.T) {
	t.Parallel()

	tr := newTestTransformer(t, "ReceptorNombre")
	for _, v := range []string{"", "   ", "NULL", "null"} {
		got, rej := tr.Transform(raw(1, "u-1", "AAA010101AAA", v, "", "", "", ""))
		if rej != nil {
			t.Fatalf("Transform(%q) rejected: %v", v, rej)
		}
		if got.Values[2] != nil {
			t.Fatalf("Transform(%q) ReceptorNombre = %#v, want nil", v, got.Values[2])
		}
	}
}

func TestParseDecimal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		scale  int
		want   any
		reason Reason
	}{
		{in: "1,234.5", scale: 2, want: "1234.50"},
		{in: "-0.5", scale: 2, want: "-0.50"},
		{in: "1e3", scale: 2, want: "1000.00"},
		{in: "17.12345", scale: 4, want: "17.1235"},
		{in: "9999999999999999.99", scale: 2, want: "9999999999999999.99"},
		{in: "9999999999999999.995", scale: 2, reason: ReasonOutOfRange},
		{in: "99999999999999999", scale: 2, reason: ReasonOutOfRange},
		{in: "1e30", scale: 2, reason: ReasonOutOfRange},
		{in: "abc", scale: 2, reason: ReasonCoercion},
		{in: "0x10", scale: 2, reason: ReasonCoercion},
		{in: "1.2.3", scale: 2, reason: ReasonCoercion},
		{in: "1/3", scale: 2, reason: ReasonCoercion},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, reason := parseDecimal(tt.in, tt.scale)
			if reason != tt.reason || (reason == "" && got != tt.want) {
				t.Fatalf("parseDecimal(%q, %d) = %v, %q; want %v, %q", tt.in, tt.scale, got, reason, tt.want, tt.reason)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   any
		reason Reason
	}{
		{in: "42", want: int64(42)},
		{in: "-7", want: int64(-7)},
		{in: "42.0", want: int64(42)},
		{in: "42.5", reason: ReasonCoercion},
		{in: "x", reason: ReasonCoercion},
		{in: "99999999999999999999", reason: ReasonOutOfRange},
	}
	for _, tt := range tests {
		got, reason := parseInt(tt.in)
		if reason != tt.reason || (reason == "" && got != tt.want) {
			t.Fatalf("parseInt(%q) = %v, %q; want %v, %q", tt.in, got, reason, tt.want, tt.reason)
		}
	}
}

func TestTransform_DatetimeLayouts(t *testing.T) {
	t.Parallel()

	tr := newTestTransformer(t)
	want := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2025-01-15", "15/01/2025", "2025-01-15 00:00:00", "2025-01-15T00:00:00.000"} {
		got, rej := tr.Transform(raw(1, "u", "", "", in))
		if rej != nil {
			t.Fatalf("Transform(%q) rejected: %v", in, rej)
		}
		if g, _ := got.Values[3].(time.Time); !g.Equal(want) {
			t.Fatalf("Transform(%q) = %v, want %v", in, got.Values[3], want)
		}
	}
}

func TestTransformBatch_KeepsRange(t *testing.T) {
	t.Parallel()

	tr := newTestTransformer(t)
	b := record.Batch[record.Raw]{
		Seq: 3, First: 10, Last: 12,
		Records: []record.Raw{
			raw(10, "u-10"),
			raw(11, "u-11", "", "", "never"),
			raw(12, "u-12"),
		},
	}
	out, rejected := tr.TransformBatch(b)
	if out.Seq != 3 || out.First != 10 || out.Last != 12 {
		t.Fatalf("batch header = %d/%d/%d", out.Seq, out.First, out.Last)
	}
	if out.Len() != 2 || len(rejected) != 1 || rejected[0].Position != 11 {
		t.Fatalf("got %d records and %v", out.Len(), rejected)
	}
}

func TestRun_OrderAndCancel(t *testing.T) {
	t.Parallel()

	tr := newTestTransformer(t)
	in := make(chan record.Batch[record.Raw], 2)
	out := make(chan record.Batch[record.Canonical], 2)

	in <- record.Batch[record.Raw]{Seq: 1, First: 1, Last: 1, Records: []record.Raw{raw(1, "a")}}
	in <- record.Batch[record.Raw]{Seq: 2, First: 2, Last: 2, Records: []record.Raw{raw(2, "b")}}
	close(in)

	var observed []int64
	if err := tr.Run(context.Background(), in, out, func(b record.Batch[record.Canonical], _ []Rejection) {
		observed = append(observed, b.Seq)
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if b := <-out; b.Seq != 1 {
		t.Fatalf("first batch Seq = %d", b.Seq)
	}
	if b := <-out; b.Seq != 2 {
		t.Fatalf("second batch Seq = %d", b.Seq)
	}
	if len(observed) != 2 {
		t.Fatalf("observed = %v", observed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Run(ctx, make(chan record.Batch[record.Raw]), out, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run after cancel = %v, want context.Canceled", err)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	if _, err := New(schema.Schema{Columns: []schema.Column{{Name: "A"}}, IDColumn: "UUID"}, nil, Options{}); !errors.Is(err, schema.ErrNoIdentifier) {
		t.Fatalf("New without id = %v", err)
	}
	bad := schema.Schema{IDColumn: "UUID", Columns: []schema.Column{{Name: "UUID"}, {Name: "X", Kind: "blob"}}}
	if _, err := New(bad, nil, Options{}); err == nil {
		t.Fatalf("New with unknown kind: expected error")
	}
}

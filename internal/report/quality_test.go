package report

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"satload/internal/record"
	"satload/internal/schema"
)

func qualitySchema(t *testing.T) schema.Schema {
	t.Helper()
	s, err := schema.FromHeader([]string{"UUID", "ReceptorNombre"}, schema.Options{})
	if err != nil {
		t.Fatalf("FromHeader: %v", err)
	}
	return s
}

func canon(vals ...any) record.Batch[record.Canonical] {
	b := record.Batch[record.Canonical]{Seq: 1}
	for i, v := range vals {
		b.Records = append(b.Records, record.Canonical{Position: int64(i + 1), Values: []any{fmt.Sprint(i), v}})
	}
	return b
}

func TestQualityAuditor_Counts(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	q := NewQualityAuditor("", qualitySchema(t), zerolog.New(&buf))
	if !q.Enabled() {
		t.Fatalf("auditor disabled for a schema with ReceptorNombre")
	}

	q.Audit(canon("PEÑA SA DE CV", nil, "XY", "JOSÃ‰ PEREZ", "JOSÃ‰ PEREZ", "A?", nil))
	q.Audit(canon("COMERCIAL DEL NORTE"))

	s := q.Summary()
	if s.Column != DefaultQualityColumn || s.Nulls != 2 || s.Mojibake != 3 || s.Short != 2 {
		t.Fatalf("Summary = %+v", s)
	}
	if strings.Join(s.MojibakeSamples, "|") != "A?|JOSÃ‰ PEREZ" {
		t.Fatalf("MojibakeSamples = %q", s.MojibakeSamples)
	}
	if strings.Join(s.ShortSamples, "|") != "A?|XY" {
		t.Fatalf("ShortSamples = %q", s.ShortSamples)
	}
	if n := strings.Count(buf.String(), "batch quality issue"); n != 1 {
		t.Fatalf("warnings = %d, want 1 (clean batch is silent): %s", n, buf.String())
	}
}

func TestQualityAuditor_SampleCaps(t *testing.T) {
	t.Parallel()

	q := NewQualityAuditor("ReceptorNombre", qualitySchema(t), zerolog.Nop())
	vals := make([]any, 0, 30)
	for i := 0; i < 30; i++ {
		vals = append(vals, fmt.Sprintf("Ã%02d", i))
	}
	q.Audit(canon(vals...))

	s := q.Summary()
	if s.Mojibake != 30 {
		t.Fatalf("Mojibake = %d, want 30", s.Mojibake)
	}
	if len(s.MojibakeSamples) != batchMojibakeSamples {
		t.Fatalf("samples = %d, want %d per batch", len(s.MojibakeSamples), batchMojibakeSamples)
	}
}

func TestQualityAuditor_MissingColumn(t *testing.T) {
	t.Parallel()

	s, err := schema.FromHeader([]string{"UUID", "Total"}, schema.Options{})
	if err != nil {
		t.Fatalf("FromHeader: %v", err)
	}
	q := NewQualityAuditor("ReceptorNombre", s, zerolog.Nop())
	if q.Enabled() {
		t.Fatalf("auditor enabled without its column")
	}
	q.Audit(canon(nil, nil))
	if got := q.Summary(); got.Nulls != 0 {
		t.Fatalf("Summary = %+v, want zero", got)
	}

	var nilAuditor *QualityAuditor
	nilAuditor.Audit(canon("x"))
	if nilAuditor.Enabled() {
		t.Fatalf("nil auditor enabled")
	}
}

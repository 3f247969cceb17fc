package config

import (
	"strings"
	"testing"
	"time"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

// validPipeline returns a pipeline that produces no issues.
func validPipeline() Pipeline {
	p := Pipeline{
		Job:    "1A",
		Source: Source{Path: "raw/Anexo1A.txt"},
		Storage: Storage{
			Kind: "sqlite",
			DB:   DBConfig{DSN: "file:satload.db", Table: "ANEXO_1A_2025_1S"},
		},
	}
	p.ApplyDefaults()
	return p
}

func TestValidatePipeline_ValidMinimal(t *testing.T) {
	t.Parallel()

	if issues := ValidatePipeline(validPipeline()); len(issues) != 0 {
		t.Fatalf("ValidatePipeline(valid) = %+v, want none", issues)
	}
}

func TestValidatePipeline_MissingJob(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Job = " "
	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityError, "job", "job must not be empty") {
		t.Fatalf("expected SeverityError for job; got issues: %+v", issues)
	}
	if !HasErrors(issues) {
		t.Fatalf("HasErrors(%+v) = false", issues)
	}
}

func TestValidatePipeline_Cases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *Pipeline)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"empty path", func(p *Pipeline) { p.Source.Path = "" }, SeverityError, "source.path", "must not be empty"},
		{"bad encoding", func(p *Pipeline) { p.Source.Encoding = "ebcdic" }, SeverityError, "source.encoding", "unsupported encoding"},
		{"bad compression", func(p *Pipeline) { p.Source.Compression = "bzip2" }, SeverityError, "source.compression", "unsupported compression"},
		{"long delimiter", func(p *Pipeline) { p.Source.Delimiter = "||" }, SeverityError, "source.delimiter", "single character"},
		{"quote delimiter", func(p *Pipeline) { p.Source.Delimiter = `"` }, SeverityError, "source.delimiter", "quote"},
		{"empty header target", func(p *Pipeline) { p.Source.HeaderMap = map[string]string{"Uuid": ""} }, SeverityError, "source.header_map.Uuid", "must not be empty"},
		{"bad type", func(p *Pipeline) { p.Transform.Types = map[string]string{"Total": "money"} }, SeverityError, "transform.types.Total", "unknown type"},
		{"overlapping fields", func(p *Pipeline) {
			p.Transform.NormalizeFields = []string{"EmisorRFC"}
			p.Transform.RFCFields = []string{"emisorrfc"}
		}, SeverityWarning, "transform.rfc_fields", "RFC table wins"},
		{"unknown kind", func(p *Pipeline) { p.Storage.Kind = "oracle" }, SeverityWarning, "storage.kind", "unknown storage kind"},
		{"empty kind", func(p *Pipeline) { p.Storage.Kind = "" }, SeverityError, "storage.kind", "must not be empty"},
		{"empty dsn", func(p *Pipeline) { p.Storage.DB.DSN = "" }, SeverityError, "storage.db.dsn", "must not be empty"},
		{"empty table", func(p *Pipeline) { p.Storage.DB.Table = "" }, SeverityError, "storage.db.table", "must not be empty"},
		{"zero batch", func(p *Pipeline) { p.Runtime.BatchSize = 0 }, SeverityError, "runtime.batch_size", "must be positive"},
		{"huge batch", func(p *Pipeline) { p.Runtime.BatchSize = 5_000_000 }, SeverityWarning, "runtime.batch_size", "in memory"},
		{"negative retries", func(p *Pipeline) { n := -1; p.Runtime.MaxRetries = &n }, SeverityError, "runtime.max_retries", "negative"},
		{"negative pause", func(p *Pipeline) { p.Runtime.CommitPause = Duration(-time.Second) }, SeverityError, "runtime.commit_pause", "negative"},
		{"zero timeout", func(p *Pipeline) { p.Runtime.IOTimeout = 0 }, SeverityError, "runtime.io_timeout", "must be positive"},
		{"zero buffer", func(p *Pipeline) { p.Runtime.ChannelBuffer = 0 }, SeverityError, "runtime.channel_buffer", "must be positive"},
		{"pushgateway url", func(p *Pipeline) { p.Metrics.Backend = "pushgateway" }, SeverityError, "metrics.pushgateway_url", "requires"},
		{"datadog addr", func(p *Pipeline) { p.Metrics.Backend = "datadog" }, SeverityError, "metrics.datadog_addr", "requires"},
		{"unknown metrics", func(p *Pipeline) { p.Metrics.Backend = "statsd" }, SeverityError, "metrics.backend", "unknown metrics backend"},
		{"log format", func(p *Pipeline) { p.Log.Format = "xml" }, SeverityError, "log.format", "unknown log format"},
		{"log level", func(p *Pipeline) { p.Log.Level = "loud" }, SeverityError, "log.level", "unknown log level"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := validPipeline()
			tt.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, tt.sev, tt.path, tt.msg) {
				t.Fatalf("expected %s at %s containing %q; got %+v", tt.sev, tt.path, tt.msg, issues)
			}
		})
	}
}

func TestIssue_Error(t *testing.T) {
	t.Parallel()

	iss := Issue{Severity: SeverityWarning, Path: "storage.kind", Message: "unknown"}
	if got, want := iss.Error(), "warning at storage.kind: unknown"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if HasErrors([]Issue{iss}) {
		t.Fatalf("HasErrors(warnings only) = true")
	}
}

package config

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced but does not
	// block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "runtime.io_timeout"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether issues contains at least one SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation of a Pipeline. It does not
// mutate the pipeline; callers decide whether warnings are fatal.
//
// Validate after ApplyDefaults (Load and Decode do this): runtime values left
// at zero are reported as errors here.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels logs, metrics and the audit log",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateTransform(p.Transform)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	issues = append(issues, validateLog(p.Log)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.path",
			Message:  "source.path must not be empty",
		})
	}
	if !oneOf(strings.ToLower(s.Encoding), "cp1252", "windows-1252", "latin1", "utf-8", "utf8") {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.encoding",
			Message:  fmt.Sprintf("unsupported encoding %q; want cp1252 or utf-8", s.Encoding),
		})
	}
	if !oneOf(strings.ToLower(s.Compression), "auto", "none", "gzip", "zstd") {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.compression",
			Message:  fmt.Sprintf("unsupported compression %q; want auto, none, gzip or zstd", s.Compression),
		})
	}
	if utf8.RuneCountInString(s.Delimiter) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.delimiter",
			Message:  fmt.Sprintf("delimiter %q must be a single character", s.Delimiter),
		})
	} else if strings.ContainsAny(s.Delimiter, "\"\r\n") {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.delimiter",
			Message:  "delimiter must not be a quote or line break",
		})
	}
	for from, to := range s.HeaderMap {
		if strings.TrimSpace(to) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.header_map." + from,
				Message:  "header_map target must not be empty",
			})
		}
	}

	return issues
}

func validateTransform(t Transform) []Issue {
	var issues []Issue

	for col, kind := range t.Types {
		if !oneOf(strings.ToLower(kind), "text", "decimal", "datetime", "int") {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "transform.types." + col,
				Message:  fmt.Sprintf("unknown type %q; want text, decimal, datetime or int", kind),
			})
		}
	}
	seen := make(map[string]struct{}, len(t.NormalizeFields))
	for _, f := range t.NormalizeFields {
		seen[strings.ToUpper(f)] = struct{}{}
	}
	for _, f := range t.RFCFields {
		if _, ok := seen[strings.ToUpper(f)]; ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "transform.rfc_fields",
				Message:  fmt.Sprintf("%s is listed in normalize_fields too; the RFC table wins", f),
			})
		}
	}

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}
	if !oneOf(s.Kind, "mssql", "postgres", "mysql", "sqlite") {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	db := s.DB
	if strings.TrimSpace(db.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(db.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}

	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d must be positive", r.BatchSize),
		})
	} else if r.BatchSize > 1_000_000 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d holds channel_buffer+2 batches in memory at once", r.BatchSize),
		})
	}
	if r.MaxRetries != nil && *r.MaxRetries < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.max_retries",
			Message:  "max_retries must not be negative",
		})
	}
	if r.CommitPause < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.commit_pause",
			Message:  "commit_pause must not be negative",
		})
	}
	if r.RetryBackoff < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.retry_backoff",
			Message:  "retry_backoff must not be negative",
		})
	}
	if r.IOTimeout <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.io_timeout",
			Message:  "io_timeout must be positive; every destination call is bounded",
		})
	}
	if r.ChannelBuffer <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must be positive",
		})
	}

	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue

	switch strings.ToLower(m.Backend) {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires pushgateway_url",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires datadog_addr",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; want none, pushgateway or datadog", m.Backend),
		})
	}

	return issues
}

func validateLog(l Log) []Issue {
	var issues []Issue

	if !oneOf(strings.ToLower(l.Format), "", "console", "json") {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "log.format",
			Message:  fmt.Sprintf("unknown log format %q; want console or json", l.Format),
		})
	}
	if !oneOf(strings.ToLower(l.Level), "", "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled") {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "log.level",
			Message:  fmt.Sprintf("unknown log level %q", l.Level),
		})
	}

	return issues
}

func oneOf(s string, vals ...string) bool {
	for _, v := range vals {
		if s == v {
			return true
		}
	}
	return false
}

// Package config defines the pipeline configuration of a load run. A
// pipeline file is JSON or YAML (chosen by extension) and mirrors the
// structure below:
//
//	{
//	  "job":     "sat-1a",
//	  "source":  { "path": "raw/Anexo1A.txt", "encoding": "cp1252", "delimiter": "|" },
//	  "storage": { "kind": "mssql", "db": { "dsn": "sqlserver://...", "table": "ANEXO_1A_2025_1S" } },
//	  "runtime": { "batch_size": 50000, "io_timeout": "60s", "max_retries": 3 }
//	}
//
// Decoding is strict: unknown keys are errors. Missing values are filled by
// Defaults and may then be overridden from the environment (ApplyEnv).
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Pipeline describes one load run.
type Pipeline struct {
	// Job names the run in logs and metrics.
	Job string `json:"job" yaml:"job"`

	Source    Source        `json:"source" yaml:"source"`
	Transform Transform     `json:"transform" yaml:"transform"`
	Storage   Storage       `json:"storage" yaml:"storage"`
	Runtime   RuntimeConfig `json:"runtime" yaml:"runtime"`
	Audit     Audit         `json:"audit" yaml:"audit"`
	Metrics   Metrics       `json:"metrics" yaml:"metrics"`
	Log       Log           `json:"log" yaml:"log"`

	// Catalog overrides or extends the built-in annex catalog.
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`
}

// Source describes the extract file.
type Source struct {
	// Path is the extract for a single run. Annex runs resolve their file
	// inside Dir instead.
	Path string `json:"path" yaml:"path"`
	Dir  string `json:"dir" yaml:"dir"`

	Encoding    string `json:"encoding" yaml:"encoding"`       // cp1252 | utf-8
	Compression string `json:"compression" yaml:"compression"` // auto | none | gzip | zstd
	Delimiter   string `json:"delimiter" yaml:"delimiter"`     // single character

	// HeaderMap renames source header names before the schema is resolved.
	HeaderMap map[string]string `json:"header_map" yaml:"header_map"`
	IDColumn  string            `json:"id_column" yaml:"id_column"`
}

// Transform configures text cleanup and coercion.
type Transform struct {
	NormalizeFields []string `json:"normalize_fields" yaml:"normalize_fields"`
	RFCFields       []string `json:"rfc_fields" yaml:"rfc_fields"`
	NullSentinels   []string `json:"null_sentinels" yaml:"null_sentinels"`
	Uppercase       *bool    `json:"uppercase" yaml:"uppercase"`

	// RulesPath and RFCRulesPath replace the embedded rule tables.
	RulesPath    string `json:"rules_path" yaml:"rules_path"`
	RFCRulesPath string `json:"rfc_rules_path" yaml:"rfc_rules_path"`

	// Required lists columns, besides the identifier, that every row must carry.
	Required []string `json:"required" yaml:"required"`
	// Types overrides the kind of individual columns (text|decimal|datetime|int).
	Types map[string]string `json:"types" yaml:"types"`
}

// Storage selects the destination backend.
type Storage struct {
	// Kind selects the backend: mssql | postgres | mysql | sqlite.
	Kind string   `json:"kind" yaml:"kind"`
	DB   DBConfig `json:"db" yaml:"db"`
}

// DBConfig configures the destination table.
type DBConfig struct {
	DSN string `json:"dsn" yaml:"dsn"`
	// Database overrides the database named in DSN (annex runs set it).
	Database string `json:"database" yaml:"database"`
	Table    string `json:"table" yaml:"table"`

	// PositionColumn stores each row's source position; the resume
	// watermark is its maximum.
	PositionColumn string `json:"position_column" yaml:"position_column"`

	// AutoCreateTable creates the table from the extract header when missing.
	AutoCreateTable bool `json:"auto_create_table" yaml:"auto_create_table"`
}

// RuntimeConfig controls batching, pacing, retries and buffering.
type RuntimeConfig struct {
	BatchSize     int      `json:"batch_size" yaml:"batch_size"`
	CommitPause   Duration `json:"commit_pause" yaml:"commit_pause"`
	MaxRetries    *int     `json:"max_retries" yaml:"max_retries"`
	RetryBackoff  Duration `json:"retry_backoff" yaml:"retry_backoff"`
	IOTimeout     Duration `json:"io_timeout" yaml:"io_timeout"`
	ChannelBuffer int      `json:"channel_buffer" yaml:"channel_buffer"`
}

// Retries returns MaxRetries, or 0 when unset.
func (r RuntimeConfig) Retries() int {
	if r.MaxRetries == nil {
		return 0
	}
	return *r.MaxRetries
}

// Audit configures the audit log.
type Audit struct {
	Dir string `json:"dir" yaml:"dir"`
	// Column is the text column checked for data quality issues.
	Column string `json:"column" yaml:"column"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	Backend        string `json:"backend" yaml:"backend"` // none | pushgateway | datadog
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
}

// Log configures logging output.
type Log struct {
	Format string `json:"format" yaml:"format"` // console | json
	Level  string `json:"level" yaml:"level"`
}

// Duration is a time.Duration written as a Go duration string ("500ms",
// "30s"). A bare number is read as seconds.
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var v any
	if err := n.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch x := v.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(x * float64(time.Second))
	case int:
		*d = Duration(time.Duration(x) * time.Second)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			*d = 0
			return nil
		}
		p, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", x, err)
		}
		*d = Duration(p)
	default:
		return fmt.Errorf("invalid duration %v (%T)", v, v)
	}
	return nil
}

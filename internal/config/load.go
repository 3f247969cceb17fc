package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Runtime defaults.
const (
	DefaultBatchSize     = 50000
	DefaultMaxRetries    = 3
	DefaultRetryBackoff  = time.Second
	DefaultIOTimeout     = 60 * time.Second
	DefaultChannelBuffer = 2
)

// Format is the encoding of a pipeline file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the file format from the extension; anything that is not
// .yaml or .yml is read as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and decodes a pipeline file, then applies Defaults.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	p, err := Decode(b, FormatFor(path))
	if err != nil {
		return Pipeline{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return p, nil
}

// Decode strictly decodes b and applies Defaults.
func Decode(b []byte, f Format) (Pipeline, error) {
	var p Pipeline
	switch f {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, err
		}
	}
	p.ApplyDefaults()
	return p, nil
}

// ApplyDefaults fills unset values. Explicit zeros are kept where they are
// meaningful (max_retries: 0 disables retries; commit_pause: 0 disables
// pacing).
func (p *Pipeline) ApplyDefaults() {
	if p.Source.Encoding == "" {
		p.Source.Encoding = "cp1252"
	}
	if p.Source.Compression == "" {
		p.Source.Compression = "auto"
	}
	if p.Source.Delimiter == "" {
		p.Source.Delimiter = "|"
	}
	if p.Storage.Kind == "" {
		p.Storage.Kind = "mssql"
	}

	r := &p.Runtime
	if r.BatchSize <= 0 {
		r.BatchSize = DefaultBatchSize
	}
	if r.MaxRetries == nil {
		n := DefaultMaxRetries
		r.MaxRetries = &n
	}
	if r.RetryBackoff <= 0 {
		r.RetryBackoff = Duration(DefaultRetryBackoff)
	}
	if r.IOTimeout <= 0 {
		r.IOTimeout = Duration(DefaultIOTimeout)
	}
	if r.ChannelBuffer <= 0 {
		r.ChannelBuffer = DefaultChannelBuffer
	}

	if p.Audit.Dir == "" {
		p.Audit.Dir = "logs"
	}
	if p.Audit.Column == "" {
		p.Audit.Column = "ReceptorNombre"
	}
	if p.Metrics.Backend == "" {
		p.Metrics.Backend = "none"
	}
	if p.Log.Format == "" {
		p.Log.Format = "console"
	}
	if p.Log.Level == "" {
		p.Log.Level = "info"
	}
}

// Environment overrides read by ApplyEnv.
const (
	EnvBatchSize     = "SATLOAD_BATCH_SIZE"
	EnvCommitPause   = "SATLOAD_COMMIT_PAUSE"
	EnvMaxRetries    = "SATLOAD_MAX_RETRIES"
	EnvIOTimeout     = "SATLOAD_IO_TIMEOUT"
	EnvChannelBuffer = "SATLOAD_CH_BUFFER"
	EnvDSN           = "SATLOAD_DSN"
	EnvLogLevel      = "SATLOAD_LOG_LEVEL"
)

// ApplyEnv overrides runtime knobs from the environment. getenv is usually
// os.Getenv. Unset or unparsable values leave the config unchanged.
func (p *Pipeline) ApplyEnv(getenv func(string) string) {
	r := &p.Runtime
	r.BatchSize = pickInt(getenvInt(getenv, EnvBatchSize, 0), r.BatchSize)
	r.ChannelBuffer = pickInt(getenvInt(getenv, EnvChannelBuffer, 0), r.ChannelBuffer)
	if n := getenvInt(getenv, EnvMaxRetries, -1); n >= 0 {
		r.MaxRetries = &n
	}
	if d, ok := getenvDuration(getenv, EnvCommitPause); ok {
		r.CommitPause = Duration(d)
	}
	if d, ok := getenvDuration(getenv, EnvIOTimeout); ok && d > 0 {
		r.IOTimeout = Duration(d)
	}
	if s := getenv(EnvDSN); s != "" {
		p.Storage.DB.DSN = s
	}
	if s := getenv(EnvLogLevel); s != "" {
		p.Log.Level = s
	}
}

// getenvInt reads an int from the environment, returning def when unset/invalid.
func getenvInt(getenv func(string) string, k string, def int) int {
	if s := getenv(k); s != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(getenv func(string) string, k string) (time.Duration, bool) {
	s := strings.TrimSpace(getenv(k))
	if s == "" {
		return 0, false
	}
	var d Duration
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if err := d.set(n); err != nil {
			return 0, false
		}
		return d.D(), true
	}
	if err := d.set(s); err != nil {
		return 0, false
	}
	return d.D(), true
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

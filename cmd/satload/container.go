// Package main wires one load run per pipeline config (or per catalog
// annex). This file turns a resolved config.Pipeline into pipeline.Deps; it
// depends on storage-agnostic interfaces and never imports drivers directly.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"satload/internal/config"
	"satload/internal/extract"
	"satload/internal/logging"
	"satload/internal/loader"
	"satload/internal/metrics"
	"satload/internal/metrics/datadog"
	"satload/internal/metrics/prompush"
	"satload/internal/normalize"
	"satload/internal/pipeline"
	"satload/internal/report"
	"satload/internal/schema"
	"satload/internal/storage"
	"satload/internal/transformer"
)

// Function variables used as test seams.
var (
	newRepositoryFn = storage.New
	ensureTableFn   = storage.EnsureTable
)

// runOne executes a single load and always returns a finalized snapshot,
// also when the run could not be set up.
func runOne(ctx context.Context, p config.Pipeline, base zerolog.Logger, backend metrics.Backend) (report.Snapshot, error) {
	runID := report.NewRunID()
	log := logging.Run(base, p.Job, runID)
	audit := auditWriter(p, log)

	d, cleanup, err := buildDeps(ctx, p, runID, log, backend)
	if err != nil {
		rep := report.New(report.Options{RunID: runID, Annex: p.Job, Table: p.Storage.DB.Table})
		snap := rep.Finalize(report.StatusAborted, err)
		if aerr := audit.WriteAudit(context.WithoutCancel(ctx), snap, report.StatusAborted, err); aerr != nil {
			log.Error().Err(aerr).Msg("audit log not written")
		}
		return snap, err
	}
	defer cleanup()

	d.Audit = audit
	log.Info().
		Str("source", p.Source.Path).
		Str("storage", p.Storage.Kind).
		Int("batch_size", p.Runtime.BatchSize).
		Int("channel_buffer", p.Runtime.ChannelBuffer).
		Dur("commit_pause", p.Runtime.CommitPause.D()).
		Int("max_retries", p.Runtime.Retries()).
		Dur("io_timeout", p.Runtime.IOTimeout.D()).
		Msg("starting run")
	return pipeline.Run(ctx, d)
}

func auditWriter(p config.Pipeline, log zerolog.Logger) report.AuditWriter {
	w := report.MultiWriter{report.LogAuditWriter{Log: log}}
	if p.Audit.Dir != "" {
		w = append(w, &report.FileAuditWriter{Dir: p.Audit.Dir})
	}
	return w
}

// buildDeps opens the source, resolves the schema from its header, opens the
// destination and compiles the transformer.
func buildDeps(ctx context.Context, p config.Pipeline, runID string, log zerolog.Logger, backend metrics.Backend) (pipeline.Deps, func(), error) {
	rt := p.Runtime

	src, err := extract.NewFile(p.Source.Path, extract.FileOptions{
		Compression: p.Source.Compression,
		Encoding:    p.Source.Encoding,
	})
	if err != nil {
		return pipeline.Deps{}, nil, err
	}
	exLog := logging.Component(log, "extract")
	ex := extract.New(src, extract.Options{
		BatchSize:    rt.BatchSize,
		Delimiter:    delimiter(p.Source.Delimiter),
		IOTimeout:    rt.IOTimeout.D(),
		HeaderMap:    p.Source.HeaderMap,
		IDColumn:     p.Source.IDColumn,
		MaxRetries:   rt.Retries(),
		RetryBackoff: rt.RetryBackoff.D(),
		Logger:       &exLog,
	})
	header, err := ex.Header(ctx)
	if err != nil {
		return pipeline.Deps{}, nil, fmt.Errorf("read header of %s: %w", p.Source.Path, err)
	}

	s, err := schema.FromHeader(header, schema.Options{
		IDColumn:       p.Source.IDColumn,
		PositionColumn: p.Storage.DB.PositionColumn,
		Required:       p.Transform.Required,
		Types:          kinds(p.Transform.Types),
	})
	if err != nil {
		return pipeline.Deps{}, nil, err
	}

	tr, err := newTransformer(s, p.Transform, logging.Component(log, "transform"))
	if err != nil {
		return pipeline.Deps{}, nil, err
	}

	cfg := storage.Config{
		Kind:     p.Storage.Kind,
		DSN:      p.Storage.DB.DSN,
		Database: p.Storage.DB.Database,
		Table:    p.Storage.DB.Table,
		Schema:   s,
	}
	openCtx, cancel := withTimeout(ctx, rt.IOTimeout.D())
	repo, err := newRepositoryFn(openCtx, cfg)
	cancel()
	if err != nil {
		return pipeline.Deps{}, nil, fmt.Errorf("open %s destination: %w", cfg.Kind, err)
	}
	if p.Storage.DB.AutoCreateTable {
		ddlCtx, cancel := withTimeout(ctx, rt.IOTimeout.D())
		err := ensureTableFn(ddlCtx, cfg, repo)
		cancel()
		if err != nil {
			repo.Close()
			return pipeline.Deps{}, nil, err
		}
	}

	q := report.NewQualityAuditor(p.Audit.Column, s, logging.Component(log, "quality"))
	rep := report.New(report.Options{RunID: runID, Annex: p.Job, Table: cfg.Table, Quality: q})

	log.Info().Int("columns", len(s.Columns)).Str("id_column", s.IDColumn).
		Str("position_column", s.PositionColumn).Str("table", cfg.Table).Msg("schema resolved")

	return pipeline.Deps{
		Source:      ex,
		Transformer: tr,
		Store:       repo,
		Reporter:    rep,
		Quality:     q,
		Loader: loader.Options{
			MaxRetries:  rt.Retries(),
			Backoff:     rt.RetryBackoff.D(),
			CommitPause: rt.CommitPause.D(),
			IOTimeout:   rt.IOTimeout.D(),
		},
		ChannelBuffer:    rt.ChannelBuffer,
		WatermarkTimeout: rt.IOTimeout.D(),
		Log:              log,
		Metrics:          metrics.NewRecorder(backend, p.Job),
	}, repo.Close, nil
}

// withTimeout bounds a blocking destination call by io_timeout. A zero
// timeout leaves ctx unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// newTransformer compiles both rule tables and the field options.
func newTransformer(s schema.Schema, t config.Transform, log zerolog.Logger) (*transformer.Transformer, error) {
	norm, err := loadNormalizer(t.RulesPath, normalize.TableMojibake, log)
	if err != nil {
		return nil, err
	}
	rfc, err := loadNormalizer(t.RFCRulesPath, normalize.TableRFC, log)
	if err != nil {
		return nil, err
	}

	opt := transformer.DefaultOptions()
	opt.RFC = rfc
	if len(t.NormalizeFields) > 0 {
		opt.NormalizeFields = t.NormalizeFields
	}
	if len(t.RFCFields) > 0 {
		opt.RFCFields = t.RFCFields
	}
	if len(t.NullSentinels) > 0 {
		opt.NullSentinels = t.NullSentinels
	}
	if t.Uppercase != nil {
		opt.Uppercase = *t.Uppercase
	}
	return transformer.New(s, norm, opt)
}

func loadNormalizer(path, builtin string, log zerolog.Logger) (*normalize.Normalizer, error) {
	tbl, err := normalize.LoadTable(path, builtin)
	if err != nil {
		return nil, err
	}
	n, err := normalize.Compile(tbl)
	if err != nil {
		return nil, err
	}
	for _, r := range n.Dropped() {
		log.Warn().Str("table", tbl.Name).Str("from", r.From).Str("to", r.To).Msg("normalization rule dropped")
	}
	log.Debug().Str("table", tbl.Name).Str("version", n.Version()).Int("rules", n.Len()).Msg("rules loaded")
	return n, nil
}

func kinds(in map[string]string) map[string]schema.Kind {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]schema.Kind, len(in))
	for k, v := range in {
		out[k] = schema.Kind(strings.ToLower(v))
	}
	return out
}

func delimiter(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return 0
	}
	return r
}

// newMetricsBackend selects the configured backend. A backend that fails to
// initialize degrades to metrics.Nop with a warning; metrics never block a load.
func newMetricsBackend(m config.Metrics, job string, log zerolog.Logger) metrics.Backend {
	switch strings.ToLower(m.Backend) {
	case "pushgateway":
		b, err := prompush.NewBackend(job, m.PushgatewayURL)
		if err != nil {
			log.Warn().Err(err).Msg("metrics: pushgateway backend unavailable; using nop")
			return metrics.Nop{}
		}
		log.Info().Str("url", m.PushgatewayURL).Str("job_name", job).Msg("metrics: pushgateway enabled")
		return b
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: m.DatadogAddr, Namespace: "sat."})
		if err != nil {
			log.Warn().Err(err).Msg("metrics: datadog backend unavailable; using nop")
			return metrics.Nop{}
		}
		log.Info().Str("addr", m.DatadogAddr).Msg("metrics: datadog enabled")
		return b
	default:
		log.Debug().Str("backend", m.Backend).Msg("metrics: disabled")
		return metrics.Nop{}
	}
}

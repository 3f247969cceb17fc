// Package pipeline runs one load: it resolves the resume watermark, then
// streams extractor -> transformer -> loader over two bounded channels and
// finalizes the run report.
//
// A single transformer and a single loader keep batches in source order, so
// the destination always holds a contiguous prefix of the extract and the
// watermark stays a valid cut point.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"satload/internal/loader"
	"satload/internal/logging"
	"satload/internal/metrics"
	"satload/internal/record"
	"satload/internal/report"
	"satload/internal/resume"
	"satload/internal/transformer"
)

// DefaultChannelBuffer is the number of batches each channel holds when
// Deps.ChannelBuffer is unset.
const DefaultChannelBuffer = 2

// Producer emits the batches after a watermark into out, in order. It must
// not close out. *extract.Extractor satisfies it.
type Producer interface {
	Run(ctx context.Context, w record.Watermark, out chan<- record.Batch[record.Raw]) error
}

// Store is the destination of a run. storage.Repository satisfies it.
type Store interface {
	resume.WatermarkStore
	loader.BatchStore
}

// Deps are the collaborators of one run. Source, Transformer, Store and
// Reporter are required.
type Deps struct {
	Source      Producer
	Transformer *transformer.Transformer
	Store       Store
	Reporter    *report.Reporter

	// Quality, when enabled, audits every transformed batch. Pass the same
	// auditor to report.Options so its summary lands in the snapshot.
	Quality *report.QualityAuditor
	// Audit receives the final snapshot; nil skips it.
	Audit report.AuditWriter

	Loader        loader.Options
	ChannelBuffer int
	// WatermarkTimeout bounds the watermark query; usually the I/O timeout.
	WatermarkTimeout time.Duration

	Log     zerolog.Logger
	Metrics *metrics.Recorder
}

func (d Deps) validate() error {
	switch {
	case d.Source == nil:
		return errors.New("pipeline: Source is required")
	case d.Transformer == nil:
		return errors.New("pipeline: Transformer is required")
	case d.Store == nil:
		return errors.New("pipeline: Store is required")
	case d.Reporter == nil:
		return errors.New("pipeline: Reporter is required")
	}
	return nil
}

// Run executes the load and returns the final snapshot. The snapshot is
// complete on error as well: its status is aborted and it carries every
// counter accumulated before the failure. The audit writer runs even when
// ctx is canceled.
//
// Canceling ctx stops the run between batches; a batch already handed to
// the store is committed or rolled back, never left half-written.
//
// Deps.ChannelBuffer (C) is the capacity of each of the two channels. When
// the store stalls, the extractor blocks once both channels are full, with
// one batch held by the transformer and one by the loader. It has then
// handed off at most 2C+2 batches and holds one more while it waits,
// independent of the extract size.
func Run(ctx context.Context, d Deps) (report.Snapshot, error) {
	if err := d.validate(); err != nil {
		return report.Snapshot{}, err
	}
	err := run(ctx, d)
	return finish(ctx, d, err)
}

func run(ctx context.Context, d Deps) error {
	log := d.Log
	rep := d.Reporter

	began := time.Now()
	w, err := resume.Tracker{Store: d.Store, Timeout: d.WatermarkTimeout}.ResolveWatermark(ctx)
	d.Metrics.Step("watermark", err, time.Since(began))
	if err != nil {
		return fmt.Errorf("resolve watermark: %w", err)
	}
	rep.ObserveWatermark(int64(w))
	log.Info().Int64("watermark", int64(w)).Msg("resuming after watermark")

	buf := d.ChannelBuffer
	if buf <= 0 {
		buf = DefaultChannelBuffer
	}
	rawCh := make(chan record.Batch[record.Raw], buf)
	canonCh := make(chan record.Batch[record.Canonical], buf)

	ld := loader.New(d.Store, d.Loader, logging.Component(log, "loader"), d.Metrics)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(rawCh)
		start := time.Now()
		err := d.Source.Run(gctx, w, rawCh)
		d.Metrics.Step("extract", err, time.Since(start))
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		defer close(canonCh)
		start := time.Now()
		err := d.Transformer.Run(gctx, rawCh, canonCh, func(b record.Batch[record.Canonical], rejected []transformer.Rejection) {
			observeTransformed(d, b, rejected)
		})
		d.Metrics.Step("transform", err, time.Since(start))
		if err != nil {
			return fmt.Errorf("transform: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return ld.Run(gctx, canonCh, func(res loader.Result) {
			rep.ObserveLoad(res.Inserted, res.Duplicates, res.Last, res.Submitted > 0)
		})
	})

	err = g.Wait()
	rep.ObserveRetry(ld.Stats().Retries)
	return err
}

func observeTransformed(d Deps, b record.Batch[record.Canonical], rejected []transformer.Rejection) {
	read := int64(len(b.Records) + len(rejected))
	d.Reporter.ObserveRead(read)
	d.Reporter.ObserveRejections(rejected)
	d.Metrics.Records(metrics.KindRead, read)
	d.Metrics.Records(metrics.KindRejected, int64(len(rejected)))

	for _, rj := range rejected {
		d.Log.Debug().Int64("position", rj.Position).Str("uuid", rj.UUID).Str("field", rj.Field).
			Str("reason", string(rj.Reason)).Msg("record rejected")
	}
	if d.Quality.Enabled() {
		d.Quality.Audit(b)
	}
}

// finish freezes the report and hands it to the audit writer. An audit
// failure is joined to the run error. Metrics are flushed by the caller,
// which may share one backend across runs.
func finish(ctx context.Context, d Deps, runErr error) (report.Snapshot, error) {
	status := report.StatusCompleted
	if runErr != nil {
		status = report.StatusAborted
	}
	snap := d.Reporter.Finalize(status, runErr)

	if d.Audit != nil {
		if err := d.Audit.WriteAudit(context.WithoutCancel(ctx), snap, status, runErr); err != nil {
			d.Log.Error().Err(err).Msg("audit log not written")
			runErr = errors.Join(runErr, fmt.Errorf("write audit: %w", err))
		}
	}
	return snap, runErr
}

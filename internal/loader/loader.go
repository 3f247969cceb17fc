// Package loader persists canonical batches through a BatchStore, one
// transaction per batch, in the order they arrive.
//
// Transient store failures are retried with exponential backoff. Each
// attempt resubmits the whole batch; the store skips identifiers it already
// holds, so a retry after an ambiguous failure never duplicates rows. Once a
// batch has been handed to the store it is not interrupted by cancellation of
// the run: the attempt runs on a detached context bounded by IOTimeout and
// either commits or rolls back.
//
// Logging: every committed batch emits one progress line with running totals
// and the rows/sec since the previous commit.
package loader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"satload/internal/metrics"
	"satload/internal/record"
	"satload/internal/storage"
)

// ErrRetriesExhausted is returned when a batch still fails with a transient
// error after MaxRetries retries.
var ErrRetriesExhausted = errors.New("loader: retries exhausted")

// defaultMaxBackoff caps the wait between attempts when Options.MaxBackoff is 0.
const defaultMaxBackoff = 30 * time.Second

// BatchStore writes one batch in one transaction, skipping identifiers that
// already exist. storage.Repository satisfies it.
type BatchStore interface {
	InsertBatch(ctx context.Context, rows []record.Canonical) (storage.InsertResult, error)
}

// Options tune retries and commit pacing. Zero values disable the feature:
// no retries, no pause between commits, no per-attempt timeout.
type Options struct {
	MaxRetries  int
	Backoff     time.Duration // first retry interval; doubles per attempt
	MaxBackoff  time.Duration
	CommitPause time.Duration // minimum idle time between two commits
	IOTimeout   time.Duration // bound of each InsertBatch attempt
}

// Result describes one loaded batch.
type Result struct {
	Seq   int64
	First int64
	Last  int64

	Submitted  int   // records handed to the store after collapsing
	Inserted   int64 // new rows committed
	Duplicates int64 // in-batch repeats plus identifiers already stored
	Collapsed  int64 // in-batch repeats only
	Attempts   int
	Retries    int

	Fingerprint uint64 // xxh3 of the batch identifiers
	Elapsed     time.Duration
}

// Stats are the running totals of a Loader.
type Stats struct {
	Batches  int64 // committed batches
	Inserted int64
	Retries  int64
}

// Loader is not safe for concurrent use; batches must be loaded in order by
// a single goroutine.
type Loader struct {
	store BatchStore
	opt   Options
	log   zerolog.Logger
	rec   *metrics.Recorder

	start      time.Time
	lastCommit time.Time
	batches    int64
	total      int64
	retries    int64
}

// New returns a Loader writing through store. rec may be nil.
func New(store BatchStore, opt Options, log zerolog.Logger, rec *metrics.Recorder) *Loader {
	if opt.MaxRetries < 0 {
		opt.MaxRetries = 0
	}
	if opt.MaxBackoff <= 0 {
		opt.MaxBackoff = defaultMaxBackoff
	}
	if opt.MaxBackoff < opt.Backoff {
		opt.MaxBackoff = opt.Backoff
	}
	return &Loader{store: store, opt: opt, log: log, rec: rec}
}

// Load persists one batch.
//
// Repeated identifiers inside the batch are collapsed first; the first
// occurrence wins. A batch with nothing left to insert is a no-op and opens
// no transaction. Load returns ctx.Err() when ctx is done before the batch
// reaches the store.
func (l *Loader) Load(ctx context.Context, b record.Batch[record.Canonical]) (Result, error) {
	if l.start.IsZero() {
		l.start = time.Now()
	}
	rows, collapsed := Collapse(b.Records)
	res := Result{
		Seq:         b.Seq,
		First:       b.First,
		Last:        b.Last,
		Submitted:   len(rows),
		Duplicates:  collapsed,
		Collapsed:   collapsed,
		Fingerprint: Fingerprint(rows),
	}
	if len(rows) == 0 {
		l.log.Debug().Int64("batch", b.Seq).Int64("first", b.First).Int64("last", b.Last).
			Msg("batch has no insertable records")
		return res, nil
	}

	if err := l.pace(ctx); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	began := time.Now()
	out, err := l.insert(ctx, rows, &res)
	res.Elapsed = time.Since(began)
	l.rec.Step("load", err, res.Elapsed)
	l.rec.Retries(int64(res.Retries))
	l.retries += int64(res.Retries)
	if err != nil {
		l.log.Error().Err(err).Int64("batch", b.Seq).Int64("first", b.First).Int64("last", b.Last).
			Int("attempts", res.Attempts).Msg("batch failed")
		return res, fmt.Errorf("load batch %d (positions %d-%d): %w", b.Seq, b.First, b.Last, err)
	}

	res.Inserted = out.Inserted
	res.Duplicates += out.Duplicates
	l.committed(res, len(b.Records))
	return res, nil
}

// insert runs the retry loop around store.InsertBatch.
func (l *Loader) insert(ctx context.Context, rows []record.Canonical, res *Result) (storage.InsertResult, error) {
	var out storage.InsertResult

	op := func() error {
		res.Attempts++
		actx, cancel := l.attemptContext(ctx)
		defer cancel()

		r, err := l.store.InsertBatch(actx, rows)
		if err == nil {
			out = r
			return nil
		}
		if storage.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		res.Retries++
		l.log.Warn().Err(err).Int64("batch", res.Seq).Int("attempt", res.Attempts).
			Dur("backoff", wait).Msg("transient store failure; retrying")
	}

	err := backoff.RetryNotify(op, l.policy(ctx), notify)
	switch {
	case err == nil:
		return out, nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// Stopped while waiting to retry; the last attempt rolled back.
		return out, fmt.Errorf("retry interrupted: %w", err)
	case storage.IsTransient(err):
		return out, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, res.Attempts, err)
	default:
		return out, err
	}
}

func (l *Loader) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = l.opt.Backoff
	eb.MaxInterval = l.opt.MaxBackoff
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(l.opt.MaxRetries)), ctx)
}

// attemptContext detaches one attempt from run cancellation and bounds it
// with IOTimeout.
func (l *Loader) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if l.opt.IOTimeout > 0 {
		return context.WithTimeout(base, l.opt.IOTimeout)
	}
	return context.WithCancel(base)
}

// pace waits until CommitPause has elapsed since the previous commit.
func (l *Loader) pace(ctx context.Context) error {
	if l.opt.CommitPause <= 0 || l.lastCommit.IsZero() {
		return nil
	}
	wait := l.opt.CommitPause - time.Since(l.lastCommit)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *Loader) committed(res Result, accepted int) {
	now := time.Now()
	since := now.Sub(l.start)
	if !l.lastCommit.IsZero() {
		since = now.Sub(l.lastCommit)
	}
	rps := float64(0)
	if since > 0 {
		rps = float64(res.Inserted) / since.Seconds()
	}
	l.batches++
	l.total += res.Inserted
	l.lastCommit = now

	var rejected int64
	if res.First > 0 && res.Last >= res.First {
		rejected = max(res.Last-res.First+1-int64(accepted), 0)
	}

	l.rec.Records(metrics.KindInserted, res.Inserted)
	l.rec.Records(metrics.KindDuplicates, res.Duplicates)
	l.rec.Batches(1)

	l.log.Info().
		Int64("batch", res.Seq).
		Int64("first", res.First).
		Int64("last", res.Last).
		Int64("inserted", res.Inserted).
		Int64("duplicates", res.Duplicates).
		Int64("rejected", rejected).
		Float64("rps", math.Round(rps)).
		Int64("total_inserted", l.total).
		Dur("elapsed", now.Sub(l.start).Truncate(time.Millisecond)).
		Dur("since_last", since.Truncate(time.Millisecond)).
		Str("fingerprint", fmt.Sprintf("%016x", res.Fingerprint)).
		Msg("batch committed")
}

// Run loads batches from in until it is closed. onResult, when non-nil, is
// called after every successful Load, including no-op batches. Cancellation is only
// observed between batches.
func (l *Loader) Run(ctx context.Context, in <-chan record.Batch[record.Canonical], onResult func(Result)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var (
			b  record.Batch[record.Canonical]
			ok bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok = <-in:
			if !ok {
				l.log.Info().Int64("batches", l.batches).Int64("total_inserted", l.total).Msg("input closed")
				return nil
			}
		}

		res, err := l.Load(ctx, b)
		if err != nil {
			return err
		}
		if onResult != nil {
			onResult(res)
		}
	}
}

// Stats returns the totals accumulated so far.
func (l *Loader) Stats() Stats {
	return Stats{Batches: l.batches, Inserted: l.total, Retries: l.retries}
}

// Package report accumulates the statistics of one load run and writes the
// audit record when the run ends, whether it completed or aborted.
package report

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"satload/internal/transformer"
)

// Status is the final state of a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// Snapshot is a point-in-time copy of a run's statistics. The snapshot
// returned by Finalize is frozen.
type Snapshot struct {
	RunID string
	Annex string
	Table string

	Read       int64
	Inserted   int64
	Rejected   int64
	Duplicates int64
	Batches    int64 // committed batches
	Retries    int64
	RejectedBy map[transformer.Reason]int64

	Watermark    int64 // committed position when the run started
	LastPosition int64 // highest committed position seen by this run

	Start      time.Time
	End        time.Time // zero until finalized
	Throughput float64   // inserted rows per second

	Status Status
	Err    string

	Quality QualitySummary
}

// Elapsed returns End-Start, or the time since Start for a live snapshot.
func (s Snapshot) Elapsed() time.Duration {
	if s.End.IsZero() {
		return time.Since(s.Start)
	}
	return s.End.Sub(s.Start)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (s Snapshot) MarshalZerologObject(e *zerolog.Event) {
	e.Str("run_id", s.RunID).
		Int64("read", s.Read).
		Int64("inserted", s.Inserted).
		Int64("rejected", s.Rejected).
		Int64("duplicates", s.Duplicates).
		Int64("batches", s.Batches).
		Int64("retries", s.Retries).
		Int64("watermark", s.Watermark).
		Int64("last_position", s.LastPosition).
		Dur("elapsed", s.Elapsed().Truncate(time.Millisecond)).
		Float64("rps", s.Throughput)
	if s.Status != "" {
		e.Str("status", string(s.Status))
	}
}

// Reporter is safe for concurrent use by the pipeline stages.
type Reporter struct {
	runID string
	annex string
	table string
	start time.Time
	now   func() time.Time

	read       atomic.Int64
	inserted   atomic.Int64
	rejected   atomic.Int64
	duplicates atomic.Int64
	batches    atomic.Int64
	retries    atomic.Int64
	watermark  atomic.Int64
	lastPos    atomic.Int64

	mu       sync.Mutex
	byReason map[transformer.Reason]int64
	quality  *QualityAuditor

	once  sync.Once
	final Snapshot
}

// Options describe the run a Reporter belongs to.
type Options struct {
	RunID   string // generated when empty
	Annex   string
	Table   string
	Quality *QualityAuditor
	Now     func() time.Time
}

// New starts the clock of a run.
func New(opt Options) *Reporter {
	if opt.RunID == "" {
		opt.RunID = NewRunID()
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Reporter{
		runID:    opt.RunID,
		annex:    opt.Annex,
		table:    opt.Table,
		start:    opt.Now(),
		now:      opt.Now,
		byReason: make(map[transformer.Reason]int64, len(transformer.Reasons)),
		quality:  opt.Quality,
	}
}

// RunID returns the run identifier.
func (r *Reporter) RunID() string { return r.runID }

// ObserveWatermark records the position the run resumed from.
func (r *Reporter) ObserveWatermark(w int64) {
	r.watermark.Store(w)
	r.raiseLast(w)
}

// ObserveRead adds n records read from the source.
func (r *Reporter) ObserveRead(n int64) { r.read.Add(n) }

// ObserveRejections counts rejected records by reason.
func (r *Reporter) ObserveRejections(rs []transformer.Rejection) {
	if len(rs) == 0 {
		return
	}
	r.rejected.Add(int64(len(rs)))
	r.mu.Lock()
	for _, rj := range rs {
		r.byReason[rj.Reason]++
	}
	r.mu.Unlock()
}

// ObserveLoad records the outcome of one batch. committed is false for a
// batch that had nothing to insert.
func (r *Reporter) ObserveLoad(inserted, duplicates, last int64, committed bool) {
	r.inserted.Add(inserted)
	r.duplicates.Add(duplicates)
	if committed {
		r.batches.Add(1)
		r.raiseLast(last)
	}
}

// ObserveRetry adds n retried store attempts.
func (r *Reporter) ObserveRetry(n int64) { r.retries.Add(n) }

func (r *Reporter) raiseLast(p int64) {
	for {
		cur := r.lastPos.Load()
		if p <= cur || r.lastPos.CompareAndSwap(cur, p) {
			return
		}
	}
}

// Snapshot returns the live statistics, or the frozen ones after Finalize.
func (r *Reporter) Snapshot() Snapshot {
	if s, ok := r.frozen(); ok {
		return s
	}
	return r.snapshot(time.Time{})
}

func (r *Reporter) frozen() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.final, !r.final.End.IsZero()
}

func (r *Reporter) snapshot(end time.Time) Snapshot {
	s := Snapshot{
		RunID:        r.runID,
		Annex:        r.annex,
		Table:        r.table,
		Read:         r.read.Load(),
		Inserted:     r.inserted.Load(),
		Rejected:     r.rejected.Load(),
		Duplicates:   r.duplicates.Load(),
		Batches:      r.batches.Load(),
		Retries:      r.retries.Load(),
		Watermark:    r.watermark.Load(),
		LastPosition: r.lastPos.Load(),
		Start:        r.start,
		End:          end,
	}
	r.mu.Lock()
	s.RejectedBy = make(map[transformer.Reason]int64, len(r.byReason))
	for k, v := range r.byReason {
		s.RejectedBy[k] = v
	}
	r.mu.Unlock()
	if r.quality != nil {
		s.Quality = r.quality.Summary()
	}

	if secs := s.Elapsed().Seconds(); secs > 0 {
		s.Throughput = float64(s.Inserted) / secs
	}
	return s
}

// Finalize freezes the statistics with the given status. Only the first call
// has an effect; later calls return the same snapshot.
func (r *Reporter) Finalize(status Status, err error) Snapshot {
	r.once.Do(func() {
		end := r.now()
		if !end.After(r.start) {
			end = r.start.Add(time.Nanosecond)
		}
		s := r.snapshot(end)
		s.Status = status
		if err != nil {
			s.Err = err.Error()
		}
		r.mu.Lock()
		r.final = s
		r.mu.Unlock()
	})
	s, _ := r.frozen()
	return s
}

// Reasons returns the keys of RejectedBy in reporting order, followed by any
// reason not in transformer.Reasons.
func (s Snapshot) Reasons() []transformer.Reason {
	out := append([]transformer.Reason(nil), transformer.Reasons...)
	var extra []transformer.Reason
	for k := range s.RejectedBy {
		known := false
		for _, r := range transformer.Reasons {
			known = known || r == k
		}
		if !known {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

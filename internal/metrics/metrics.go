// Package metrics records operational counters and timings for a load run
// without tying the pipeline to a particular metrics system.
//
// Components receive a *Recorder built around a Backend. Concrete backends
// live in subpackages (prompush, datadog); Nop is used when none is
// configured, so recording is always safe.
package metrics

import "time"

// Metric names emitted by Recorder.
const (
	RecordsTotal = "satload_records_total"
	BatchesTotal = "satload_batches_total"
	StepTotal    = "satload_step_total"
	StepDuration = "satload_step_duration_seconds"
	RetriesTotal = "satload_retries_total"
)

// Record kinds used with Recorder.Records.
const (
	KindRead       = "read"
	KindInserted   = "inserted"
	KindDuplicates = "duplicates"
	KindRejected   = "rejected"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }

// Recorder stamps every metric with a job label and forwards it to a
// Backend. A nil *Recorder records nothing.
type Recorder struct {
	backend Backend
	job     string
}

// NewRecorder returns a Recorder for job. A nil backend is replaced by Nop.
func NewRecorder(b Backend, job string) *Recorder {
	if b == nil {
		b = Nop{}
	}
	return &Recorder{backend: b, job: job}
}

// Step records one execution of a pipeline step and its duration.
func (r *Recorder) Step(step string, err error, d time.Duration) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": r.job, "step": step, "status": status}
	r.backend.IncCounter(StepTotal, 1, lbls)
	r.backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// Records adds delta to the record counter of kind.
func (r *Recorder) Records(kind string, delta int64) {
	if r == nil || delta <= 0 {
		return
	}
	r.backend.IncCounter(RecordsTotal, float64(delta), Labels{"job": r.job, "kind": kind})
}

// Batches adds delta committed batches.
func (r *Recorder) Batches(delta int64) {
	if r == nil || delta <= 0 {
		return
	}
	r.backend.IncCounter(BatchesTotal, float64(delta), Labels{"job": r.job})
}

// Retries adds delta retried store attempts.
func (r *Recorder) Retries(delta int64) {
	if r == nil || delta <= 0 {
		return
	}
	r.backend.IncCounter(RetriesTotal, float64(delta), Labels{"job": r.job})
}

// Flush delegates to the backend.
func (r *Recorder) Flush() error {
	if r == nil {
		return nil
	}
	return r.backend.Flush()
}

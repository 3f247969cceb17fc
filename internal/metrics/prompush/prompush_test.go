package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"satload/internal/metrics"
)

// readCounterValue reads the current value of a Counter for assertions in tests.
func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatalf("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

func readSummaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()

	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	}
	m := &dto.Metric{}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	if m.GetSummary() == nil {
		t.Fatalf("metric did not contain Summary value")
	}
	return m.GetSummary().GetSampleCount(), m.GetSummary().GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL", jobName: "1A", wantErr: true},
		{name: "empty job name uses default", gatewayURL: "http://pushgateway:9091", wantJobName: "satload"},
		{name: "explicit job name", jobName: "satload-3C", gatewayURL: "http://pushgateway:9091", wantJobName: "satload-3C"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend(%q, %q) = %v, %v; want nil, error", tt.jobName, tt.gatewayURL, b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend(%q, %q) error = %v, want nil", tt.jobName, tt.gatewayURL, err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("backend.jobName = %q, want %q", b.jobName, tt.wantJobName)
			}
			if b.gatewayURL != tt.gatewayURL {
				t.Fatalf("backend.gatewayURL = %q, want %q", b.gatewayURL, tt.gatewayURL)
			}
			if b.stepCounter == nil || b.stepDuration == nil || b.recordCounter == nil || b.batchCounter == nil || b.retryCounter == nil {
				t.Fatalf("collectors not initialised: %+v", b)
			}
		})
	}
}

func TestIncCounter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		metric string
		delta  float64
		labels metrics.Labels
		read   func(b *Backend) prometheus.Counter
		want   float64
	}{
		{
			name:   "step counter",
			metric: metrics.StepTotal, delta: 3,
			labels: metrics.Labels{"step": "load", "status": "success"},
			read:   func(b *Backend) prometheus.Counter { return b.stepCounter.WithLabelValues("load", "success") },
			want:   3,
		},
		{
			name:   "record counter by kind",
			metric: metrics.RecordsTotal, delta: 5,
			labels: metrics.Labels{"kind": metrics.KindInserted},
			read:   func(b *Backend) prometheus.Counter { return b.recordCounter.WithLabelValues(metrics.KindInserted) },
			want:   5,
		},
		{
			name:   "batch counter",
			metric: metrics.BatchesTotal, delta: 2,
			read:   func(b *Backend) prometheus.Counter { return b.batchCounter },
			want:   2,
		},
		{
			name:   "retry counter",
			metric: metrics.RetriesTotal, delta: 1,
			read:   func(b *Backend) prometheus.Counter { return b.retryCounter },
			want:   1,
		},
		{
			name:   "unknown name is ignored",
			metric: "unknown_metric", delta: 10,
			read:   func(b *Backend) prometheus.Counter { return b.batchCounter },
			want:   0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend("satload", "http://example.com")
			if err != nil {
				t.Fatalf("NewBackend() error = %v", err)
			}
			b.IncCounter(tt.metric, tt.delta, tt.labels)
			if got := readCounterValue(t, tt.read(b)); got != tt.want {
				t.Fatalf("counter value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIncCounterNilCollectors(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"kind": metrics.KindRead})
	b.IncCounter(metrics.BatchesTotal, 1, nil)
	b.IncCounter(metrics.RetriesTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDuration, 1, nil)
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("satload", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	lbls := metrics.Labels{"step": "load", "status": "success"}
	b.ObserveHistogram(metrics.StepDuration, 1.5, lbls)
	b.ObserveHistogram("other_metric", 2.0, lbls)

	count, sum := readSummaryCountSum(t, b.stepDuration, "load", "success")
	if count != 1 || sum != 1.5 {
		t.Fatalf("summary = count %d sum %v, want 1 and 1.5", count, sum)
	}
}

// TestFlush pushes to a fake Pushgateway through a Recorder.
func TestFlush(t *testing.T) {
	t.Parallel()

	type pushRequest struct {
		method  string
		path    string
		bodyLen int
	}
	reqCh := make(chan pushRequest, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushRequest{method: r.Method, path: r.URL.Path, bodyLen: len(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("satload-1A", server.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	rec := metrics.NewRecorder(b, "1A")
	rec.Records(metrics.KindInserted, 10)
	rec.Batches(1)

	if err := rec.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got pushRequest
	select {
	case got = <-reqCh:
	default:
		t.Fatalf("Flush() did not send a request to the Pushgateway")
	}
	if got.method != http.MethodPut {
		t.Fatalf("push method = %q, want PUT", got.method)
	}
	if got.path != "/metrics/job/satload-1A" {
		t.Fatalf("push path = %q, want /metrics/job/satload-1A", got.path)
	}
	if got.bodyLen == 0 {
		t.Fatalf("push body is empty")
	}
}

func BenchmarkIncCounterRecord(b *testing.B) {
	backend, err := NewBackend("satload", "http://example.com")
	if err != nil {
		b.Fatalf("NewBackend() error = %v", err)
	}
	labels := metrics.Labels{"kind": metrics.KindRead}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.IncCounter(metrics.RecordsTotal, 1, labels)
	}
}

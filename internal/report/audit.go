package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// AuditWriter persists the final snapshot of a run.
type AuditWriter interface {
	WriteAudit(ctx context.Context, s Snapshot, status Status, runErr error) error
}

// FileAuditWriter writes one ETL_AUDIT_LOG_<yyyymmdd_hhmmss>.txt per run
// into Dir. A numeric suffix is added when two runs finish in the same
// second.
type FileAuditWriter struct {
	Dir string
	Now func() time.Time

	// LastPath is the file written by the most recent WriteAudit.
	LastPath string
}

// WriteAudit implements AuditWriter.
func (w *FileAuditWriter) WriteAudit(ctx context.Context, s Snapshot, status Status, runErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	dir := w.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("audit dir: %w", err)
	}

	ts := now()
	base := "ETL_AUDIT_LOG_" + ts.Format("20060102_150405")
	var (
		f    *os.File
		err  error
		path string
	)
	for i := 1; i <= 100; i++ {
		path = filepath.Join(dir, base+".txt")
		if i > 1 {
			path = filepath.Join(dir, fmt.Sprintf("%s_%d.txt", base, i))
		}
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if !errors.Is(err, os.ErrExist) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}

	if _, err := io.WriteString(f, Render(s, status, runErr, ts)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write audit log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close audit log: %w", err)
	}
	w.LastPath = path
	return nil
}

// LogAuditWriter writes the snapshot as one structured log event.
type LogAuditWriter struct {
	Log zerolog.Logger
}

// WriteAudit implements AuditWriter.
func (w LogAuditWriter) WriteAudit(_ context.Context, s Snapshot, status Status, runErr error) error {
	ev := w.Log.Info()
	if status != StatusCompleted {
		ev = w.Log.Error().Err(runErr)
	}
	s.Status = status
	ev.EmbedObject(s).
		Int64("quality_nulls", s.Quality.Nulls).
		Int64("quality_mojibake", s.Quality.Mojibake).
		Int64("quality_short", s.Quality.Short).
		Msg("run finished")
	return nil
}

// MultiWriter writes to every writer and joins their errors.
type MultiWriter []AuditWriter

// WriteAudit implements AuditWriter.
func (m MultiWriter) WriteAudit(ctx context.Context, s Snapshot, status Status, runErr error) error {
	var errs []error
	for _, w := range m {
		if w == nil {
			continue
		}
		if err := w.WriteAudit(ctx, s, status, runErr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const (
	ruleWide   = 80
	ruleNarrow = 60
)

// Render formats the audit report text.
func Render(s Snapshot, status Status, runErr error, now time.Time) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	wide := strings.Repeat("=", ruleWide)
	dash := strings.Repeat("-", ruleWide)

	line("%s", wide)
	line("SAT ETL PROCESS - EXECUTION REPORT")
	line("%s", wide)
	line("Run ID:          %s", s.RunID)
	if s.Annex != "" {
		line("Annex:           %s", s.Annex)
	}
	if s.Table != "" {
		line("Table:           %s", s.Table)
	}
	line("Timestamp:       %s", now.Format("2006-01-02 15:04:05"))
	line("Final Status:    %s", strings.ToUpper(string(status)))
	line("Duration (min):  %.2f", s.Elapsed().Minutes())
	line("Rows Read:       %s", thousands(s.Read))
	line("Total Rows:      %s", thousands(s.Inserted))
	line("Duplicates:      %s", thousands(s.Duplicates))
	line("Rejected:        %s", thousands(s.Rejected))
	line("Total Batches:   %d", s.Batches)
	line("Retries:         %d", s.Retries)
	line("Resumed From:    %d", s.Watermark)
	line("Last Position:   %d", s.LastPosition)
	line("Throughput:      %s rows/sec", thousands(int64(s.Throughput)))
	line("%s", dash)
	line("REJECTIONS BY REASON")
	line("%s", dash)
	for _, r := range s.Reasons() {
		line("%-26s %d", string(r)+":", s.RejectedBy[r])
	}
	line("%s", dash)
	if s.Quality.Column != "" {
		line("DATA QUALITY METRICS (%s)", s.Quality.Column)
	} else {
		line("DATA QUALITY METRICS")
	}
	line("%s", dash)
	line("Encoding Alerts (Mojibake):   %d", s.Quality.Mojibake)
	line("Length Alerts (<%d chars):     %d", MinTextLength, s.Quality.Short)
	line("Null Value Alerts:            %d", s.Quality.Nulls)
	line("%s", wide)

	if samples := s.Quality.MojibakeSamples; len(samples) > 0 {
		line("")
		line("[EVIDENCE] DETECTED ENCODING ARTIFACTS (Action: update the mojibake rules table):")
		line("%s", strings.Repeat("-", ruleNarrow))
		for _, v := range samples[:min(len(samples), MaxMojibakeEvidence)] {
			line("    %q: \"FIX_ME\",", v)
		}
		if n := len(samples) - MaxMojibakeEvidence; n > 0 {
			line("")
			line("    ... and %d more items truncated.", n)
		}
	}
	if samples := s.Quality.ShortSamples; len(samples) > 0 {
		line("")
		line("[EVIDENCE] SUSPICIOUSLY SHORT STRINGS (Potential Mutilation):")
		line("%s", strings.Repeat("-", ruleNarrow))
		for _, v := range samples[:min(len(samples), MaxShortEvidence)] {
			line("    Value: '%s'", v)
		}
	}

	detail := s.Err
	if runErr != nil {
		detail = runErr.Error()
	}
	if detail != "" {
		bang := strings.Repeat("!", ruleWide)
		line("")
		line("%s", bang)
		line("CRITICAL FAILURE DETAILS")
		line("%s", bang)
		line("%s", detail)
	}
	return b.String()
}

var num = message.NewPrinter(language.English)

// thousands formats n with comma separators.
func thousands(n int64) string { return num.Sprintf("%d", n) }

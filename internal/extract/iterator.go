package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"satload/internal/record"
)

// ctxCheckEvery is how many rows are read between context checks while
// skipping the committed prefix.
const ctxCheckEvery = 4096

// Iterator yields the batches after a watermark. It is not safe for
// concurrent use.
type Iterator struct {
	e *Extractor
	w int64

	rc io.Closer
	lr *lineReader

	pos      int64 // ordinal of the last row read from the current reader
	yielded  int64 // last position handed out in a batch
	seq      int64
	attempts int
	done     bool
	err      error
}

// Batches returns an iterator over the records with position > w.
func (e *Extractor) Batches(_ context.Context, w record.Watermark) *Iterator {
	return &Iterator{e: e, w: int64(w), yielded: int64(w)}
}

// Next returns the next batch, or io.EOF after the last one. A read timeout
// reopens the source, skips to the last yielded position and tries again,
// up to Options.MaxRetries times; any other read error is fatal and sticky.
func (it *Iterator) Next(ctx context.Context) (record.Batch[record.Raw], error) {
	if it.err != nil {
		return record.Batch[record.Raw]{}, it.err
	}
	if it.done {
		return record.Batch[record.Raw]{}, io.EOF
	}
	for {
		b, err := it.next(ctx)
		if err == nil || errors.Is(err, io.EOF) {
			return b, err
		}
		if !errors.Is(err, ErrReadTimeout) || it.attempts >= it.e.opt.MaxRetries {
			it.fail(err)
			return record.Batch[record.Raw]{}, it.err
		}
		it.attempts++
		it.e.log.Warn().Err(err).
			Int("attempt", it.attempts).
			Int64("resume_after", it.yielded).
			Msg("source stalled; reopening")
		it.closeReader()
		if err := sleepCtx(ctx, it.e.opt.RetryBackoff); err != nil {
			it.fail(err)
			return record.Batch[record.Raw]{}, it.err
		}
	}
}

func (it *Iterator) next(ctx context.Context) (record.Batch[record.Raw], error) {
	if err := ctx.Err(); err != nil {
		return record.Batch[record.Raw]{}, err
	}
	if it.lr == nil {
		if err := it.reopen(ctx); err != nil {
			return record.Batch[record.Raw]{}, err
		}
	}

	width := len(it.e.header)
	size := it.e.opt.BatchSize
	recs := make([]record.Raw, 0, size)
	for len(recs) < size {
		fields, err := it.lr.next()
		if errors.Is(err, io.EOF) {
			it.done = true
			it.closeReader()
			break
		}
		if err != nil {
			return record.Batch[record.Raw]{}, fmt.Errorf("read row after position %d: %w", it.pos, err)
		}
		it.pos++
		if it.pos <= it.yielded {
			if it.pos%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return record.Batch[record.Raw]{}, err
				}
			}
			continue
		}

		vals := make([]any, width)
		for i := 0; i < width && i < len(fields); i++ {
			vals[i] = fields[i]
		}
		id := ""
		if s, ok := vals[it.e.idIdx].(string); ok {
			id = strings.TrimSpace(s)
		}
		recs = append(recs, record.Raw{Position: it.pos, UUID: id, Values: vals})
	}

	if len(recs) == 0 {
		return record.Batch[record.Raw]{}, io.EOF
	}
	it.seq++
	it.attempts = 0
	it.yielded = recs[len(recs)-1].Position
	return record.Batch[record.Raw]{
		Seq:     it.seq,
		First:   recs[0].Position,
		Last:    it.yielded,
		Records: recs,
	}, nil
}

// reopen opens the source, checks its header and rewinds the row counter so
// that rows up to it.yielded are skipped.
func (it *Iterator) reopen(ctx context.Context) error {
	if _, err := it.e.Header(ctx); err != nil {
		return err
	}
	rc, lr, err := it.e.open(ctx)
	if err != nil {
		return err
	}
	h, err := readHeader(lr, it.e.opt.HeaderMap)
	if err != nil {
		_ = rc.Close()
		return err
	}
	if len(h) != len(it.e.header) {
		_ = rc.Close()
		return fmt.Errorf("header changed between opens: %d columns, want %d", len(h), len(it.e.header))
	}
	it.rc, it.lr, it.pos = rc, lr, 0
	return nil
}

func (it *Iterator) closeReader() {
	if it.rc != nil {
		_ = it.rc.Close()
	}
	it.rc, it.lr = nil, nil
}

func (it *Iterator) fail(err error) {
	it.err = fmt.Errorf("extract: %w", err)
	it.closeReader()
}

// Close releases the source. It is safe to call more than once.
func (it *Iterator) Close() error {
	it.closeReader()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

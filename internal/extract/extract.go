// Package extract streams a delimited SAT extract as bounded, ordered batches
// of raw records.
//
// Positions are 1-based data-row ordinals (the header is not counted). An
// iterator started at watermark W reads and discards rows 1..W and yields
// W+1 onwards in batches of at most Options.BatchSize, strictly ascending and
// without gaps. Nothing beyond the current batch is buffered.
//
// Every physical line is one record. SAT extracts are not quoted CSV: a '"'
// is an ordinary character and a field never continues onto the next line,
// so one malformed row cannot swallow the rows after it. Blank lines are
// skipped and do not take a position. A line longer than
// Options.MaxLineBytes fails the read with ErrLineTooLong.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"satload/internal/record"
	"satload/internal/schema"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// readBufferSize bounds each source read, and so each deadline check.
const readBufferSize = 256 << 10

// ErrNoIdentifier reports a header without the identifier column.
var ErrNoIdentifier = schema.ErrNoIdentifier

// Options configures an Extractor. Zero values take the defaults noted.
type Options struct {
	BatchSize    int               // default 50000
	Delimiter    rune              // default '|'
	IOTimeout    time.Duration     // per read; 0 disables
	HeaderMap    map[string]string // source name -> destination name
	IDColumn     string            // default "UUID"
	MaxRetries   int               // reopen attempts after a read timeout
	RetryBackoff time.Duration     // pause before each reopen
	MaxLineBytes int               // default DefaultMaxLineBytes
	Logger       *zerolog.Logger
}

// Extractor reads one Source.
type Extractor struct {
	src Source
	opt Options
	log zerolog.Logger

	header []string
	idIdx  int
}

// New returns an Extractor over src.
func New(src Source, opt Options) *Extractor {
	if opt.BatchSize <= 0 {
		opt.BatchSize = 50000
	}
	if opt.Delimiter == 0 {
		opt.Delimiter = '|'
	}
	if opt.IDColumn == "" {
		opt.IDColumn = schema.DefaultIDColumn
	}
	if opt.MaxRetries < 0 {
		opt.MaxRetries = 0
	}
	if opt.MaxLineBytes <= 0 {
		opt.MaxLineBytes = DefaultMaxLineBytes
	}
	log := zerolog.Nop()
	if opt.Logger != nil {
		log = *opt.Logger
	}
	return &Extractor{src: src, opt: opt, log: log, idIdx: -1}
}

// Header returns the normalized column names of the extract: BOM stripped,
// names trimmed and renamed through HeaderMap. The identifier column must be
// present, else the error wraps ErrNoIdentifier.
func (e *Extractor) Header(ctx context.Context) ([]string, error) {
	if e.header != nil {
		return e.header, nil
	}
	rc, lr, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	h, err := readHeader(lr, e.opt.HeaderMap)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, name := range h {
		if strings.EqualFold(name, e.opt.IDColumn) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: column %q not in header", ErrNoIdentifier, e.opt.IDColumn)
	}
	e.header, e.idIdx = h, idx
	return h, nil
}

// open opens the source and builds a lineReader positioned before the header.
func (e *Extractor) open(ctx context.Context) (io.Closer, *lineReader, error) {
	rc, err := e.src.Open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open source: %w", err)
	}
	lr := newLineReader(newDeadlineReader(rc, e.opt.IOTimeout), e.opt.Delimiter, e.opt.MaxLineBytes)
	return rc, lr, nil
}

func readHeader(lr *lineReader, headerMap map[string]string) ([]string, error) {
	h, err := lr.next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header: empty source")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return normalizeHeader(h, headerMap), nil
}

// normalizeHeader trims names, strips a UTF-8 BOM from the first cell and
// applies headerMap (keyed by the trimmed source name).
func normalizeHeader(h []string, headerMap map[string]string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimSpace(strings.TrimPrefix(c, utf8BOM))
		}
		if m, ok := headerMap[c]; ok {
			c = m
		}
		res[i] = c
	}
	return res
}

// Run is the producer stage: it sends every batch after w into out, blocking
// while out is full, and returns nil at the end of the source. The caller
// closes out.
func (e *Extractor) Run(ctx context.Context, w record.Watermark, out chan<- record.Batch[record.Raw]) error {
	it := e.Batches(ctx, w)
	defer it.Close()

	for {
		b, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case out <- b:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

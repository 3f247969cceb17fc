// Package record defines the values that flow through a load run: raw rows read
// from an extract, canonical rows ready for the destination, the bounded
// batches that carry them, and the watermark that marks the committed prefix
// of the source.
package record

// Watermark is the highest source position known to be committed to the
// destination. Every position <= Watermark is durable.
type Watermark int64

// StartOfStream is the watermark of an empty destination.
const StartOfStream Watermark = 0

// Raw is one data row as read from the source. Values are aligned to the
// extract header: a nil entry means the field was absent from the row (short
// or ragged line), a string entry holds the text exactly as read.
type Raw struct {
	Position int64
	UUID     string
	Values   []any
}

// Canonical is a Raw after normalization, coercion and validation. Values are
// aligned to the destination data columns; nil is SQL NULL.
type Canonical struct {
	Position int64
	UUID     string
	Values   []any
}

// Batch is an ordered, bounded run of records of one kind.
//
// Seq is the 1-based ordinal of the batch within a run. First and Last are the
// source positions the batch was cut from; they survive transformation even
// when the records at either end were rejected.
type Batch[T any] struct {
	Seq     int64
	First   int64
	Last    int64
	Records []T
}

// Len returns the number of records in the batch.
func (b Batch[T]) Len() int { return len(b.Records) }

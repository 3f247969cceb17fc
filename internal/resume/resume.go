// Package resume resolves the point a run restarts from: the highest source
// position already committed to the destination.
package resume

import (
	"context"
	"errors"
	"fmt"
	"time"

	"satload/internal/record"
	"satload/internal/storage"
)

// ErrUnreachable reports that the destination could not be queried. A run
// cannot start without knowing its watermark.
var ErrUnreachable = errors.New("resume: destination unreachable")

// WatermarkStore is the read the tracker needs from a destination.
// storage.Repository satisfies it.
type WatermarkStore interface {
	MaxPosition(ctx context.Context) (max int64, ok bool, err error)
}

// Tracker resolves watermarks against one destination table.
type Tracker struct {
	Store   WatermarkStore
	Timeout time.Duration // bounds the query; 0 means no bound beyond ctx
}

// ResolveWatermark returns the committed watermark. An empty or missing
// table is StartOfStream. Any other failure, including a timeout, is fatal and
// wraps ErrUnreachable.
func (t Tracker) ResolveWatermark(ctx context.Context) (record.Watermark, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	max, ok, err := t.Store.MaxPosition(ctx)
	switch {
	case errors.Is(err, storage.ErrTableMissing):
		return record.StartOfStream, nil
	case err != nil:
		return 0, fmt.Errorf("%w: %w", ErrUnreachable, err)
	case !ok:
		return record.StartOfStream, nil
	case max < 0:
		return 0, fmt.Errorf("%w: negative max position %d", ErrUnreachable, max)
	}
	return record.Watermark(max), nil
}

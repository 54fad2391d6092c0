package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Info is a point-in-time observation of a source.
type Info struct {
	Size    int64
	ModTime time.Time
}

// Source is a byte-addressable, possibly growing blob of log text.
//
// Implementations must be deterministic: repeated reads of the same unchanged
// range return identical bytes.
type Source interface {
	// Name identifies the source for display and logging.
	Name() string
	// Stat returns the current size and modification time.
	Stat(ctx context.Context) (Info, error)
	// ReadRange returns the bytes in [start, end).
	ReadRange(ctx context.Context, start, end int64) ([]byte, error)
}

// ErrInvalidRange is returned for a range with start < 0 or end < start.
var ErrInvalidRange = errors.New("invalid byte range")

// ReadError reports an I/O failure while reading or stating a source.
type ReadError struct {
	Source string
	Start  int64
	End    int64
	Err    error
}

func (e *ReadError) Error() string {
	if e.Start == 0 && e.End == 0 {
		return fmt.Sprintf("read %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("read %s [%d,%d): %v", e.Source, e.Start, e.End, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ReadAll returns the full current content of src.
func ReadAll(ctx context.Context, src Source) ([]byte, error) {
	info, err := src.Stat(ctx)
	if err != nil {
		return nil, err
	}
	if info.Size == 0 {
		return []byte{}, nil
	}
	return src.ReadRange(ctx, 0, info.Size)
}

func checkRange(start, end int64) error {
	if start < 0 || end < start {
		return fmt.Errorf("%w: [%d,%d)", ErrInvalidRange, start, end)
	}
	return nil
}

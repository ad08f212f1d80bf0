// Package storage loads the raw bytes of a nutrition lookup table from wherever it is kept.
package storage

import (
	"context"
	"fmt"
	"io"
)

// MaxTableBytes caps how much of a table source is read.
const MaxTableBytes = 1 << 20

type TableState interface {
	Load(ctx context.Context) ([]byte, error)
}

// StaticTableState serves fixed bytes, or a fixed error. Useful for inline tables and tests.
type StaticTableState struct {
	data []byte
	err  error
}

func NewStaticTableState(data []byte) *StaticTableState {
	return &StaticTableState{data: data}
}

func NewFailingTableState(err error) *StaticTableState {
	return &StaticTableState{err: err}
}

func (s *StaticTableState) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.data, s.err
}

func readLimited(r io.Reader, source string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxTableBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read nutrition table %s: %w", source, err)
	}
	if len(data) > MaxTableBytes {
		return nil, fmt.Errorf("nutrition table %s exceeds %d bytes", source, MaxTableBytes)
	}
	return data, nil
}

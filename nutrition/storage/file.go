package storage

import (
	"context"
	"fmt"
	"os"
)

type FileTableState struct {
	path string
}

func NewFileTableState(path string) *FileTableState {
	return &FileTableState{path: path}
}

func (f *FileTableState) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open nutrition table: %w", err)
	}
	defer fh.Close()

	return readLimited(fh, f.path)
}

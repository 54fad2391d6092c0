package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File reads a local file by path. The file is reopened for every call so
// that rotation and truncation by other processes are observed.
type File struct {
	path string
}

// NewFile returns a File source for path.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	return &File{path: abs}, nil
}

// Name implements Source.
func (f *File) Name() string { return f.path }

// Path returns the absolute path of the file.
func (f *File) Path() string { return f.path }

// Stat implements Source.
func (f *File) Stat(ctx context.Context) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(f.path)
	if err != nil {
		return Info{}, &ReadError{Source: f.path, Err: err}
	}
	if fi.IsDir() {
		return Info{}, &ReadError{Source: f.path, Err: fmt.Errorf("is a directory")}
	}
	return Info{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// ReadRange implements Source.
func (f *File) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.path)
	if err != nil {
		return nil, &ReadError{Source: f.path, Start: start, End: end, Err: err}
	}
	defer func() { _ = file.Close() }()

	buf := make([]byte, end-start)
	if _, err := file.ReadAt(buf, start); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, &ReadError{Source: f.path, Start: start, End: end, Err: err}
	}
	return buf, nil
}

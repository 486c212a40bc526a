package storage

import (
	"errors"
	"io"
)

var ErrInvalidPath = errors.New("invalid path")

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// PendingFile receives content under a temporary name. Commit moves it into
// place under the requested name; Discard removes it and is a no-op after Commit.
type PendingFile interface {
	io.Writer
	Commit() error
	Discard() error
}

// Storage keeps uploaded media and downloaded processed copies under stable names.
type Storage interface {
	SaveFile(r io.Reader, info FileInfo) (string, error)
	CreateFile(name string) (PendingFile, error)
	OpenFile(name string) (io.ReadSeekCloser, error)
	GetFilePath(name string) (string, error)
	DeleteFile(name string) error
}

package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// SaveFile copies r into a new uniquely named file and returns that name.
func (ls *LocalStorage) SaveFile(r io.Reader, info FileInfo) (string, error) {
	filename := uuid.New().String() + extensionFor(info)
	fullPath := filepath.Join(ls.basePath, filename)

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return filename, nil
}

// CreateFile starts writing name. Readers never see the file until Commit, so
// a failed download leaves no partial copy behind.
func (ls *LocalStorage) CreateFile(name string) (PendingFile, error) {
	fullPath, err := ls.GetFilePath(name)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(filepath.Dir(fullPath), ".pending-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &pendingFile{File: f, target: fullPath}, nil
}

type pendingFile struct {
	*os.File
	target string
	done   bool
}

func (p *pendingFile) Commit() error {
	if p.done {
		return nil
	}
	p.done = true
	if err := p.File.Close(); err != nil {
		os.Remove(p.File.Name())
		return fmt.Errorf("failed to save file: %w", err)
	}
	if err := os.Rename(p.File.Name(), p.target); err != nil {
		os.Remove(p.File.Name())
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

func (p *pendingFile) Discard() error {
	if p.done {
		return nil
	}
	p.done = true
	p.File.Close()
	return os.Remove(p.File.Name())
}

func (ls *LocalStorage) OpenFile(name string) (io.ReadSeekCloser, error) {
	fullPath, err := ls.GetFilePath(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// GetFilePath resolves name inside the storage root.
func (ls *LocalStorage) GetFilePath(name string) (string, error) {
	cleanPath := filepath.Clean(name)
	if name == "" || filepath.IsAbs(cleanPath) || strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return filepath.Join(ls.basePath, cleanPath), nil
}

func (ls *LocalStorage) DeleteFile(name string) error {
	fullPath, err := ls.GetFilePath(name)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

func extensionFor(info FileInfo) string {
	if ext := filepath.Ext(info.Filename); ext != "" {
		return strings.ToLower(ext)
	}
	switch {
	case strings.HasPrefix(info.ContentType, "image/"):
		return ".jpg"
	case strings.HasPrefix(info.ContentType, "video/"):
		return ".mp4"
	}
	return ".bin"
}

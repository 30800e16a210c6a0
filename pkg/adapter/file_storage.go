package adapter

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// fileStorage implements Storage on a local directory
type fileStorage struct {
	dir string
}

// NewFileStorage uses dir as a flat object store, creating it if needed
func NewFileStorage(dir string) (Storage, error) {
	if dir == "" {
		return nil, goerr.New("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create storage directory", goerr.V("dir", dir))
	}
	return &fileStorage{dir: dir}, nil
}

func (s *fileStorage) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || key == "." || key == ".." {
		return "", goerr.New("invalid object key", goerr.V("key", key))
	}
	return filepath.Join(s.dir, key), nil
}

// Put writes to a temporary file that is renamed over the key on Close, so readers
// never observe a partially written object.
func (s *fileStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	dst, err := s.path(key)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+key+"-*")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create temporary file", goerr.V("key", key))
	}

	return &fileWriter{file: tmp, dst: dst}, nil
}

// fileWriter discards the temporary file instead of renaming it once any Write failed
type fileWriter struct {
	file *os.File
	dst  string
	err  error
}

func (w *fileWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.file.Write(p)
	if err != nil {
		w.err = goerr.Wrap(err, "failed to write temporary file", goerr.V("path", w.dst))
	}
	return n, w.err
}

func (w *fileWriter) Close() error {
	if w.err != nil {
		_ = w.file.Close()
		os.Remove(w.file.Name())
		return w.err
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return goerr.Wrap(err, "failed to close temporary file", goerr.V("path", w.dst))
	}
	if err := os.Rename(w.file.Name(), w.dst); err != nil {
		os.Remove(w.file.Name())
		return goerr.Wrap(err, "failed to store object", goerr.V("path", w.dst))
	}
	return nil
}

func (s *fileStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrObjectNotFound, "object does not exist", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to open object", goerr.V("key", key))
	}
	return f, nil
}

func (s *fileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read storage directory", goerr.V("dir", s.dir))
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			keys = append(keys, name)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

func (s *fileStorage) Locate(key string) string {
	return filepath.Join(s.dir, key)
}

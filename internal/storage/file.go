package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileKV stores all keys as one JSON object in a single file, the local
// analogue of a per-profile browser store. Writes go to a temp file and are
// renamed into place.
type FileKV struct {
	path string
	mu   sync.Mutex
}

// NewFileKV creates a FileKV at path, creating the parent directory.
func NewFileKV(path string) (*FileKV, error) {
	if path == "" {
		return nil, errors.New("file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileKV{path: path}, nil
}

// Get implements KV.Get. An unreadable JSON document reads as empty.
func (f *FileKV) Get(ctx context.Context, key string) (string, bool, error) {
	if ctx.Err() != nil {
		return "", false, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.readAll()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

// Set implements KV.Set as a read-modify-write of the whole file.
func (f *FileKV) Set(ctx context.Context, key, value string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.readAll()
	if err != nil {
		return err
	}
	data[key] = value

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal storage file: %w", err)
	}
	return f.replace(raw)
}

// replace swaps in the new document through a uniquely named temp file in the
// same directory, so concurrent processes never rename each other's temp file.
func (f *FileKV) replace(raw []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create tmp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write tmp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close tmp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename storage file: %w", err)
	}
	return nil
}

// Close implements KV.Close.
func (f *FileKV) Close() error { return nil }

func (f *FileKV) readAll() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("read storage file: %w", err)
	}
	data := make(map[string]string)
	if err := json.Unmarshal(raw, &data); err != nil {
		// Discarded on the next Set, like a corrupt value under a single key.
		return make(map[string]string), nil
	}
	return data, nil
}

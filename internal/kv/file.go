package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileBackend stores the whole namespace as one JSON object on disk.
// The file is re-read on every call so several processes can share it;
// concurrent writers follow last-write-wins.
type FileBackend struct {
	filePath string
	mu       sync.Mutex
}

func NewFileBackend(filePath string) (*FileBackend, error) {
	fb := &FileBackend{filePath: filePath}

	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage dir: %w", err)
		}
	}
	if _, err := fb.load(); err != nil {
		return nil, err
	}
	return fb, nil
}

func (fb *FileBackend) load() (map[string]string, error) {
	data := make(map[string]string)

	file, err := os.Open(fb.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, fmt.Errorf("failed to open storage file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&data); err != nil {
		// an empty file holds no keys yet
		if errors.Is(err, io.EOF) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to decode storage file: %w", err)
	}
	if data == nil {
		data = make(map[string]string)
	}
	return data, nil
}

func (fb *FileBackend) save(data map[string]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(fb.filePath), ".kv-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode storage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush storage file: %w", err)
	}

	if err := os.Rename(tmp.Name(), fb.filePath); err != nil {
		return fmt.Errorf("failed to replace storage file: %w", err)
	}
	return nil
}

func (fb *FileBackend) Get(_ context.Context, key string) (string, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	data, err := fb.load()
	if err != nil {
		return "", err
	}
	value, found := data[key]
	if !found {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (fb *FileBackend) Set(_ context.Context, key, value string) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	data, err := fb.load()
	if err != nil {
		return err
	}
	data[key] = value
	return fb.save(data)
}

func (fb *FileBackend) Remove(_ context.Context, key string) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	data, err := fb.load()
	if err != nil {
		return err
	}
	if _, found := data[key]; !found {
		return nil
	}
	delete(data, key)
	return fb.save(data)
}

func (fb *FileBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	data, err := fb.load()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

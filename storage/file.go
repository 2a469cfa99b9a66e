package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ruteri/tdf-pipeline/interfaces"
)

// FileStore implements an item store in a local directory.
type FileStore struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileStore creates a file item store, creating the directory if it doesn't exist.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileStore{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// List returns up to limit item ids in lexical order.
func (b *FileStore) List(ctx context.Context, limit int) ([]string, error) {
	entries, err := os.ReadDir(b.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || isAttributesName(name) {
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Fetch reads an item. Returns ErrItemNotFound if the payload file doesn't exist.
// A missing metadata file yields empty attributes.
func (b *FileStore) Fetch(ctx context.Context, id string) (interfaces.Item, error) {
	if err := validateID(id); err != nil {
		return interfaces.Item{}, err
	}

	payload, err := os.ReadFile(filepath.Join(b.baseDir, id))
	if errors.Is(err, os.ErrNotExist) {
		return interfaces.Item{}, interfaces.ErrItemNotFound
	}
	if err != nil {
		return interfaces.Item{}, fmt.Errorf("failed to read file: %w", err)
	}

	attrs := interfaces.NewAttributes(nil)
	data, err := os.ReadFile(filepath.Join(b.baseDir, attributesName(id)))
	switch {
	case err == nil:
		attrs, err = decodeAttributes(data)
		if err != nil {
			return interfaces.Item{}, &interfaces.MetadataError{
				Item: interfaces.Item{ID: id, Attributes: interfaces.NewAttributes(nil), Payload: payload},
				Err:  err,
			}
		}
	case !errors.Is(err, os.ErrNotExist):
		return interfaces.Item{}, fmt.Errorf("failed to read attributes: %w", err)
	}

	b.log.Debug("Fetched item from file",
		slog.String("id", id),
		slog.Int("size", len(payload)))

	return interfaces.Item{ID: id, Attributes: attrs, Payload: payload}, nil
}

// Store writes the metadata file and then the payload file, replacing previous versions.
func (b *FileStore) Store(ctx context.Context, item interfaces.Item) error {
	if err := validateID(item.ID); err != nil {
		return err
	}

	attrs, err := encodeAttributes(item.Attributes)
	if err != nil {
		return err
	}
	if err := b.writeFile(attributesName(item.ID), attrs); err != nil {
		return err
	}
	if err := b.writeFile(item.ID, item.Payload); err != nil {
		return err
	}

	b.log.Debug("Stored item in file",
		slog.String("id", item.ID),
		slog.Int("size", len(item.Payload)))
	return nil
}

// writeFile writes through a hidden temporary file so readers never see partial content.
func (b *FileStore) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(b.baseDir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(b.baseDir, name)); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Delete removes the payload and metadata files of an item.
func (b *FileStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	for _, name := range []string{id, attributesName(id)} {
		if err := os.Remove(filepath.Join(b.baseDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
	}
	return nil
}

// Name returns a unique identifier for this store.
func (b *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this store.
func (b *FileStore) LocationURI() string {
	return b.locationURI
}

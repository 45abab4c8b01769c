// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
)

// BillyStore keeps documents as files under {stage}/{name} of a billy
// filesystem.
type BillyStore struct {
	FS billy.Filesystem
}

// NewDirStore returns a BillyStore rooted at dir on the local disk.
func NewDirStore(dir string) *BillyStore {
	return &BillyStore{FS: osfs.New(dir)}
}

// NewMemStore returns a BillyStore backed by memory.
func NewMemStore() *BillyStore {
	return &BillyStore{FS: memfs.New()}
}

// Put writes doc to a temporary file in the stage directory and renames it
// into place.
func (s *BillyStore) Put(ctx context.Context, stage, name string, doc any) error {
	if err := validName(stage, name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(doc)
	if err != nil {
		return err
	}

	if err := s.FS.MkdirAll(stage, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", stage, err)
	}
	tmp, err := s.FS.TempFile(stage, "."+name+".tmp-")
	if err != nil {
		return fmt.Errorf("creating temp file for %s/%s: %w", stage, name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.FS.Remove(tmpName)
		return fmt.Errorf("writing %s/%s: %w", stage, name, err)
	}
	if err := tmp.Close(); err != nil {
		s.FS.Remove(tmpName)
		return fmt.Errorf("closing %s/%s: %w", stage, name, err)
	}
	if err := s.FS.Rename(tmpName, s.FS.Join(stage, name)); err != nil {
		s.FS.Remove(tmpName)
		return fmt.Errorf("renaming %s/%s: %w", stage, name, err)
	}
	return nil
}

// Get reads and decodes {stage}/{name}.
func (s *BillyStore) Get(ctx context.Context, stage, name string, doc any) error {
	if err := validName(stage, name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := s.FS.Open(s.FS.Join(stage, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s/%s: %w", stage, name, ErrNotFound)
		}
		return fmt.Errorf("opening %s/%s: %w", stage, name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading %s/%s: %w", stage, name, err)
	}
	return decode(data, doc, stage, name)
}

// List returns the sorted regular file names in stage starting with prefix.
// Temporary files from in-flight writes are not listed.
func (s *BillyStore) List(ctx context.Context, stage, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.FS.ReadDir(stage)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", stage, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasPrefix(name, prefix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

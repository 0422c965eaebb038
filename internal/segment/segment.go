// Package segment owns the directory of numbered log files (spec §4.3):
// enumerating existing segments, creating new ones for append or random
// read, and deleting them once compaction has made them unreachable.
//
// Naming and discovery follow the teacher's pkg/seginfo (scan, parse,
// sort) adapted to spec's required on-disk shape, "<gen>.log", which the
// CLI/wire contract and crash-recovery tests both depend on byte-for-byte.
package segment

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nilotpal-labs/emberkv/pkg/kverrors"
)

const extension = ".log"

// Store owns a directory of <gen>.log files.
type Store struct {
	dir string
}

// Open ensures dir exists and returns a Store rooted at it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kverrors.NewIOError(err, "create store directory").WithPath(dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the filesystem path for generation gen.
func (s *Store) Path(gen uint64) string {
	return filepath.Join(s.dir, strconv.FormatUint(gen, 10)+extension)
}

// Generations scans the store directory for "<gen>.log" files and
// returns their generation numbers sorted ascending.
func (s *Store) Generations() ([]uint64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, kverrors.NewIOError(err, "read store directory").WithPath(s.dir)
	}

	gens := make([]uint64, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, extension) {
			continue
		}
		stem := strings.TrimSuffix(name, extension)
		gen, err := strconv.ParseUint(stem, 10, 64)
		if err != nil {
			continue
		}
		gens = append(gens, gen)
	}

	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens, nil
}

// OpenAppend opens (creating if missing) generation gen for append-only
// writes, positioned at end of file.
func (s *Store) OpenAppend(gen uint64) (*os.File, error) {
	path := s.Path(gen)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, kverrors.NewIOError(err, "open segment for append").WithPath(path)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, kverrors.NewIOError(err, "seek segment end").WithPath(path)
	}
	return f, nil
}

// OpenRead opens generation gen read-only for random access.
func (s *Store) OpenRead(gen uint64) (*os.File, error) {
	path := s.Path(gen)
	f, err := os.Open(path)
	if err != nil {
		return nil, kverrors.NewIOError(err, "open segment for read").WithPath(path)
	}
	return f, nil
}

// Delete removes generation gen's file from disk.
func (s *Store) Delete(gen uint64) error {
	path := s.Path(gen)
	if err := os.Remove(path); err != nil {
		return kverrors.NewIOError(err, "delete segment").WithPath(path)
	}
	return nil
}

// Package policyfs loads declarative policy files from a directory and
// publishes them as immutable snapshots, re-loading on file change events.
package policyfs

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/aegis-gate/aegisgate/internal/domain/policy"
)

// Store owns the current policy snapshot. Publication is a single-writer,
// reader-lock-free swap: readers grab the snapshot pointer and hold it for
// the life of one evaluation; the writer replaces the pointer atomically.
// An in-flight evaluation against an older snapshot stays valid, and its
// recorded policy version is the version of the file that decided.
type Store struct {
	dir      string
	logger   *slog.Logger
	snapshot atomic.Pointer[policy.Snapshot]

	// loadMu serializes Load calls (initial load, watcher triggers, tests).
	loadMu      sync.Mutex
	fingerprint uint64
}

// NewStore creates a store for the given policy directory. The snapshot
// starts empty; call Load before serving traffic.
func NewStore(dir string, logger *slog.Logger) *Store {
	s := &Store{dir: dir, logger: logger}
	s.snapshot.Store(policy.EmptySnapshot())
	return s
}

// Snapshot returns the current snapshot. The returned value is immutable;
// callers should hold it for at most one evaluation so superseded
// snapshots can be reclaimed.
func (s *Store) Snapshot() *policy.Snapshot {
	return s.snapshot.Load()
}

// Stats reports the size of the current snapshot.
func (s *Store) Stats() policy.Stats {
	return s.Snapshot().Stats()
}

// Dir returns the watched policy directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load enumerates *.yaml and *.yml in the directory (non-recursive),
// parses and validates each, and atomically publishes a snapshot of the
// successes. Files that fail to parse or validate are logged and carry no
// entry in the new snapshot. When every file fails and the directory was
// non-empty, the previous snapshot is retained: availability over
// correctness during a bad edit.
func (s *Store) Load() error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	paths, err := listPolicyFiles(s.dir)
	if err != nil {
		return fmt.Errorf("list policy dir: %w", err)
	}

	if len(paths) == 0 {
		s.logger.Warn("no policy files found", "dir", s.dir)
		s.publish(policy.EmptySnapshot(), 0)
		return nil
	}

	files := make(map[string]*policy.File, len(paths))
	digest := xxhash.New()
	var failed int

	for _, path := range paths {
		f, raw, err := loadPolicyFile(path)
		if err != nil {
			failed++
			s.logger.Error("failed to load policy file",
				"file", filepath.Base(path),
				"error", err,
			)
			continue
		}
		files[path] = f
		_, _ = digest.WriteString(path)
		_, _ = digest.Write(raw)
		s.logger.Info("loaded policy",
			"file", filepath.Base(path),
			"version", f.Version,
			"agents", len(f.Agents),
		)
	}

	if len(files) == 0 {
		s.logger.Error("all policy files failed to load, retaining previous snapshot",
			"dir", s.dir,
			"failed", failed,
		)
		return fmt.Errorf("all %d policy files failed to load", failed)
	}

	fp := digest.Sum64()
	if fp == s.fingerprint && s.Snapshot().Len() == len(files) {
		s.logger.Debug("policy reload produced identical content, snapshot unchanged")
		return nil
	}

	s.publish(policy.NewSnapshot(files), fp)
	s.logger.Info("policies reloaded",
		"files", len(files),
		"failed", failed,
	)
	return nil
}

func (s *Store) publish(snap *policy.Snapshot, fingerprint uint64) {
	s.snapshot.Store(snap)
	s.fingerprint = fingerprint
}

// listPolicyFiles returns the matching paths in ascending order so
// multi-file resolution order is stable across loads.
func listPolicyFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !matchesExtension(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func matchesExtension(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

// loadPolicyFile parses and validates one policy document. The raw bytes
// are returned for snapshot fingerprinting.
func loadPolicyFile(path string) (*policy.File, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var f policy.File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("parse: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validation failed: %w", err)
	}
	return &f, raw, nil
}

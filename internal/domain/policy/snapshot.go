package policy

import "sort"

// Snapshot is an immutable set of loaded policy files keyed by path.
// The store publishes snapshots by whole-object substitution; a snapshot is
// never mutated after construction, so readers may hold one across an
// evaluation without locking.
type Snapshot struct {
	files map[string]*File
	paths []string
}

// NewSnapshot builds a snapshot from the given files. The path order is
// fixed at construction (ascending) so multi-file resolution is
// deterministic.
func NewSnapshot(files map[string]*File) *Snapshot {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return &Snapshot{files: files, paths: paths}
}

// EmptySnapshot returns a snapshot with no policy files. Every evaluation
// against it denies with NoPoliciesLoaded semantics.
func EmptySnapshot() *Snapshot {
	return NewSnapshot(nil)
}

// Evaluate asks each file in path order and returns the first decision that
// allows or requires approval. When every file denies outright, the decision
// from the last consulted file is returned so callers see a concrete reason.
// This enables overlay-style composition: any file may grant access.
func (s *Snapshot) Evaluate(ctx EvaluationContext) Decision {
	if len(s.paths) == 0 {
		return Decision{
			Allow:   false,
			Reason:  "No policies loaded",
			Version: 0,
		}
	}

	var last Decision
	for _, path := range s.paths {
		last = s.files[path].Evaluate(ctx)
		if last.Allow || last.RequireApproval {
			return last
		}
	}
	return last
}

// Stats reports the size of the snapshot for health endpoints.
func (s *Snapshot) Stats() Stats {
	total := 0
	for _, f := range s.files {
		total += len(f.Agents)
	}
	return Stats{
		PolicyFiles: len(s.files),
		TotalAgents: total,
	}
}

// Len returns the number of policy files in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.paths)
}

// Paths returns the policy file paths in evaluation order.
func (s *Snapshot) Paths() []string {
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// File returns the parsed policy file at the given path, or nil.
func (s *Snapshot) File(path string) *File {
	return s.files[path]
}

// Agents returns every agent across all files, ordered by file path then
// declaration order. Used by the read-only admin API.
func (s *Snapshot) Agents() []Agent {
	var out []Agent
	for _, path := range s.paths {
		out = append(out, s.files[path].Agents...)
	}
	return out
}

package results

import (
	"fmt"
	"sync"

	"studio/internal/domain"
)

// Pool is a read-only view of another view's artifacts offered as inputs.
// SelectedIndex is the last index picked from Source and is only a UI hint.
type Pool struct {
	Target        string   `json:"target"`
	Source        ViewKey  `json:"source"`
	URLs          []string `json:"urls"`
	SelectedIndex int      `json:"selectedIndex"`
}

// Selector resolves pools from a Reader according to per-target policies.
type Selector struct {
	reader   Reader
	policies map[string]Policy

	mu       sync.Mutex
	selected map[ViewKey]int
}

// NewSelector returns a selector over reader. Targets without a policy have
// no pool.
func NewSelector(reader Reader, policies []Policy) *Selector {
	s := &Selector{
		reader:   reader,
		policies: make(map[string]Policy, len(policies)),
		selected: make(map[ViewKey]int),
	}
	for _, p := range policies {
		s.policies[p.Target] = p
	}
	return s
}

// Policy returns the policy for target.
func (s *Selector) Policy(target string) (Policy, bool) {
	p, ok := s.policies[target]
	return p, ok
}

// Pool returns the first non-empty source in target's preference order, or
// nil when every source is empty.
func (s *Selector) Pool(target string) *Pool {
	policy, ok := s.policies[target]
	if !ok {
		return nil
	}
	for _, src := range policy.Sources {
		rs := s.reader.Get(src)
		if rs.Empty() {
			continue
		}
		return &Pool{
			Target:        target,
			Source:        src,
			URLs:          rs.URLs,
			SelectedIndex: s.selectedIndex(src),
		}
	}
	return nil
}

// Select returns the artifact at index of target's current pool as a new
// input. The pool's source set is not modified.
func (s *Selector) Select(target string, index int) (string, ViewKey, error) {
	pool := s.Pool(target)
	if pool == nil {
		return "", ViewKey{}, fmt.Errorf("results: no source pool for %q: %w", target, domain.ErrNotFound)
	}
	if index < 0 || index >= len(pool.URLs) {
		return "", pool.Source, fmt.Errorf("results: select %s[%d] of %d: %w", pool.Source, index, len(pool.URLs), domain.ErrOutOfRange)
	}
	s.mu.Lock()
	s.selected[pool.Source] = index
	s.mu.Unlock()
	return pool.URLs[index], pool.Source, nil
}

func (s *Selector) selectedIndex(src ViewKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected[src]
}

// Package results keeps the generated artifact sets of every view in memory,
// together with the one-level undo backups taken before cleanups, and exposes
// one view's artifacts as selectable inputs for another.
//
// Nothing here is persisted. Generated images are large and the sets only
// matter for the lifetime of the process.
package results

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"studio/internal/domain"
)

// ViewKey identifies a generation context: a primary view and a sub-view.
type ViewKey struct {
	View    string `json:"view" toml:"view"`
	SubView string `json:"sub_view" toml:"sub_view"`
}

func (k ViewKey) String() string {
	return k.View + "/" + k.SubView
}

// ParseViewKey parses "view/sub".
func ParseViewKey(s string) (ViewKey, error) {
	view, sub, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || view == "" || sub == "" {
		return ViewKey{}, fmt.Errorf("results: invalid view key %q", s)
	}
	return ViewKey{View: view, SubView: sub}, nil
}

// ResultSet is the ordered list of artifacts produced for one view. A nil
// URLs slice means nothing has been generated.
type ResultSet struct {
	URLs        []string `json:"urls"`
	WasCreative bool     `json:"wasCreative"`
}

// Len returns the number of artifacts.
func (r ResultSet) Len() int { return len(r.URLs) }

// Empty reports whether the set holds no artifacts.
func (r ResultSet) Empty() bool { return len(r.URLs) == 0 }

func (r ResultSet) clone() ResultSet {
	if r.URLs == nil {
		return ResultSet{WasCreative: r.WasCreative}
	}
	urls := make([]string, len(r.URLs))
	copy(urls, r.URLs)
	return ResultSet{URLs: urls, WasCreative: r.WasCreative}
}

// Reader is the read side of the store.
type Reader interface {
	Get(key ViewKey) ResultSet
}

// Store maps view keys to result sets and keeps, per key, the artifact that
// occupied an index before the first cleanup applied to it.
type Store struct {
	mu      sync.RWMutex
	sets    map[ViewKey]ResultSet
	shadows map[ViewKey]map[int]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		sets:    make(map[ViewKey]ResultSet),
		shadows: make(map[ViewKey]map[int]string),
	}
}

// Get returns a copy of the set stored under key, or the empty set.
func (s *Store) Get(key ViewKey) ResultSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sets[key].clone()
}

// Set replaces the set under key. A nil set stores the empty set. Replacing a
// set also drops every undo backup for key, since the indices no longer refer
// to the same artifacts.
func (s *Store) Set(key ViewKey, rs *ResultSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs == nil {
		s.sets[key] = ResultSet{}
	} else {
		s.sets[key] = rs.clone()
	}
	delete(s.shadows, key)
}

// UpdateAt replaces the artifact at index.
func (s *Store) UpdateAt(key ViewKey, index int, artifact string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.sets[key]
	if index < 0 || index >= len(rs.URLs) {
		return fmt.Errorf("results: update %s[%d] of %d: %w", key, index, len(rs.URLs), domain.ErrOutOfRange)
	}
	rs.URLs[index] = artifact
	s.sets[key] = rs
	return nil
}

// ReplaceIf writes artifact at index only while the slot still holds old. A
// slot that changed in the meantime yields domain.ErrStaleArtifact.
func (s *Store) ReplaceIf(key ViewKey, index int, old, artifact string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.sets[key]
	if index < 0 || index >= len(rs.URLs) {
		return fmt.Errorf("results: replace %s[%d] of %d: %w", key, index, len(rs.URLs), domain.ErrStaleArtifact)
	}
	if rs.URLs[index] != old {
		return fmt.Errorf("results: replace %s[%d]: %w", key, index, domain.ErrStaleArtifact)
	}
	rs.URLs[index] = artifact
	s.sets[key] = rs
	return nil
}

// DeleteAt removes the artifact at index, shifting later artifacts down, and
// drops every undo backup for key.
func (s *Store) DeleteAt(key ViewKey, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.sets[key]
	if index < 0 || index >= len(rs.URLs) {
		return fmt.Errorf("results: delete %s[%d] of %d: %w", key, index, len(rs.URLs), domain.ErrOutOfRange)
	}
	urls := make([]string, 0, len(rs.URLs)-1)
	urls = append(urls, rs.URLs[:index]...)
	urls = append(urls, rs.URLs[index+1:]...)
	s.sets[key] = ResultSet{URLs: urls, WasCreative: rs.WasCreative}
	delete(s.shadows, key)
	return nil
}

// MarkShadow records artifact as the pre-cleanup value of index unless a
// backup already exists, so chained cleanups still restore the original. It
// reports whether a new backup was recorded.
func (s *Store) MarkShadow(key ViewKey, index int, artifact string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	shadows := s.shadows[key]
	if _, ok := shadows[index]; ok {
		return false
	}
	if shadows == nil {
		shadows = make(map[int]string)
		s.shadows[key] = shadows
	}
	shadows[index] = artifact
	return true
}

// Shadow returns the backup for index, if any.
func (s *Store) Shadow(key ViewKey, index int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.shadows[key][index]
	return v, ok
}

// Shadows returns a copy of the backups for key.
func (s *Store) Shadows(key ViewKey) map[int]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]string, len(s.shadows[key]))
	for i, v := range s.shadows[key] {
		out[i] = v
	}
	return out
}

// ShadowIndices returns the indices that can be restored, ascending.
func (s *Store) ShadowIndices(key ViewKey) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, 0, len(s.shadows[key]))
	for i := range s.shadows[key] {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// DropShadow forgets the backup for index.
func (s *Store) DropShadow(key ViewKey, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shadows := s.shadows[key]; shadows != nil {
		delete(shadows, index)
		if len(shadows) == 0 {
			delete(s.shadows, key)
		}
	}
}

// ClearShadows forgets every backup for key.
func (s *Store) ClearShadows(key ViewKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shadows, key)
}

// Restore writes the backup for index back into the set and forgets it. It
// returns false when there was nothing to restore.
func (s *Store) Restore(key ViewKey, index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	original, ok := s.shadows[key][index]
	if !ok {
		return false, nil
	}
	rs := s.sets[key]
	if index < 0 || index >= len(rs.URLs) {
		return false, fmt.Errorf("results: restore %s[%d] of %d: %w", key, index, len(rs.URLs), domain.ErrOutOfRange)
	}
	rs.URLs[index] = original
	s.sets[key] = rs
	delete(s.shadows[key], index)
	if len(s.shadows[key]) == 0 {
		delete(s.shadows, key)
	}
	return true, nil
}

// Keys lists the keys that have been written, sorted.
func (s *Store) Keys() []ViewKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]ViewKey, 0, len(s.sets))
	for k := range s.sets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].View != keys[j].View {
			return keys[i].View < keys[j].View
		}
		return keys[i].SubView < keys[j].SubView
	})
	return keys
}

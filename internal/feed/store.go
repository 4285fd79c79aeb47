package feed

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// SortMode selects how Sort rearranges the view.
type SortMode string

const (
	SortNewest  SortMode = "newest"
	SortPopular SortMode = "popular"
	SortRecent  SortMode = "recent"
)

// RecentWindow is the age cutoff applied by SortRecent.
const RecentWindow = 24 * time.Hour

// SortModes lists the modes in selector order.
var SortModes = []SortMode{SortNewest, SortPopular, SortRecent}

// ParseSortMode maps a selector value to a SortMode.
func ParseSortMode(s string) (SortMode, bool) {
	switch m := SortMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SortNewest, SortPopular, SortRecent:
		return m, true
	}
	return "", false
}

// Store holds the full post collection last received from the backend and
// the current filtered/sorted view over it.
//
// # Thread Safety
//
// Store is safe for concurrent use. Load, Filter and Sort take the write lock
// for their whole duration, so a reader never observes a view computed
// against a different all than the one it sits next to.
type Store struct {
	mu   sync.RWMutex
	all  []Post
	view []Post
	now  func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// WithClock replaces the clock used by SortRecent. Returns s for chaining.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Load replaces the collection and resets the view to the same sequence.
// Each call fully supersedes the previous state; nothing is merged.
func (s *Store) Load(posts []Post) {
	all := slices.Clone(posts)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = all
	s.view = slices.Clone(all)
}

// Filter recomputes the view from all. A blank term restores the full
// collection; otherwise a post is kept when its content or any keyword
// contains term, case-insensitively. Successive calls are not cumulative.
func (s *Store) Filter(term string) []Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(term) == "" {
		s.view = slices.Clone(s.all)
		return slices.Clone(s.view)
	}

	needle := strings.ToLower(term)
	view := make([]Post, 0, len(s.all))
	for _, p := range s.all {
		if Matches(p, needle) {
			view = append(view, p)
		}
	}
	s.view = view
	return slices.Clone(s.view)
}

// Matches reports whether p contains the lower-cased needle in its content
// or in one of its keywords.
func Matches(p Post, needle string) bool {
	if strings.Contains(strings.ToLower(p.Content), needle) {
		return true
	}
	for _, kw := range p.Keywords {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	return false
}

// Sort rearranges or narrows the current view in place. Ties keep their
// prior relative order. SortRecent drops posts not newer than now-24h and
// leaves ordering alone. Unknown modes leave the view unchanged.
func (s *Store) Sort(mode SortMode) []Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case SortNewest:
		slices.SortStableFunc(s.view, func(a, b Post) int {
			return b.Date.Compare(a.Date.Time)
		})
	case SortPopular:
		slices.SortStableFunc(s.view, func(a, b Post) int {
			return b.Score() - a.Score()
		})
	case SortRecent:
		cutoff := s.now().Add(-RecentWindow)
		s.view = slices.DeleteFunc(s.view, func(p Post) bool {
			return !p.Date.After(cutoff)
		})
	}
	return slices.Clone(s.view)
}

// View returns a copy of the current view.
func (s *Store) View() []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.view)
}

// All returns a copy of the full collection.
func (s *Store) All() []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.all)
}

// Len returns the number of posts in the view.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.view)
}

// Lookup finds a post by id in the full collection, so posts filtered out of
// the view stay reachable.
func (s *Store) Lookup(id string) (Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.all {
		if p.ID == id {
			return p, true
		}
	}
	return Post{}, false
}

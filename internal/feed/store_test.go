package feed

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) Time {
	return Time{testNow.Add(-d)}
}

func samplePosts() []Post {
	return []Post{
		{ID: "a", Content: "Claim your BNB airdrop now", Date: at(2 * time.Hour), Likes: 10, Retweets: 5, Replies: 100, Keywords: []string{"airdrop", "claim"}},
		{ID: "b", Content: "New listing: XYZ", Date: at(30 * time.Minute), Likes: 3, Retweets: 2, Keywords: []string{"listing"}},
		{ID: "c", Content: "Staking rewards are live", Date: at(48 * time.Hour), Likes: 50, Retweets: 0, Keywords: []string{"Staking", "reward"}},
		{ID: "d", Content: "Trading competition", Date: at(5 * time.Hour), Likes: 1, Retweets: 14, Keywords: []string{"competition", "trading"}},
	}
}

func ids(posts []Post) string {
	parts := make([]string, len(posts))
	for i, p := range posts {
		parts[i] = p.ID
	}
	return strings.Join(parts, ",")
}

func newTestStore(posts []Post) *Store {
	s := NewStore().WithClock(func() time.Time { return testNow })
	s.Load(posts)
	return s
}

func TestLoadPreservesOrder(t *testing.T) {
	s := newTestStore(samplePosts())

	if got := ids(s.View()); got != "a,b,c,d" {
		t.Errorf("View() after Load = %s, want a,b,c,d", got)
	}
	if got := ids(s.Filter("")); got != "a,b,c,d" {
		t.Errorf("Filter(\"\") after Load = %s, want a,b,c,d", got)
	}
}

func TestLoadSupersedes(t *testing.T) {
	s := newTestStore(samplePosts())
	s.Filter("airdrop")

	s.Load([]Post{{ID: "z", Content: "fresh"}})

	if got := ids(s.View()); got != "z" {
		t.Errorf("View() = %s, want z", got)
	}
	if _, ok := s.Lookup("a"); ok {
		t.Error("post absent from the new snapshot should no longer be found")
	}
}

func TestLoadCopiesInput(t *testing.T) {
	posts := samplePosts()
	s := newTestStore(posts)

	posts[0].ID = "mutated"

	if got := ids(s.All()); got != "a,b,c,d" {
		t.Errorf("All() = %s, store should not alias caller slice", got)
	}
}

func TestFilterBlankResets(t *testing.T) {
	s := newTestStore(samplePosts())

	for _, term := range []string{"", "   ", "\t\n"} {
		s.Filter("listing")
		s.Sort(SortPopular)
		if got := ids(s.Filter(term)); got != "a,b,c,d" {
			t.Errorf("Filter(%q) = %s, want a,b,c,d", term, got)
		}
	}
}

func TestFilterMatches(t *testing.T) {
	tests := []struct {
		term string
		want string
	}{
		{"airdrop", "a"},
		{"AIRDROP", "a"},
		{"staking", "c"},   // content and keyword, mixed case
		{"reward", "c"},    // keyword only
		{"comp", "d"},      // substring of keyword
		{"n", "a,b,c,d"},   // every post
		{"nothing", ""},    // no match
		{"listing: x", "b"}, // punctuation kept verbatim
	}

	s := newTestStore(samplePosts())
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			if got := ids(s.Filter(tt.term)); got != tt.want {
				t.Errorf("Filter(%q) = %s, want %s", tt.term, got, tt.want)
			}
		})
	}
}

func TestFilterIsExactPredicate(t *testing.T) {
	posts := samplePosts()
	s := newTestStore(posts)

	for _, term := range []string{"a", "re", "ing", "BNB", "x", "rew"} {
		view := s.Filter(term)
		kept := make(map[string]bool)
		for _, p := range view {
			kept[p.ID] = true
			if !Matches(p, strings.ToLower(term)) {
				t.Errorf("Filter(%q) kept %s which does not match", term, p.ID)
			}
		}
		for _, p := range posts {
			if Matches(p, strings.ToLower(term)) && !kept[p.ID] {
				t.Errorf("Filter(%q) dropped %s which matches", term, p.ID)
			}
		}
	}
}

func TestFilterNotCumulative(t *testing.T) {
	s := newTestStore(samplePosts())

	s.Filter("airdrop")
	if got := ids(s.Filter("listing")); got != "b" {
		t.Errorf("second Filter = %s, want b (evaluated against all)", got)
	}
}

func TestSortNewest(t *testing.T) {
	s := newTestStore(samplePosts())

	view := s.Sort(SortNewest)
	if got := ids(view); got != "b,a,d,c" {
		t.Errorf("Sort(newest) = %s, want b,a,d,c", got)
	}
	for i := 1; i < len(view); i++ {
		if view[i].Date.After(view[i-1].Date.Time) {
			t.Errorf("view not non-increasing in date at %d", i)
		}
	}
}

func TestSortPopularIgnoresReplies(t *testing.T) {
	s := newTestStore(samplePosts())

	// scores: a=15 (100 replies ignored), b=5, c=50, d=15
	if got := ids(s.Sort(SortPopular)); got != "c,a,d,b" {
		t.Errorf("Sort(popular) = %s, want c,a,d,b", got)
	}
}

func TestSortStable(t *testing.T) {
	posts := []Post{
		{ID: "1", Likes: 5, Date: at(time.Hour)},
		{ID: "2", Likes: 9, Date: at(time.Hour)},
		{ID: "3", Retweets: 5, Date: at(time.Hour)},
		{ID: "4", Likes: 2, Retweets: 3, Date: at(time.Hour)},
	}
	s := newTestStore(posts)

	if got := ids(s.Sort(SortPopular)); got != "2,1,3,4" {
		t.Errorf("Sort(popular) = %s, want 2,1,3,4", got)
	}
	if got := ids(s.Sort(SortNewest)); got != "2,1,3,4" {
		t.Errorf("Sort(newest) with equal dates = %s, want 2,1,3,4", got)
	}
}

func TestSortRecent(t *testing.T) {
	s := newTestStore(samplePosts())

	first := ids(s.Sort(SortRecent))
	if first != "a,b,d" {
		t.Errorf("Sort(recent) = %s, want a,b,d", first)
	}
	if second := ids(s.Sort(SortRecent)); second != first {
		t.Errorf("Sort(recent) twice = %s, want %s", second, first)
	}
}

func TestSortRecentBoundaryIsExclusive(t *testing.T) {
	s := newTestStore([]Post{
		{ID: "edge", Date: at(RecentWindow)},
		{ID: "inside", Date: at(RecentWindow - time.Second)},
	})

	if got := ids(s.Sort(SortRecent)); got != "inside" {
		t.Errorf("Sort(recent) = %s, want inside", got)
	}
}

func TestSortRecentAfterFilterNarrowsFilteredSet(t *testing.T) {
	s := newTestStore(samplePosts())

	s.Filter("staking")
	if got := ids(s.Sort(SortRecent)); got != "" {
		t.Errorf("Sort(recent) after filter = %s, want empty", got)
	}
	if got := ids(s.Filter("")); got != "a,b,c,d" {
		t.Errorf("Filter(\"\") = %s, want a,b,c,d", got)
	}
}

func TestSortUnknownModeIsNoop(t *testing.T) {
	s := newTestStore(samplePosts())
	if got := ids(s.Sort("sideways")); got != "a,b,c,d" {
		t.Errorf("Sort(unknown) = %s, want a,b,c,d", got)
	}
}

func TestRecentCountEndToEnd(t *testing.T) {
	s := newTestStore([]Post{
		{ID: "t0", Date: at(0)},
		{ID: "t1", Date: at(time.Hour)},
		{ID: "t25", Date: at(25 * time.Hour)},
	})

	s.Sort(SortRecent)
	if s.Len() != 2 {
		t.Errorf("Len() after Sort(recent) = %d, want 2", s.Len())
	}
}

func TestLookupSearchesAll(t *testing.T) {
	s := newTestStore(samplePosts())
	s.Filter("listing")

	p, ok := s.Lookup("c")
	if !ok || p.ID != "c" {
		t.Fatalf("Lookup(c) = %v, %v; want post c outside the view", p.ID, ok)
	}
	if _, ok := s.Lookup("missing"); ok {
		t.Error("Lookup(missing) should report false")
	}
}

func TestParseSortMode(t *testing.T) {
	for _, in := range []string{"newest", "Popular", " recent "} {
		if _, ok := ParseSortMode(in); !ok {
			t.Errorf("ParseSortMode(%q) rejected", in)
		}
	}
	if _, ok := ParseSortMode("oldest"); ok {
		t.Error("ParseSortMode(oldest) accepted")
	}
}

func TestConcurrentLoadsKeepViewConsistent(t *testing.T) {
	s := NewStore()

	snapshot := func(tag string, n int) []Post {
		posts := make([]Post, n)
		for i := range posts {
			posts[i] = Post{ID: fmt.Sprintf("%s-%d", tag, i), Content: tag, Date: Time{time.Now()}}
		}
		return posts
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); s.Load(snapshot("x", 5)) }()
		go func() { defer wg.Done(); s.Load(snapshot("y", 7)) }()
		go func() { defer wg.Done(); s.Filter(""); s.Sort(SortNewest) }()
	}
	wg.Wait()

	all := s.All()
	view := s.View()
	if len(all) != len(view) {
		t.Fatalf("len(view)=%d, len(all)=%d after unfiltered ops", len(view), len(all))
	}
	tag := all[0].Content
	for _, p := range view {
		if p.Content != tag {
			t.Fatalf("view mixes snapshots: %s vs %s", p.Content, tag)
		}
	}
}

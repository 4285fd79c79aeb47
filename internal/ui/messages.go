// Package ui provides the Bubble Tea TUI for dropwatch.
package ui

import (
	"time"

	"github.com/abelbrown/dropwatch/internal/feed"
)

// ViewChanged carries a new view from the post store. Reset is set after a
// snapshot load, which discards the active search and sort.
type ViewChanged struct {
	Posts []feed.Post
	Reset bool
}

// StatsLoaded carries a new stats snapshot.
type StatsLoaded struct {
	Stats feed.Stats
}

// ConnectionChanged is sent on every push connect, disconnect or watchdog
// transition.
type ConnectionChanged struct {
	Online bool
}

// LastSync is sent when a push update arrives.
type LastSync struct {
	At time.Time
}

// LoadStarted is sent when a snapshot load begins.
type LoadStarted struct{}

// LoadFinished is sent when a snapshot load ends, whatever the outcome.
type LoadFinished struct{}

// NoticeKind selects the toast style and lifetime.
type NoticeKind int

const (
	NoticeSuccess NoticeKind = iota
	NoticeError
)

// Notice shows a transient toast.
type Notice struct {
	Kind NoticeKind
	Text string
}

// noticeExpired dismisses the toast with the given id.
type noticeExpired struct {
	id int
}

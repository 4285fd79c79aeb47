// Package coord keeps the post store in sync with the backend for dropwatch.
package coord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/abelbrown/dropwatch/internal/api"
	"github.com/abelbrown/dropwatch/internal/feed"
	"github.com/abelbrown/dropwatch/internal/logging"
	"github.com/abelbrown/dropwatch/internal/metrics"
	"github.com/abelbrown/dropwatch/internal/monitor"
	"github.com/abelbrown/dropwatch/internal/push"
	"github.com/abelbrown/dropwatch/internal/ui"
)

// loadTimeout bounds one stats+posts load.
const loadTimeout = 30 * time.Second

// LoadFailedNotice is shown when a load fails at the transport level.
const LoadFailedNotice = "Load failed. Press r to retry."

// UpdateNotice formats the toast for a push update from its payload counts.
func UpdateNotice(total, airdrop int) string {
	return fmt.Sprintf("Data updated! got %s posts, %s airdrop-related",
		humanize.Comma(int64(total)), humanize.Comma(int64(airdrop)))
}

// sender delivers messages to the UI. *tea.Program satisfies it.
type sender interface {
	Send(msg tea.Msg)
}

// snapshotSource fetches the two snapshots. *api.Client satisfies it.
type snapshotSource interface {
	Stats(ctx context.Context) (feed.Stats, error)
	Posts(ctx context.Context) ([]feed.Post, error)
}

// pushSource delivers server events. *push.Client satisfies it.
type pushSource interface {
	On(event string, h push.Handler)
	OnConnect(fn func())
	OnDisconnect(fn func())
	Run(ctx context.Context) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPush sets the push transport. Without one only manual reloads happen.
func WithPush(p pushSource) Option {
	return func(c *Coordinator) { c.push = p }
}

// WithMonitor sets the connection monitor fed by push lifecycle events.
func WithMonitor(m *monitor.Monitor) Option {
	return func(c *Coordinator) { c.monitor = m }
}

// WithMetrics records loads and push events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithSender attaches a message sink before Start, for headless use.
func WithSender(s sender) Option {
	return func(c *Coordinator) { c.program = s }
}

// WithClock replaces the clock used when a push carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator owns the post store and drives it from snapshot loads and
// push events. Uses context cancellation as the ONLY stop mechanism.
//
// Loads may overlap. Each one takes a sequence number when it starts and
// commits only if no later-started load has committed already, so the
// store always reflects exactly one load.
type Coordinator struct {
	store   *feed.Store
	api     snapshotSource
	push    pushSource       // optional
	monitor *monitor.Monitor // optional
	metrics *metrics.Metrics // optional, nil-safe
	now     func() time.Time
	log     *log.Logger

	mu      sync.Mutex // guards ctx, program and waiting
	ctx     context.Context
	program sender
	waiting bool // Wait is draining wg; no new loads

	seq      atomic.Uint64
	inflight atomic.Int32

	commitMu  sync.Mutex
	committed uint64 // seq of the last committed load

	wg sync.WaitGroup
}

// New creates a Coordinator over store s fetching from src.
func New(s *feed.Store, src snapshotSource, opts ...Option) *Coordinator {
	c := &Coordinator{
		store: s,
		api:   src,
		now:   time.Now,
		log:   logging.WithPrefix("coord"),
		ctx:   context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start wires push events and the monitor, then starts the watchdog, the
// push transport and the first load. Call with a cancellable context.
func (c *Coordinator) Start(ctx context.Context, program sender) {
	c.mu.Lock()
	c.ctx = ctx
	c.program = program
	c.mu.Unlock()

	if c.monitor != nil {
		c.monitor.OnChange(func(s monitor.State) {
			c.connectionChanged(s == monitor.Online)
		})
		c.monitor.Start(ctx)
	}

	if c.push != nil {
		c.push.OnConnect(func() {
			c.metrics.PushEvent(push.EventConnect)
			if c.monitor != nil {
				c.monitor.Connected()
			} else {
				c.connectionChanged(true)
			}
		})
		c.push.OnDisconnect(func() {
			c.metrics.PushEvent(push.EventDisconnect)
			if c.monitor != nil {
				c.monitor.Disconnected()
			} else {
				c.connectionChanged(false)
			}
		})
		c.push.On(push.EventConnected, c.handleConnected)
		c.push.On(push.EventTweetsUpdate, c.handleTweetsUpdate)

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.push.Run(ctx); err != nil {
				c.log.Error("push transport stopped", "err", err)
			}
		}()
	}

	c.goLoad(ctx)
}

// Wait blocks until all background goroutines exit.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	c.waiting = true
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	c.waiting = false
	c.mu.Unlock()

	if c.monitor != nil {
		c.monitor.Wait()
	}
}

// InitialLoad fetches the stats snapshot, then the posts snapshot, and
// commits both. A transport failure in either call fails the whole load:
// nothing is committed and one error notice is shown. An endpoint that
// answers success:false is skipped without a notice. The returned error is
// for callers that want it; the user has already been told.
func (c *Coordinator) InitialLoad(ctx context.Context) error {
	seq := c.seq.Add(1)
	start := time.Now()

	c.metrics.LoadStarted()
	if c.inflight.Add(1) == 1 {
		c.send(ui.LoadStarted{})
	}
	defer func() {
		if c.inflight.Add(-1) == 0 {
			c.send(ui.LoadFinished{})
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	stats, statsErr := c.api.Stats(ctx)
	if statsErr != nil && !errors.Is(statsErr, api.ErrUnsuccessful) {
		return c.fail(seq, start, statsErr)
	}
	posts, postsErr := c.api.Posts(ctx)
	if postsErr != nil && !errors.Is(postsErr, api.ErrUnsuccessful) {
		return c.fail(seq, start, postsErr)
	}

	if statsErr != nil {
		c.log.Debug("stats skipped", "err", statsErr)
	}
	if postsErr != nil {
		c.log.Debug("posts skipped", "err", postsErr)
	}

	if !c.commit(seq, stats, statsErr == nil, posts, postsErr == nil) {
		c.metrics.LoadFinished(metrics.OutcomeStale, time.Since(start).Seconds())
		c.log.Info("dropped stale load", "seq", seq)
		return nil
	}
	c.metrics.LoadFinished(metrics.OutcomeCommitted, time.Since(start).Seconds())
	c.log.Debug("load committed", "seq", seq, "posts", len(posts), "posts_ok", postsErr == nil, "stats_ok", statsErr == nil)
	return nil
}

// commit applies a load's results unless a later load has committed.
// Messages are sent under the commit lock so the UI sees commits in order.
func (c *Coordinator) commit(seq uint64, stats feed.Stats, hasStats bool, posts []feed.Post, hasPosts bool) bool {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	if seq <= c.committed {
		return false
	}
	c.committed = seq

	if hasStats {
		c.send(ui.StatsLoaded{Stats: stats})
	}
	if hasPosts {
		c.store.Load(posts)
		view := c.store.View()
		c.metrics.SetViewSize(len(view))
		c.send(ui.ViewChanged{Posts: view, Reset: true})
	}
	return true
}

func (c *Coordinator) fail(seq uint64, start time.Time, err error) error {
	c.commitMu.Lock()
	stale := seq <= c.committed
	c.commitMu.Unlock()

	if stale {
		c.metrics.LoadFinished(metrics.OutcomeStale, time.Since(start).Seconds())
		c.log.Info("stale load failed", "seq", seq, "err", err)
		return err
	}

	c.metrics.LoadFinished(metrics.OutcomeFailed, time.Since(start).Seconds())
	c.log.Error("load failed", "seq", seq, "err", err)
	c.send(ui.Notice{Kind: ui.NoticeError, Text: LoadFailedNotice})
	return err
}

// HandlePush reacts to a tweets_update event: it updates the last-sync
// time, starts a full reload in the background and shows a notice with the
// payload's own counts.
func (c *Coordinator) HandlePush(ctx context.Context, u feed.TweetsUpdate) {
	at := u.Timestamp.Time
	if at.IsZero() {
		at = c.now()
	}
	c.send(ui.LastSync{At: at})
	c.goLoad(ctx)
	c.send(ui.Notice{Kind: ui.NoticeSuccess, Text: UpdateNotice(u.TotalTweets, len(u.AirdropTweets))})
}

func (c *Coordinator) handleTweetsUpdate(data json.RawMessage) {
	c.metrics.PushEvent(push.EventTweetsUpdate)

	var u feed.TweetsUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		// The backend changed something; reload anyway.
		c.log.Warn("malformed tweets_update payload", "err", err)
		c.goLoad(c.context())
		return
	}
	c.HandlePush(c.context(), u)
}

func (c *Coordinator) handleConnected(data json.RawMessage) {
	c.metrics.PushEvent(push.EventConnected)

	var hello struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &hello)
	c.log.Info("push channel says hello", "message", hello.Message)
}

func (c *Coordinator) connectionChanged(online bool) {
	c.metrics.SetConnected(online)
	c.send(ui.ConnectionChanged{Online: online})
}

// Filter recomputes the view for term. It never touches the network.
func (c *Coordinator) Filter(term string) []feed.Post {
	view := c.store.Filter(term)
	c.metrics.SetViewSize(len(view))
	return view
}

// Sort reorders or narrows the current view.
func (c *Coordinator) Sort(mode feed.SortMode) []feed.Post {
	view := c.store.Sort(mode)
	c.metrics.SetViewSize(len(view))
	return view
}

// Lookup finds a post in the full collection.
func (c *Coordinator) Lookup(id string) (feed.Post, bool) {
	return c.store.Lookup(id)
}

// Reload returns a command that starts a manual load.
func (c *Coordinator) Reload() tea.Cmd {
	return func() tea.Msg {
		c.goLoad(c.context())
		return nil
	}
}

// goLoad runs InitialLoad in a tracked goroutine. Nothing starts once ctx
// is done or Wait has begun.
func (c *Coordinator) goLoad(ctx context.Context) {
	c.mu.Lock()
	if c.waiting || ctx.Err() != nil {
		c.mu.Unlock()
		c.log.Debug("load skipped, shutting down")
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		_ = c.InitialLoad(ctx)
	}()
}

func (c *Coordinator) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// send delivers msg to the program, if one is attached.
func (c *Coordinator) send(msg tea.Msg) {
	c.mu.Lock()
	p := c.program
	c.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

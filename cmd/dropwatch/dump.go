package main

import (
	"context"
	"flag"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/abelbrown/dropwatch/internal/coord"
	"github.com/abelbrown/dropwatch/internal/feed"
	"github.com/abelbrown/dropwatch/internal/logging"
	"github.com/abelbrown/dropwatch/internal/render"
	"github.com/abelbrown/dropwatch/internal/ui"
)

const dumpTimeout = 30 * time.Second

// dumpOptions controls one headless load.
type dumpOptions struct {
	Format   string // text or html
	Search   string
	Sort     string
	Author   string
	Renderer render.Renderer
	Now      time.Time
}

// dumpData is what the text and html writers render.
type dumpData struct {
	Stats  *feed.Stats
	Posts  []feed.Post
	Author string
	Now    time.Time
}

// statsSink keeps the stats snapshot a load delivers.
type statsSink struct {
	mu    sync.Mutex
	stats *feed.Stats
}

func (s *statsSink) Send(msg tea.Msg) {
	if m, ok := msg.(ui.StatsLoaded); ok {
		s.mu.Lock()
		s.stats = &m.Stats
		s.mu.Unlock()
	}
}

func runDump() int {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	common := registerCommon(fs)
	format := fs.String("format", "text", "output format: text or html")
	search := fs.String("search", "", "keep posts whose content or keywords contain this")
	sortMode := fs.String("sort", "", "newest, popular or recent")
	fs.Parse(os.Args[1:])

	cfg, err := common.resolve()
	if err != nil {
		return fail("%v", err)
	}
	if err := logging.InitWriter(os.Stderr, levelOr(cfg.Logging.Level, "warn")); err != nil {
		return fail("logging: %v", err)
	}

	client, err := newAPIClient(cfg)
	if err != nil {
		return fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dumpTimeout)
	defer cancel()

	err = dump(ctx, client, dumpOptions{
		Format:   *format,
		Search:   *search,
		Sort:     *sortMode,
		Author:   cfg.UI.Author,
		Renderer: newRenderer(cfg),
		Now:      time.Now(),
	}, os.Stdout)
	if err != nil {
		return fail("%v", err)
	}
	return 0
}

// levelOr keeps stderr quiet for dumps unless debug output was asked for.
func levelOr(level, floor string) string {
	if level == "debug" {
		return level
	}
	return floor
}

// dump loads both snapshots once, applies the search and sort, and writes
// the resulting view to w.
func dump(ctx context.Context, src snapshotSource, opts dumpOptions, w io.Writer) error {
	var mode feed.SortMode
	if opts.Sort != "" {
		m, ok := feed.ParseSortMode(opts.Sort)
		if !ok {
			return fmt.Errorf("unknown sort %q (want newest, popular or recent)", opts.Sort)
		}
		mode = m
	}
	if opts.Format != "text" && opts.Format != "html" {
		return fmt.Errorf("unknown format %q (want text or html)", opts.Format)
	}

	sink := &statsSink{}
	c := coord.New(feed.NewStore(), src, coord.WithSender(sink))
	if err := c.InitialLoad(ctx); err != nil {
		return err
	}

	view := c.Filter(opts.Search)
	if mode != "" {
		view = c.Sort(mode)
	}

	sink.mu.Lock()
	data := dumpData{Stats: sink.stats, Posts: view, Author: opts.Author, Now: opts.Now}
	sink.mu.Unlock()
	if data.Author == "" {
		data.Author = ui.DefaultAuthor
	}
	if data.Now.IsZero() {
		data.Now = time.Now()
	}

	if opts.Format == "html" {
		return writeHTML(w, data, opts.Renderer)
	}
	return writeText(w, data)
}

// snapshotSource matches coord's snapshot dependency.
type snapshotSource interface {
	Stats(ctx context.Context) (feed.Stats, error)
	Posts(ctx context.Context) ([]feed.Post, error)
}

func writeText(w io.Writer, d dumpData) error {
	var b strings.Builder
	if d.Stats != nil {
		fmt.Fprintf(&b, "Total %s  Airdrop %s  Today %s  Rate %s\n",
			humanize.Comma(int64(d.Stats.TotalTweets)),
			humanize.Comma(int64(d.Stats.AirdropTweets)),
			humanize.Comma(int64(d.Stats.TodayTweets)),
			ui.FormatRate(d.Stats.AirdropRate))
	}
	fmt.Fprintf(&b, "%s\n", ui.RenderCount(len(d.Posts)))

	if len(d.Posts) == 0 {
		fmt.Fprintf(&b, "\n%s\n", ui.NoResults)
	}
	for i, p := range d.Posts {
		fmt.Fprintf(&b, "\n[%d] %s · %s · ♥ %s  ⟳ %s  ↩ %s\n", i+1, d.Author, render.Ago(p.Date.Time, d.Now),
			humanize.Comma(int64(p.Likes)), humanize.Comma(int64(p.Retweets)), humanize.Comma(int64(p.Replies)))
		for _, line := range strings.Split(render.StripControl(p.Content), "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
		if len(p.Keywords) > 0 {
			fmt.Fprintf(&b, "    keywords: %s\n", render.StripControl(strings.Join(p.Keywords, ", ")))
		}
		if p.URL != "" {
			fmt.Fprintf(&b, "    %s\n", render.StripControl(p.URL))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>dropwatch</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; }
article { border-bottom: 1px solid #ddd; padding: 0.75rem 0; }
.meta { color: #666; font-size: 0.9rem; }
.kw { background: #f0b90b; border-radius: 3px; padding: 0 0.3rem; margin-right: 0.3rem; }
</style>
</head>
<body>
<h1>Airdrop posts</h1>
{{with .Stats}}<p class="stats">Total {{.Total}} · Airdrop {{.Airdrop}} · Today {{.Today}} · Rate {{.Rate}}</p>
{{end}}<p class="count">{{.Count}}</p>
{{range .Posts}}<article id="post-{{.ID}}">
<div class="meta"><strong>{{$.Author}}</strong> · <time datetime="{{.ISODate}}">{{.Age}}</time></div>
<p>{{.Content}}</p>
<div class="meta">♥ {{.Likes}} ⟳ {{.Retweets}} ↩ {{.Replies}} {{range .Keywords}}<span class="kw">{{.}}</span>{{end}}{{with .URL}} <a href="{{.}}" target="_blank" rel="noopener noreferrer">Open</a>{{end}}</div>
</article>
{{else}}<p class="empty">{{$.Empty}}</p>
{{end}}</body>
</html>
`))

type pageStats struct {
	Total, Airdrop, Today, Rate string
}

type pagePost struct {
	ID                       string
	Content                  template.HTML
	ISODate, Age             string
	Likes, Retweets, Replies string
	Keywords                 []string
	URL                      string
}

type page struct {
	Stats  *pageStats
	Count  string
	Author string
	Empty  string
	Posts  []pagePost
}

func writeHTML(w io.Writer, d dumpData, r render.Renderer) error {
	if r == (render.Renderer{}) {
		r = render.Default
	}

	p := page{
		Count:  ui.RenderCount(len(d.Posts)),
		Author: d.Author,
		Empty:  ui.NoResults,
	}
	if d.Stats != nil {
		p.Stats = &pageStats{
			Total:   humanize.Comma(int64(d.Stats.TotalTweets)),
			Airdrop: humanize.Comma(int64(d.Stats.AirdropTweets)),
			Today:   humanize.Comma(int64(d.Stats.TodayTweets)),
			Rate:    ui.FormatRate(d.Stats.AirdropRate),
		}
	}
	for _, post := range d.Posts {
		pp := pagePost{
			ID:       post.ID,
			Content:  r.HTML(post.Content),
			Age:      render.Ago(post.Date.Time, d.Now),
			Likes:    humanize.Comma(int64(post.Likes)),
			Retweets: humanize.Comma(int64(post.Retweets)),
			Replies:  humanize.Comma(int64(post.Replies)),
			Keywords: post.Keywords,
			URL:      post.URL,
		}
		if !post.Date.IsZero() {
			pp.ISODate = post.Date.Format(time.RFC3339)
		}
		p.Posts = append(p.Posts, pp)
	}

	if err := pageTemplate.Execute(w, p); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

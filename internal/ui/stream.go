package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/abelbrown/dropwatch/internal/feed"
	"github.com/abelbrown/dropwatch/internal/render"
)

// NoResults is the placeholder shown for an empty view.
const NoResults = "No posts found."

// DefaultAuthor is the label shown on every card.
const DefaultAuthor = "@binance"

// cardHeight is the number of lines one card occupies, separator included.
const cardHeight = 4

// CardOptions controls card rendering.
type CardOptions struct {
	Author   string
	Now      time.Time
	Renderer render.Renderer
}

func (o CardOptions) withDefaults() CardOptions {
	if o.Author == "" {
		o.Author = DefaultAuthor
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Renderer == (render.Renderer{}) {
		o.Renderer = render.Default
	}
	return o
}

// RenderList renders the view as a scrolled list of cards that keeps the
// cursor visible. An empty view renders the NoResults placeholder.
func RenderList(posts []feed.Post, cursor, width, height int, opts CardOptions) string {
	if len(posts) == 0 {
		return EmptyStyle.Render(NoResults)
	}
	opts = opts.withDefaults()

	visible := max(1, height/cardHeight)
	offset := calcScrollOffset(len(posts), cursor, visible)

	var b strings.Builder
	for i := offset; i < len(posts) && i < offset+visible; i++ {
		b.WriteString(renderCard(posts[i], i == cursor, width, opts))
		b.WriteString("\n")
	}
	return b.String()
}

// calcScrollOffset returns the first card index to draw so that cursor is
// within a window of visible cards.
func calcScrollOffset(n, cursor, visible int) int {
	if n == 0 || cursor < 0 {
		return 0
	}
	if cursor >= n {
		cursor = n - 1
	}
	if cursor >= visible {
		return cursor - visible + 1
	}
	return 0
}

// renderCard renders one post as three lines plus a blank separator.
func renderCard(p feed.Post, selected bool, width int, opts CardOptions) string {
	marker := "  "
	if selected {
		marker = SelectedMarker.Render("▌ ")
	}

	head := marker + AuthorStyle.Render(opts.Author) + MetaItem.Render(" · "+render.Ago(p.Date.Time, opts.Now))

	contentWidth := max(10, width-4)
	flat := strings.Join(strings.Fields(render.StripControl(p.Content)), " ")
	body := "  " + opts.Renderer.TerminalWidth(flat, contentWidth, "…")

	meta := "  " + MetaItem.Render(fmt.Sprintf("♥ %s  ⟳ %s  ↩ %s",
		humanize.Comma(int64(p.Likes)),
		humanize.Comma(int64(p.Retweets)),
		humanize.Comma(int64(p.Replies))))
	if badges := renderBadges(p.Keywords); badges != "" {
		meta += "  " + badges
	}

	return head + "\n" + body + "\n" + meta + "\n"
}

func renderBadges(keywords []string) string {
	badges := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(render.StripControl(kw))
		if kw == "" {
			continue
		}
		badges = append(badges, KeywordBadge.Render(kw))
	}
	return strings.Join(badges, "")
}

// RenderCount renders the view length as a label, e.g. "1,234 posts".
func RenderCount(n int) string {
	if n == 1 {
		return "1 post"
	}
	return humanize.Comma(int64(n)) + " posts"
}

// FormatRate renders a percentage with at most two decimals.
func FormatRate(rate float64) string {
	return humanize.FtoaWithDigits(rate, 2) + "%"
}

// RenderStats renders the four dashboard counters on one line.
func RenderStats(s feed.Stats) string {
	field := func(label, value string) string {
		return StatsLabel.Render(label+" ") + StatsValue.Render(value)
	}
	return strings.Join([]string{
		field("Total", humanize.Comma(int64(s.TotalTweets))),
		field("Airdrop", humanize.Comma(int64(s.AirdropTweets))),
		field("Today", humanize.Comma(int64(s.TodayTweets))),
		field("Rate", FormatRate(s.AirdropRate)),
	}, "   ")
}

// RenderConnectionStatus renders the live indicator. When online with a known
// last update, the update's local time of day is shown instead of "Live".
func RenderConnectionStatus(online bool, lastUpdate time.Time) string {
	switch {
	case !online:
		return StatusOffline.Render("○ Disconnected")
	case lastUpdate.IsZero():
		return StatusOnline.Render("● Live")
	default:
		return StatusOnline.Render("● Last updated: " + lastUpdate.Local().Format("15:04:05"))
	}
}

// RenderDetail renders the full post for the detail panel.
func RenderDetail(p feed.Post, width int, opts CardOptions) string {
	opts = opts.withDefaults()
	inner := max(20, width-4)

	when := "unknown date"
	if !p.Date.IsZero() {
		when = p.Date.Local().Format("2006-01-02 15:04:05")
	}

	var lines []string
	lines = append(lines, AuthorStyle.Render(opts.Author)+MetaItem.Render(" • "+when))
	lines = append(lines, "")
	lines = append(lines, lipgloss.NewStyle().Width(inner).Render(opts.Renderer.Terminal(p.Content)))
	lines = append(lines, "")
	lines = append(lines, MetaItem.Render(fmt.Sprintf("♥ %s likes  ⟳ %s retweets  ↩ %s replies",
		humanize.Comma(int64(p.Likes)),
		humanize.Comma(int64(p.Retweets)),
		humanize.Comma(int64(p.Replies)))))
	if badges := renderBadges(p.Keywords); badges != "" {
		lines = append(lines, badges)
	}
	if p.URL != "" {
		lines = append(lines, "")
		lines = append(lines, MetaItem.Render("Open: ")+render.Hyperlink(p.URL, p.URL))
	}
	return strings.Join(lines, "\n")
}

// RenderStatusBar renders the bottom bar: view count and sort on the left,
// key hints on the right.
func RenderStatusBar(count int, sort feed.SortMode, hints string, width int) string {
	left := " " + RenderCount(count)
	if sort != "" {
		left += " · sort: " + string(sort)
	}
	left += " "

	padding := max(0, width-lipgloss.Width(left)-lipgloss.Width(hints)-2)
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + hints)
}

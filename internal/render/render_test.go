package render

import (
	"strings"
	"testing"
	"time"
)

func TestAgo(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"just now", 0, "0m ago"},
		{"seconds", 59 * time.Second, "0m ago"},
		{"minutes", 5 * time.Minute, "5m ago"},
		{"under hour", 59*time.Minute + 59*time.Second, "59m ago"},
		{"hour", time.Hour, "1h ago"},
		{"hours", 23*time.Hour + 59*time.Minute, "23h ago"},
		{"day", 24 * time.Hour, "1d ago"},
		{"days", 80 * time.Hour, "3d ago"},
		{"future", -10 * time.Minute, "0m ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ago(now.Add(-tt.d), now); got != tt.want {
				t.Errorf("Ago(-%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestHTMLLinksURLBeforeTokens(t *testing.T) {
	got := string(HTML("check https://x.com/a #btc @binance"))

	want := `check <a href="https://x.com/a" target="_blank" rel="noopener noreferrer">https://x.com/a</a> ` +
		`<a href="https://twitter.com/hashtag/btc" target="_blank" rel="noopener noreferrer">#btc</a> ` +
		`<a href="https://twitter.com/binance" target="_blank" rel="noopener noreferrer">@binance</a>`
	if got != want {
		t.Errorf("HTML() =\n%s\nwant\n%s", got, want)
	}
	if n := strings.Count(got, "<a "); n != 3 {
		t.Errorf("got %d links, want 3", n)
	}
}

func TestHTMLURLWithSigils(t *testing.T) {
	got := string(HTML("see https://x.com/@user/page#frag now"))

	if n := strings.Count(got, "<a "); n != 1 {
		t.Fatalf("got %d links, want 1: %s", n, got)
	}
	if !strings.Contains(got, `href="https://x.com/@user/page#frag"`) {
		t.Errorf("URL not linked intact: %s", got)
	}
}

func TestHTMLEscapes(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		bad     string
		present string
	}{
		{"script", `<script>alert(1)</script> #x`, "<script>", "&lt;script&gt;"},
		{"attr", `"onmouseover=alert(1) @a`, `"onmouseover`, "&#34;onmouseover"},
		{"url quote", `https://e.com/"><img src=x>`, "<img", "&lt;img"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(HTML(tt.in))
			if strings.Contains(got, tt.bad) {
				t.Errorf("HTML(%q) leaked %q: %s", tt.in, tt.bad, got)
			}
			if !strings.Contains(got, tt.present) {
				t.Errorf("HTML(%q) missing %q: %s", tt.in, tt.present, got)
			}
		})
	}
}

func TestHTMLPlain(t *testing.T) {
	if got := string(HTML("no links here")); got != "no links here" {
		t.Errorf("HTML() = %q", got)
	}
	if got := string(HTML("")); got != "" {
		t.Errorf("HTML(\"\") = %q", got)
	}
}

func TestLinks(t *testing.T) {
	r := Renderer{ProfileURL: "https://example.com/u/", HashtagURL: "https://example.com/t/"}

	links := r.Links("hi @bob and #go_lang, then http://a.b/c")
	want := []Link{
		{Text: "@bob", Href: "https://example.com/u/bob"},
		{Text: "#go_lang", Href: "https://example.com/t/go_lang"},
		{Text: "http://a.b/c", Href: "http://a.b/c"},
	}
	if len(links) != len(want) {
		t.Fatalf("Links() = %+v, want %+v", links, want)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("link %d = %+v, want %+v", i, links[i], want[i])
		}
	}
}

func TestTerminal(t *testing.T) {
	got := Terminal("gm @binance\x1b[31m red")

	if strings.Contains(got, "\x1b[31m") {
		t.Errorf("control sequence passed through: %q", got)
	}
	link := "\x1b]8;;https://twitter.com/binance\x1b\\@binance\x1b]8;;\x1b\\"
	if !strings.Contains(got, link) {
		t.Errorf("Terminal() = %q, want OSC 8 link %q", got, link)
	}
	if !strings.HasPrefix(got, "gm ") || !strings.HasSuffix(got, "[31m red") {
		t.Errorf("plain text altered: %q", got)
	}
}

func TestTerminalWidth(t *testing.T) {
	const url = "https://example.com/very/long/path"
	osc := func(href, text string) string {
		return "\x1b]8;;" + href + "\x1b\\" + text + "\x1b]8;;\x1b\\"
	}

	tests := []struct {
		name    string
		content string
		width   int
		want    string
	}{
		{"fits", "see " + url, 80, "see " + osc(url, url)},
		{"cut inside url", "see " + url, 20, "see " + osc(url, "https://example") + "…"},
		{"cut before url", "a long prefix " + url, 8, "a long …"},
		{"plain", "hello world", 6, "hello…"},
		{"cut inside mention", "gm @binance", 6, "gm " + osc(DefaultProfileURL+"binance", "@b") + "…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Default.TerminalWidth(tt.content, tt.width, "…"); got != tt.want {
				t.Errorf("TerminalWidth(%q, %d) = %q, want %q", tt.content, tt.width, got, tt.want)
			}
		})
	}
}

func TestStripControl(t *testing.T) {
	if got := StripControl("a\x00b\x07c\nd\te\u009b"); got != "abc\nd\te" {
		t.Errorf("StripControl() = %q", got)
	}
}

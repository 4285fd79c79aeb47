// Package render turns raw post text into display markup and timestamps
// into coarse age labels.
package render

import (
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
)

// Default link targets for mentions and hashtags.
const (
	DefaultProfileURL = "https://twitter.com/"
	DefaultHashtagURL = "https://twitter.com/hashtag/"
)

var (
	// urlRe matches absolute http(s) URLs up to the next whitespace.
	urlRe = regexp.MustCompile(`https?://[^\s]+`)

	// tokenRe matches @mentions and #hashtags. Only applied outside URLs.
	tokenRe = regexp.MustCompile(`([@#])(\w+)`)
)

// Renderer converts post content to link-annotated output.
type Renderer struct {
	ProfileURL string // prefix for @mention links
	HashtagURL string // prefix for #hashtag links
}

// Default uses the twitter.com profile and hashtag pages.
var Default = Renderer{
	ProfileURL: DefaultProfileURL,
	HashtagURL: DefaultHashtagURL,
}

// HTML renders content with Default.
func HTML(content string) template.HTML {
	return Default.HTML(content)
}

// Terminal renders content with Default.
func Terminal(content string) string {
	return Default.Terminal(content)
}

// Link is one recognised span of post content.
type Link struct {
	Text string // text as it appears in the content
	Href string // target URL
}

// span is a piece of content, either plain text or a link.
type span struct {
	text string
	link *Link
}

// tokenize splits content into plain and link spans. URLs are located first
// on the raw text; mentions and hashtags are only searched for in the text
// between URLs, so a URL's own @ or # never produces a second link.
func (r Renderer) tokenize(content string) []span {
	var spans []span
	last := 0
	for _, loc := range urlRe.FindAllStringIndex(content, -1) {
		spans = r.appendTokens(spans, content[last:loc[0]])
		u := content[loc[0]:loc[1]]
		spans = append(spans, span{text: u, link: &Link{Text: u, Href: u}})
		last = loc[1]
	}
	return r.appendTokens(spans, content[last:])
}

func (r Renderer) appendTokens(spans []span, text string) []span {
	last := 0
	for _, m := range tokenRe.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			spans = append(spans, span{text: text[last:m[0]]})
		}
		sigil, word := text[m[2]:m[3]], text[m[4]:m[5]]
		href := r.ProfileURL + word
		if sigil == "#" {
			href = r.HashtagURL + word
		}
		spans = append(spans, span{text: text[m[0]:m[1]], link: &Link{Text: sigil + word, Href: href}})
		last = m[1]
	}
	if last < len(text) {
		spans = append(spans, span{text: text[last:]})
	}
	return spans
}

// Links returns the links found in content, in order of appearance.
func (r Renderer) Links(content string) []Link {
	var links []Link
	for _, s := range r.tokenize(content) {
		if s.link != nil {
			links = append(links, *s.link)
		}
	}
	return links
}

// HTML escapes content and wraps URLs, mentions and hashtags in anchors that
// open in a new browsing context. No raw input reaches the output unescaped.
func (r Renderer) HTML(content string) template.HTML {
	var b strings.Builder
	for _, s := range r.tokenize(content) {
		if s.link == nil {
			b.WriteString(html.EscapeString(s.text))
			continue
		}
		fmt.Fprintf(&b, `<a href="%s" target="_blank" rel="noopener noreferrer">%s</a>`,
			html.EscapeString(s.link.Href), html.EscapeString(s.link.Text))
	}
	return template.HTML(b.String())
}

// Terminal renders content for a terminal. Links become OSC 8 hyperlinks and
// control characters are dropped so content cannot emit escape sequences.
func (r Renderer) Terminal(content string) string {
	var b strings.Builder
	for _, s := range r.tokenize(content) {
		if s.link == nil {
			b.WriteString(StripControl(s.text))
			continue
		}
		b.WriteString(Hyperlink(s.link.Href, s.link.Text))
	}
	return b.String()
}

// TerminalWidth is Terminal limited to width display cells. Only visible
// text is cut: a link reaching the limit keeps its full target. tail is
// appended after a cut.
func (r Renderer) TerminalWidth(content string, width int, tail string) string {
	if runewidth.StringWidth(StripControl(content)) <= width {
		return r.Terminal(content)
	}

	budget := max(0, width-runewidth.StringWidth(tail))
	var b strings.Builder
	for _, s := range r.tokenize(content) {
		text := StripControl(s.text)
		cut := runewidth.StringWidth(text) > budget
		if cut {
			text = runewidth.Truncate(text, budget, "")
		}
		switch {
		case text == "":
		case s.link == nil:
			b.WriteString(text)
		default:
			b.WriteString(Hyperlink(s.link.Href, text))
		}
		if cut {
			break
		}
		budget -= runewidth.StringWidth(text)
	}
	b.WriteString(tail)
	return b.String()
}

// Hyperlink wraps text in an OSC 8 terminal hyperlink to href.
func Hyperlink(href, text string) string {
	return "\x1b]8;;" + StripControl(href) + "\x1b\\" + StripControl(text) + "\x1b]8;;\x1b\\"
}

// StripControl removes control characters except newline and tab.
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// Package feed holds the post data model and the in-session post store.
package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Post is a single airdrop-flagged post as served by the backend.
// Posts are immutable once received and are replaced wholesale on refresh.
type Post struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Date     Time     `json:"date"`
	Likes    int      `json:"likes"`
	Retweets int      `json:"retweets"`
	Replies  int      `json:"replies"`
	Keywords []string `json:"keywords"`
	URL      string   `json:"url"`
}

// Score is the popularity ranking key. Replies are not counted.
func (p Post) Score() int {
	return p.Likes + p.Retweets
}

// Stats is the dashboard counter snapshot from /api/stats.
type Stats struct {
	TotalTweets   int     `json:"total_tweets"`
	AirdropTweets int     `json:"airdrop_tweets"`
	TodayTweets   int     `json:"today_tweets"`
	AirdropRate   float64 `json:"airdrop_rate"` // percent
}

// TweetsUpdate is the payload of a tweets_update push event.
type TweetsUpdate struct {
	Timestamp     Time   `json:"timestamp"`
	TotalTweets   int    `json:"total_tweets"`
	AirdropTweets []Post `json:"airdrop_tweets"`
}

// Time decodes the timestamp formats the backend emits: RFC 3339 with an
// offset, and naive ISO-8601 without one (interpreted as local time).
type Time struct {
	time.Time
}

// timeLayouts are tried in order for strings without a zone offset.
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses a backend timestamp string.
func ParseTime(s string) (Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Time{t}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Time{t}, nil
		}
	}
	return Time{}, fmt.Errorf("feed: unrecognised timestamp %q", s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("feed: timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

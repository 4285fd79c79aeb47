package feed

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-06-01T10:20:30+00:00", time.Date(2024, 6, 1, 10, 20, 30, 0, time.UTC)},
		{"2024-06-01T10:20:30Z", time.Date(2024, 6, 1, 10, 20, 30, 0, time.UTC)},
		{"2024-06-01T10:20:30.123456", time.Date(2024, 6, 1, 10, 20, 30, 123456000, time.Local)},
		{"2024-06-01 10:20:30", time.Date(2024, 6, 1, 10, 20, 30, 0, time.Local)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if err != nil {
				t.Fatalf("ParseTime(%q) error: %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTime(%q) = %v, want %v", tt.in, got.Time, tt.want)
			}
		})
	}

	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("ParseTime(yesterday) should fail")
	}
}

func TestDecodeTweetsUpdate(t *testing.T) {
	payload := `{
		"timestamp": "2024-06-01T10:20:30.5",
		"total_tweets": 100,
		"airdrop_tweets": [
			{"id": "1", "content": "airdrop", "url": "https://x.com/binance/status/1",
			 "date": "2024-06-01T09:00:00+00:00", "likes": 1, "retweets": 2, "replies": 3,
			 "keywords": ["airdrop"]}
		]
	}`

	var u TweetsUpdate
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.TotalTweets != 100 || len(u.AirdropTweets) != 1 {
		t.Fatalf("got total=%d posts=%d", u.TotalTweets, len(u.AirdropTweets))
	}
	if u.Timestamp.IsZero() {
		t.Error("timestamp not decoded")
	}
	p := u.AirdropTweets[0]
	if p.Score() != 3 || p.Replies != 3 || p.Keywords[0] != "airdrop" {
		t.Errorf("unexpected post %+v", p)
	}
}

func TestTimeNullAndEmpty(t *testing.T) {
	var p Post
	if err := json.Unmarshal([]byte(`{"id":"1","date":null}`), &p); err != nil {
		t.Fatalf("null date: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"id":"1","date":""}`), &p); err != nil {
		t.Fatalf("empty date: %v", err)
	}
	if !p.Date.IsZero() {
		t.Error("empty date should decode to zero time")
	}
	if err := json.Unmarshal([]byte(`{"id":"1","date":42}`), &p); err == nil {
		t.Error("numeric date should fail")
	}
}

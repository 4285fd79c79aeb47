package render

import (
	"fmt"
	"time"
)

// Ago formats the age of t relative to now: whole minutes under an hour,
// whole hours under a day, whole days beyond that. Future times read "0m ago".
func Ago(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}

	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}

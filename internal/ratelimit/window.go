package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// Window is one of the fixed granularities usage is tracked over
type Window int

const (
	Second Window = iota
	Minute
	Hour
	Day
	Month
	Year

	// NoWindow marks the absence of a window (e.g. no blocking window)
	NoWindow Window = -1
)

const windowCount = 6

// Windows lists every window kind, finest first. Evaluation follows this order.
var Windows = [windowCount]Window{Second, Minute, Hour, Day, Month, Year}

var windowNames = [windowCount]string{"second", "minute", "hour", "day", "month", "year"}

// Nominal window lengths in seconds, used for reset computation and tie-breaks
var windowSeconds = [windowCount]int64{1, 60, 3600, 86400, 2592000, 31536000}

var limitHeaders = [windowCount]string{
	"X-RateLimit-Limit-Second",
	"X-RateLimit-Limit-Minute",
	"X-RateLimit-Limit-Hour",
	"X-RateLimit-Limit-Day",
	"X-RateLimit-Limit-Month",
	"X-RateLimit-Limit-Year",
}

var remainingHeaders = [windowCount]string{
	"X-RateLimit-Remaining-Second",
	"X-RateLimit-Remaining-Minute",
	"X-RateLimit-Remaining-Hour",
	"X-RateLimit-Remaining-Day",
	"X-RateLimit-Remaining-Month",
	"X-RateLimit-Remaining-Year",
}

func (w Window) valid() bool {
	return w >= Second && w <= Year
}

func (w Window) String() string {
	if !w.valid() {
		return "unknown"
	}
	return windowNames[w]
}

// Seconds returns the nominal length of the window
func (w Window) Seconds() int64 {
	if !w.valid() {
		return 0
	}
	return windowSeconds[w]
}

func (w Window) LimitHeader() string {
	if !w.valid() {
		return ""
	}
	return limitHeaders[w]
}

func (w Window) RemainingHeader() string {
	if !w.valid() {
		return ""
	}
	return remainingHeaders[w]
}

// End returns the calendar end of the window that starts at start.
// Months and years use calendar arithmetic rather than the nominal length.
func (w Window) End(start time.Time) time.Time {
	start = start.UTC()
	switch w {
	case Month:
		return start.AddDate(0, 1, 0)
	case Year:
		return start.AddDate(1, 0, 0)
	default:
		return start.Add(time.Duration(w.Seconds()) * time.Second)
	}
}

// ParseWindow converts a config name ("minute", "Hour", ...) to a Window
func ParseWindow(s string) (Window, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, w := range Windows {
		if windowNames[w] == name {
			return w, nil
		}
	}
	return NoWindow, fmt.Errorf("unknown window %q", s)
}

// TruncateTo aligns t (in UTC) to the start of its w window by zeroing calendar
// fields, finest first.
func TruncateTo(t time.Time, w Window) time.Time {
	t = t.UTC()
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	switch w {
	case Second:
		return time.Date(year, month, day, hour, minute, sec, 0, time.UTC)
	case Minute:
		return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	case Hour:
		return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
	case Day:
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	case Month:
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	case Year:
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// Boundaries holds the aligned start of every window for one instant.
// It is computed once per request and never shared.
type Boundaries struct {
	Now    int64
	starts [windowCount]int64
}

// Truncate computes the window boundaries for now
func Truncate(now time.Time) Boundaries {
	b := Boundaries{Now: now.Unix()}
	for _, w := range Windows {
		b.starts[w] = TruncateTo(now, w).Unix()
	}
	return b
}

// Start returns the aligned epoch second of w
func (b Boundaries) Start(w Window) int64 {
	if !w.valid() {
		return b.Now
	}
	return b.starts[w]
}

// Reset returns the seconds until w resets, never less than one
func (b Boundaries) Reset(w Window) int64 {
	return max(1, w.Seconds()-(b.Now-b.Start(w)))
}

// TTL returns how long a counter for w should be retained from now on
func (b Boundaries) TTL(w Window) time.Duration {
	end := w.End(time.Unix(b.Start(w), 0))
	ttl := end.Sub(time.Unix(b.Now, 0))
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

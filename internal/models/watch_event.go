package models

import (
	"strings"
	"time"
)

const (
	// UnknownField is the placeholder the upstream feed uses for fields
	// it could not resolve.
	UnknownField = "N/A"

	// ShortFormDuration is the duration sentinel the feed reports for
	// short-form entries instead of a mm:ss length.
	ShortFormDuration = "Shorts"

	// ShortFormChannel is the synthetic channel name short-form entries
	// are attributed to.
	ShortFormChannel = "YouTube Shorts"

	shortFormPathMarker = "/shorts/"
)

// WatchEvent is a single observed video-watch event. VideoID is the
// identity used for deduplication; everything else is pass-through.
type WatchEvent struct {
	VideoID   string    `json:"video_id"`
	Title     string    `json:"title"`
	Channel   string    `json:"channel"`
	Thumbnail string    `json:"thumbnail"`
	URL       string    `json:"url"`
	Duration  string    `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

// IsShortForm classifies an event as short-form. Short-form events are
// never stored; the check is also applied when reading legacy data so
// historical short-form entries stay out of every view.
func IsShortForm(e *WatchEvent) bool {
	if e == nil {
		return false
	}
	if e.Duration == ShortFormDuration {
		return true
	}
	if e.Channel == ShortFormChannel {
		return true
	}
	return strings.Contains(e.URL, shortFormPathMarker)
}

// Package track holds the descriptor of a playable item.
package track

import (
	"time"

	"github.com/keshon/jukebox/pkg/util"
)

const (
	SourceYouTube = "youtube"
	SourceRadio   = "radio"
)

// Track is a resolved, playable item. It is passed by value and never mutated
// after the resolver returns it.
type Track struct {
	Source      string        // URL or search query the stream is opened from
	URL         string        // canonical page URL for display, may equal Source
	Title       string        // empty when unknown
	Duration    time.Duration // zero when unknown (live streams)
	SourceName  string        // youtube, radio
	RequestedBy string        // user id of the requester
}

// DisplayTitle returns the title, falling back to the URL and source.
func (t Track) DisplayTitle() string {
	switch {
	case t.Title != "":
		return t.Title
	case t.URL != "":
		return t.URL
	case t.Source != "":
		return t.Source
	default:
		return "Unknown track"
	}
}

// DurationString renders the duration as m:ss, or "Unknown".
func (t Track) DurationString() string {
	return util.FormatDuration(t.Duration)
}

// TotalDuration sums known durations; live or unknown tracks add nothing.
func TotalDuration(tracks []Track) time.Duration {
	var total time.Duration
	for _, t := range tracks {
		total += t.Duration
	}
	return total
}

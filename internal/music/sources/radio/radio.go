// Package radio plays internet radio streams and direct audio links.
package radio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

const Name = track.SourceRadio

// Source accepts any http(s) URL whose headers look like an audio stream.
// It is consulted after every other source.
type Source struct {
	client *http.Client
}

func New(timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Source{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
	}
}

func (s *Source) Name() string   { return Name }
func (s *Source) Fallback() bool { return true }

func (s *Source) Match(input string) bool {
	u, err := url.Parse(input)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *Source) Resolve(ctx context.Context, input string) (track.Track, error) {
	var res probeResult
	err := retrylimit.WithRetryMax(ctx, func() error {
		r, err := s.probe(ctx, input)
		if err != nil {
			return err
		}
		res = r
		return nil
	}, nil, 2)
	if err != nil {
		return track.Track{}, fmt.Errorf("failed to probe stream: %w", err)
	}

	if !isStreamType(res.contentType) && !isPlaylistURL(res.finalURL) {
		return track.Track{}, fmt.Errorf("invalid stream content-type %q, url: %s", res.contentType, res.finalURL)
	}

	title := res.name
	if title == "" {
		title = hostTitle(input)
	}
	return track.Track{
		Source:     input,
		URL:        input,
		Title:      title,
		SourceName: Name,
	}, nil
}

func (s *Source) Open(_ context.Context, t track.Track) (stream.Source, error) {
	return stream.Decode(t.Source, 1)
}

func hostTitle(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(u.Hostname(), "www.") + u.EscapedPath()
}

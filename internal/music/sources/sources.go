// Package sources resolves user input into tracks and opens tracks as PCM
// streams, dispatching to the first source that recognises the input.
package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/music/track"
)

var (
	ErrNoSource      = errors.New("no source can play this input")
	ErrUnknownSource = errors.New("unknown source")
)

// Source is one kind of media provider.
type Source interface {
	Name() string
	// Match reports whether input is a URL this source handles.
	Match(input string) bool
	Resolve(ctx context.Context, input string) (track.Track, error)
	Open(ctx context.Context, t track.Track) (stream.Source, error)
}

// Searcher is a Source that also accepts free-text queries.
type Searcher interface {
	Source
	Search(ctx context.Context, query string) (track.Track, error)
}

// Fallback marks a source that is tried only after every other source
// declined a URL, such as a generic radio stream probe.
type Fallback interface {
	Fallback() bool
}

// Resolver dispatches to registered sources.
type Resolver struct {
	sources  []Source
	byName   map[string]Source
	searcher Searcher
}

// NewResolver registers srcs in priority order. The first Searcher handles
// free-text queries.
func NewResolver(srcs ...Source) *Resolver {
	r := &Resolver{byName: make(map[string]Source, len(srcs))}
	for _, s := range srcs {
		r.sources = append(r.sources, s)
		r.byName[s.Name()] = s
		if sr, ok := s.(Searcher); ok && r.searcher == nil {
			r.searcher = sr
		}
	}
	return r
}

// Resolve turns a URL or search query into a track.
func (r *Resolver) Resolve(ctx context.Context, query string) (track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return track.Track{}, errors.New("empty query")
	}

	if !IsURL(query) {
		if r.searcher == nil {
			return track.Track{}, fmt.Errorf("%w: title search is not available", ErrNoSource)
		}
		return r.searcher.Search(ctx, query)
	}

	var fallbacks []Source
	for _, s := range r.sources {
		if f, ok := s.(Fallback); ok && f.Fallback() {
			fallbacks = append(fallbacks, s)
			continue
		}
		if s.Match(query) {
			return s.Resolve(ctx, query)
		}
	}
	for _, s := range fallbacks {
		if s.Match(query) {
			return s.Resolve(ctx, query)
		}
	}
	return track.Track{}, ErrNoSource
}

// Open starts streaming t through the source that resolved it.
func (r *Resolver) Open(ctx context.Context, t track.Track) (stream.Source, error) {
	s, ok := r.byName[t.SourceName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, t.SourceName)
	}
	return s.Open(ctx, t)
}

// Names lists registered sources in priority order.
func (r *Resolver) Names() []string {
	out := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s.Name())
	}
	return out
}

func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Package youtube resolves YouTube links and search queries and streams their
// audio through ffmpeg.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	kkdai "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/logger"
	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

const Name = track.SourceYouTube

type Options struct {
	Proxy     string // optional http, https, socks5 or socks4 proxy URL
	YTDLPPath string // yt-dlp binary; empty disables the fallback
	BaseURL   string // search host, for tests
	Timeout   time.Duration
}

// Source plays YouTube videos. Metadata and stream URLs come from the kkdai
// client with yt-dlp as the fallback.
type Source struct {
	client *kkdai.Client
	search *searcher
	ytdlp  string
	log    zerolog.Logger
}

func New(opts Options) (*Source, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.youtube.com"
	}

	httpClient, err := NewHTTPClient(opts.Proxy, opts.Timeout)
	if err != nil {
		return nil, err
	}

	l := logger.For("youtube")
	if opts.Proxy != "" {
		l.Info().Msg("[YouTube] Using proxy")
	}

	return &Source{
		client: &kkdai.Client{HTTPClient: httpClient},
		search: &searcher{
			baseURL: strings.TrimRight(opts.BaseURL, "/"),
			client:  &http.Client{Timeout: opts.Timeout, Transport: httpClient.Transport},
			limiter: retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
		},
		ytdlp: opts.YTDLPPath,
		log:   l,
	}, nil
}

func (s *Source) Name() string { return Name }

func (s *Source) Match(input string) bool { return isYouTubeURL(input) }

// Resolve accepts a video URL. Playlist and channel links are rejected.
func (s *Source) Resolve(ctx context.Context, input string) (track.Track, error) {
	input = strings.TrimSpace(input)
	if !isVideoURL(input) {
		return track.Track{}, errors.New("invalid YouTube video URL")
	}
	return s.describe(ctx, CleanVideoURL(input), ""), nil
}

// Search resolves the first search result for query.
func (s *Source) Search(ctx context.Context, query string) (track.Track, error) {
	videoURL, err := s.search.firstVideoURL(ctx, query)
	if err != nil {
		return track.Track{}, fmt.Errorf("could not find YouTube video for %q: %w", query, err)
	}
	return s.describe(ctx, videoURL, query), nil
}

// describe fills in title and duration; the track stays playable when
// metadata lookups fail.
func (s *Source) describe(ctx context.Context, videoURL, fallbackTitle string) track.Track {
	t := track.Track{
		Source:     videoURL,
		URL:        videoURL,
		Title:      fallbackTitle,
		SourceName: Name,
	}

	video, err := s.client.GetVideoContext(ctx, videoURL)
	if err == nil {
		t.Title = video.Title
		t.Duration = video.Duration
		return t
	}
	s.log.Debug().Err(err).Str("url", videoURL).Msg("[YouTube] Metadata lookup failed")

	if s.ytdlp != "" {
		if info, err := probeYTDLP(ctx, s.ytdlp, videoURL); err == nil {
			if info.Title != "" {
				t.Title = info.Title
			}
			t.Duration = info.duration()
		}
	}
	return t
}

// Open resolves a direct audio URL and starts decoding it.
func (s *Source) Open(ctx context.Context, t track.Track) (stream.Source, error) {
	link, kkErr := s.streamURL(ctx, t.Source)
	if kkErr != nil {
		s.log.Warn().Err(kkErr).Str("url", t.Source).Msg("[YouTube] kkdai stream lookup failed")
		if s.ytdlp == "" {
			return nil, kkErr
		}
		info, err := probeYTDLP(ctx, s.ytdlp, t.Source)
		if err != nil {
			return nil, errors.Join(kkErr, err)
		}
		link = info.streamURL()
	}
	return stream.Decode(link, 1)
}

func (s *Source) streamURL(ctx context.Context, videoURL string) (string, error) {
	video, err := s.client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return "", fmt.Errorf("youtube client: %w", err)
	}
	format, ok := bestAudio(video.Formats)
	if !ok {
		return "", errors.New("no audio formats found for video")
	}
	return s.client.GetStreamURLContext(ctx, video, format)
}

// bestAudio prefers audio-only formats, then the highest bitrate.
func bestAudio(formats kkdai.FormatList) (*kkdai.Format, bool) {
	withAudio := formats.WithAudioChannels()
	var best *kkdai.Format
	for i := range withAudio {
		f := &withAudio[i]
		if best == nil || better(f, best) {
			best = f
		}
	}
	return best, best != nil
}

func better(a, b *kkdai.Format) bool {
	aOnly := strings.HasPrefix(a.MimeType, "audio/")
	bOnly := strings.HasPrefix(b.MimeType, "audio/")
	if aOnly != bOnly {
		return aOnly
	}
	return a.Bitrate > b.Bitrate
}

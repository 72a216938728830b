package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/keshon/jukebox/pkg/retrylimit"
)

var (
	videoPattern = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)

	ErrNoVideoMatch = errors.New("no video found for the given query")
)

// searcher scrapes the results page for the first video.
type searcher struct {
	baseURL string
	client  *http.Client
	limiter *retrylimit.AdaptiveLimiter
}

func (s *searcher) firstVideoURL(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", s.baseURL, url.QueryEscape(query))

	var body []byte
	err := retrylimit.WithRetryMax(ctx, func() error {
		b, err := s.fetch(ctx, searchURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, s.limiter, 3)
	if err != nil {
		return "", err
	}

	m := videoPattern.FindSubmatch(body)
	if m == nil {
		return "", ErrNoVideoMatch
	}
	return fmt.Sprintf("%s/watch?v=%s", s.baseURL, m[1]), nil
}

func (s *searcher) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retrylimit.Fatal(err)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &retrylimit.StatusError{Code: resp.StatusCode, URL: target}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retrylimit.Fatal(statusErr)
		}
		return nil, statusErr
	}
	return io.ReadAll(resp.Body)
}

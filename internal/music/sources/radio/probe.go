package radio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/keshon/jukebox/pkg/retrylimit"
)

var streamContentTypes = []string{
	"audio/",
	"video/",
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"application/ogg",
	"application/x-scpls",
	"application/xspf+xml",
	"application/octet-stream",
}

type probeResult struct {
	contentType string
	finalURL    string
	name        string // icy-name header, if the server sends one
}

// probe inspects headers only. Streams never end, so a GET fallback reads
// nothing from the body.
func (s *Source) probe(ctx context.Context, rawURL string) (probeResult, error) {
	resp, err := s.request(ctx, http.MethodHead, rawURL)
	if err != nil || resp.StatusCode >= 400 {
		if resp != nil {
			resp.Body.Close()
		}
		resp, err = s.request(ctx, http.MethodGet, rawURL)
		if err != nil {
			return probeResult{}, err
		}
	}
	defer resp.Body.Close()
	_, _ = io.CopyN(io.Discard, resp.Body, 512)

	if resp.StatusCode >= 400 {
		return probeResult{}, &retrylimit.StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	return probeResult{
		contentType: resp.Header.Get("Content-Type"),
		finalURL:    resp.Request.URL.String(),
		name:        strings.TrimSpace(resp.Header.Get("icy-name")),
	}, nil
}

func (s *Source) request(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Icy-MetaData", "1")
	return s.client.Do(req)
}

func isStreamType(contentType string) bool {
	if i := strings.Index(contentType, ";"); i != -1 {
		contentType = contentType[:i]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	for _, allowed := range streamContentTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

func isPlaylistURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u", ".m3u8", ".pls", ".xspf", ".asx":
		return true
	}
	return false
}

package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

type ytdlpInfo struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	URL      string  `json:"url"`
	Formats  []struct {
		URL       string `json:"url"`
		Fragments []struct {
			Duration float64 `json:"duration"`
		} `json:"fragments,omitempty"`
	} `json:"formats"`
}

// probeYTDLP asks yt-dlp for the best audio stream of videoURL.
func probeYTDLP(ctx context.Context, bin, videoURL string) (ytdlpInfo, error) {
	out, err := exec.CommandContext(ctx, bin, "-j", "-f", "bestaudio", "--no-playlist", videoURL).Output()
	if err != nil {
		return ytdlpInfo{}, fmt.Errorf("yt-dlp: %w", err)
	}
	return parseYTDLP(out)
}

func parseYTDLP(data []byte) (ytdlpInfo, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return ytdlpInfo{}, fmt.Errorf("yt-dlp output: %w", err)
	}
	if info.streamURL() == "" {
		return ytdlpInfo{}, errors.New("yt-dlp returned no stream URL")
	}
	return info, nil
}

func (i ytdlpInfo) streamURL() string {
	if link := strings.TrimSpace(i.URL); link != "" {
		return link
	}
	if len(i.Formats) > 0 {
		return strings.TrimSpace(i.Formats[0].URL)
	}
	return ""
}

// duration falls back to the first fragment when the root duration is missing.
func (i ytdlpInfo) duration() time.Duration {
	d := i.Duration
	if d == 0 && len(i.Formats) > 0 && len(i.Formats[0].Fragments) > 0 {
		d = i.Formats[0].Fragments[0].Duration
	}
	return time.Duration(d * float64(time.Second))
}

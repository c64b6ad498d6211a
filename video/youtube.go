// Package video looks up the duration of hosted videos referenced by story
// slides.
package video

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

var (
	ErrVideoNotFound = errors.New("video not found")
	ErrNotConfigured = errors.New("video lookups are not configured")
)

// DurationProvider returns the running time of a hosted video.
type DurationProvider interface {
	Duration(ctx context.Context, videoID string) (time.Duration, error)
}

var youTubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// youTubePathPrefixes are the youtube.com paths that carry the id as the next
// path segment.
var youTubePathPrefixes = []string{"/shorts/", "/embed/", "/v/", "/live/"}

// YouTubeID extracts the video id from a YouTube link: watch pages on any
// youtube.com host (the v parameter may appear anywhere in the query), shorts,
// embed, live and youtu.be short links. A missing scheme is accepted.
func YouTubeID(rawURL string) (string, bool) {
	raw := strings.TrimSpace(rawURL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	var id string
	switch {
	case host == "youtu.be":
		id, _, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com") ||
		host == "youtube-nocookie.com" || strings.HasSuffix(host, ".youtube-nocookie.com"):
		if u.Path == "/watch" || u.Path == "/watch/" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range youTubePathPrefixes {
			if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
				id, _, _ = strings.Cut(rest, "/")
				break
			}
		}
	default:
		return "", false
	}

	if !youTubeIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// YouTubeProvider resolves durations through the YouTube Data API.
type YouTubeProvider struct {
	svc *youtube.Service
}

func NewYouTubeProvider(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTubeProvider, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &YouTubeProvider{svc: svc}, nil
}

func (p *YouTubeProvider) Duration(ctx context.Context, videoID string) (time.Duration, error) {
	resp, err := p.svc.Videos.List([]string{"contentDetails"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("youtube videos.list %s: %w", videoID, err)
	}
	if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil {
		return 0, fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
	}
	d, err := ParseISODuration(resp.Items[0].ContentDetails.Duration)
	if err != nil {
		return 0, fmt.Errorf("youtube video %s: %w", videoID, err)
	}
	return d, nil
}

// DisabledProvider fails every lookup; used when no API key is configured.
type DisabledProvider struct{}

func (DisabledProvider) Duration(context.Context, string) (time.Duration, error) {
	return 0, ErrNotConfigured
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration parses the ISO-8601 durations the YouTube API returns, such
// as "PT1M5S" or "P1DT2H". Years, months and weeks are not used by the API.
func ParseISODuration(s string) (time.Duration, error) {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", s)
	}

	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		total += time.Duration(n) * unit
	}
	return total, nil
}

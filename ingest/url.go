package ingest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"ewintr.nl/shortscout/model"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
	"www.youtu.be":      true,
}

// ExtractVideoID accepts the usual ways of linking a video: /shorts/ID,
// youtu.be/ID, /watch?v=ID, /embed/ID and any youtube url carrying a v
// parameter.
func ExtractVideoID(raw string) (model.YoutubeVideoID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ValidationError{Field: "url", Reason: "empty"}
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &ValidationError{Field: "url", Value: raw, Reason: "unparseable", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &ValidationError{Field: "url", Value: raw, Reason: fmt.Sprintf("scheme %q not supported", u.Scheme)}
	}
	host := strings.ToLower(u.Hostname())
	if !youtubeHosts[host] {
		return "", &ValidationError{Field: "url", Value: raw, Reason: "not a youtube url"}
	}

	var candidate string
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case strings.HasSuffix(host, "youtu.be"):
		candidate = segments[0]
	case len(segments) >= 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live"):
		candidate = segments[1]
	default:
		candidate = u.Query().Get("v")
	}

	if !videoIDPattern.MatchString(candidate) {
		return "", &ValidationError{Field: "url", Value: raw, Reason: "no video id found"}
	}

	return model.YoutubeVideoID(candidate), nil
}

func NormalizeURL(raw string) (string, error) {
	id, err := ExtractVideoID(raw)
	if err != nil {
		return "", err
	}
	return model.ShortsURL(id), nil
}

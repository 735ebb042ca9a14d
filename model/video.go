package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type VideoStatus string

const (
	StatusPending    VideoStatus = "pending"
	StatusAnalyzed   VideoStatus = "analyzed"
	StatusClassified VideoStatus = "classified"
	StatusScheduled  VideoStatus = "scheduled"
	StatusPublished  VideoStatus = "published"
	StatusFailed     VideoStatus = "failed"
)

var Statuses = []VideoStatus{StatusPending, StatusAnalyzed, StatusClassified, StatusScheduled, StatusPublished, StatusFailed}

var nextStatus = map[VideoStatus]VideoStatus{
	StatusPending:    StatusAnalyzed,
	StatusAnalyzed:   StatusClassified,
	StatusClassified: StatusScheduled,
	StatusScheduled:  StatusPublished,
}

func ParseStatus(s string) (VideoStatus, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// CanTransition reports whether a record may move from one status to another.
// Statuses only move forward one step at a time. Any state may fail, and
// failed is terminal.
func CanTransition(from, to VideoStatus) bool {
	if to == StatusFailed {
		return from != StatusFailed
	}
	next, ok := nextStatus[from]
	return ok && next == to
}

type Source string

const (
	SourceAuto   Source = "auto"
	SourceManual Source = "manual"
	SourceBatch  Source = "batch"
)

type YoutubeVideoID string

type Video struct {
	ID              uuid.UUID      `json:"id"`
	VideoID         YoutubeVideoID `json:"video_id"`
	URL             string         `json:"url"`
	Title           string         `json:"title"`
	Channel         string         `json:"channel"`
	CategoryID      string         `json:"category_id"`
	RegionCode      string         `json:"region_code"`
	ViewCount       int64          `json:"view_count"`
	LikeCount       int64          `json:"like_count"`
	DurationSeconds int            `json:"duration_seconds"`
	PublishedAt     time.Time      `json:"published_at"`
	DiscoveredAt    time.Time      `json:"discovered_at"`
	Velocity        float64        `json:"velocity"`
	Source          Source         `json:"source"`
	Status          VideoStatus    `json:"status"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func ShortsURL(id YoutubeVideoID) string {
	return fmt.Sprintf("https://www.youtube.com/shorts/%s", id)
}

package rank

import (
	"math"
	"slices"
	"strings"
	"time"

	"ewintr.nl/shortscout/model"
)

const DefaultAgeFloorHours = 1.0

// VPH is views per hour, with the age held at or above floor so a video
// published seconds ago does not blow up.
func VPH(views int64, ageHours, floor float64) float64 {
	return float64(views) / math.Max(ageHours, floor)
}

func Velocity(views int64, publishedAt, at time.Time, floor float64) float64 {
	return VPH(views, at.Sub(publishedAt).Hours(), floor)
}

// Sort orders records by velocity, then views, then the most recent publish
// time, then video id. The order is total, so equal input always sorts the
// same way.
func Sort(videos []*model.Video) {
	slices.SortStableFunc(videos, compare)
}

func compare(a, b *model.Video) int {
	switch {
	case a.Velocity > b.Velocity:
		return -1
	case a.Velocity < b.Velocity:
		return 1
	case a.ViewCount > b.ViewCount:
		return -1
	case a.ViewCount < b.ViewCount:
		return 1
	case a.PublishedAt.After(b.PublishedAt):
		return -1
	case a.PublishedAt.Before(b.PublishedAt):
		return 1
	}

	return strings.Compare(string(a.VideoID), string(b.VideoID))
}

package filter

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

var isoDuration = regexp.MustCompile(`^P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseDuration converts the ISO 8601 duration the platform reports
// ("PT1M2S", "P0D") into whole seconds.
func ParseDuration(s string) (int, error) {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" || s[len(s)-1] == 'T' {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	total := 0
	for i, unit := range []int{7 * 24 * 3600, 24 * 3600, 3600, 60, 1} {
		part := m[i+1]
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if n > (math.MaxInt-total)/unit {
			return 0, fmt.Errorf("invalid duration %q: out of range", s)
		}
		total += n * unit
	}

	return total, nil
}

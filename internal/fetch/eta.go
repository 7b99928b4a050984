package fetch

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ParseETA converts a provider's free-text delivery estimate into a
// duration. Providers report strings like "12 min", "15-20 mins" or
// "1 hr"; the leading number is taken, ranges use their lower bound.
// Parsing happens here, at the ingestion boundary, so the aggregator
// only compares structured durations.
func ParseETA(s string) (time.Duration, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty ETA")
	}

	i := 0
	for i < len(trimmed) && unicode.IsDigit(rune(trimmed[i])) {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("ETA %q has no leading number", s)
	}

	var n int
	for _, r := range trimmed[:i] {
		n = n*10 + int(r-'0')
	}

	rest := strings.ToLower(trimmed[i:])
	if strings.Contains(rest, "hr") || strings.Contains(rest, "hour") {
		return time.Duration(n) * time.Hour, nil
	}
	return time.Duration(n) * time.Minute, nil
}

// Package durationutil parses the duration strings used throughout the
// YAML config: anything time.ParseDuration accepts, plus a "d" (days)
// suffix that stdlib does not. Grounded on config.py's parse_duration,
// reimplemented on top of time.ParseDuration rather than its hand-rolled
// regex, since the stdlib parser already accepts s/m/h and composite
// forms like "1h30m".
package durationutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parse parses s as a duration. A bare integer with a trailing "d" is
// treated as that many 24-hour days; everything else is delegated to
// time.ParseDuration.
func Parse(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("durationutil: invalid day count in %q: %w", s, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("durationutil: %w", err)
	}
	return d, nil
}

package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// MarshalledDuration is a time.Duration that can be read from JSON config files and environment variables. On top
// of the units understood by time.ParseDuration, it accepts days (d) and weeks (w).
type MarshalledDuration time.Duration

var durationRegex = regexp.MustCompile(`^(?:(\d+)w)? ?(?:(\d+)d)? ?(?:(\d+)h)? ?(?:(\d+)m)? ?(?:(\d+)s)? ?(?:(\d+)ms)?$`)

// Units in the same order as the capture groups of durationRegex
var durationUnits = []time.Duration{
	7 * 24 * time.Hour,
	24 * time.Hour,
	time.Hour,
	time.Minute,
	time.Second,
	time.Millisecond,
}

func (d MarshalledDuration) Duration() time.Duration {
	return time.Duration(d)
}

func (d MarshalledDuration) String() string {
	return time.Duration(d).String()
}

func (d MarshalledDuration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

func (d *MarshalledDuration) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("invalid duration: missing quotes")
	}

	return d.UnmarshalText(data[1 : len(data)-1])
}

func (d *MarshalledDuration) UnmarshalText(text []byte) error {
	duration, err := ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = MarshalledDuration(duration)
	return nil
}

// ParseDuration parses strings such as "1w 2d", "90s" or "1h30m". Anything time.ParseDuration understands is
// accepted as a fallback, so "1.5h" and "250us" also work.
func ParseDuration(s string) (time.Duration, error) {
	if s == "0" {
		return 0, nil
	}

	if s == "" {
		return 0, errors.New("invalid duration: empty string")
	}

	groups := durationRegex.FindStringSubmatch(s)
	if groups == nil {
		duration, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}

		return duration, nil
	}

	var duration time.Duration
	for i, unit := range durationUnits {
		group := groups[i+1]
		if group == "" {
			continue
		}

		n, err := strconv.Atoi(group)
		if err != nil {
			return 0, err
		}

		duration += time.Duration(n) * unit
	}

	return duration, nil
}

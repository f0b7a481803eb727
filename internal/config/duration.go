package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

var durationUnits = map[string]time.Duration{
	"ns": time.Nanosecond, "nsec": time.Nanosecond,
	"us": time.Microsecond, "usec": time.Microsecond,
	"ms": time.Millisecond, "msec": time.Millisecond,
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": day, "day": day, "days": day,
	"w": week, "week": week, "weeks": week,
}

// ParseDuration accepts human durations such as "125s", "2m 5s", "1h30m"
// or "1d". Every number needs a unit. Whitespace between terms is ignored.
func ParseDuration(s string) (time.Duration, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var total time.Duration
	rest := in
	for rest != "" {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if rest == "" {
			break
		}

		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 0 {
			return 0, fmt.Errorf("invalid duration %q: expected number at %q", in, rest)
		}
		n, err := strconv.ParseInt(rest[:i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", in, err)
		}
		rest = strings.TrimLeftFunc(rest[i:], unicode.IsSpace)

		j := 0
		for j < len(rest) && unicode.IsLetter(rune(rest[j])) {
			j++
		}
		unitName := rest[:j]
		if unitName == "" {
			return 0, fmt.Errorf("invalid duration %q: missing unit after %d", in, n)
		}
		unit, ok := durationUnits[strings.ToLower(unitName)]
		if !ok {
			return 0, fmt.Errorf("invalid duration %q: unknown unit %q", in, unitName)
		}
		if n > int64((1<<63-1)/unit) {
			return 0, fmt.Errorf("invalid duration %q: overflow", in)
		}
		total += time.Duration(n) * unit
		if total < 0 {
			return 0, fmt.Errorf("invalid duration %q: overflow", in)
		}
		rest = rest[j:]
	}
	return total, nil
}

// FormatDuration renders d as space separated terms, e.g. "2m 5s" or "1d 3h".
// Sub-second remainders are dropped unless d is shorter than a second.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "-" + FormatDuration(-d)
	}
	if d < time.Second {
		if d == 0 {
			return "0s"
		}
		return d.String()
	}

	var parts []string
	for _, u := range []struct {
		unit time.Duration
		name string
	}{
		{day, "d"}, {time.Hour, "h"}, {time.Minute, "m"}, {time.Second, "s"},
	} {
		if n := d / u.unit; n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", n, u.name))
			d -= n * u.unit
		}
	}
	return strings.Join(parts, " ")
}

// Duration is a time.Duration written in human form in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return FormatDuration(time.Duration(d))
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"25m\": %w", node.Line, err)
	}
	parsed, err := ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

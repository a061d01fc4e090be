// Package duration parses human-friendly duration strings. It extends Go's
// standard duration syntax with day ("d") and week ("w") units and accepts a
// bare number as seconds, which keeps CLI trim flags forgiving:
//
//	"90"      -> 1m30s
//	"1m30s"   -> 1m30s
//	"2d12h"   -> 60h
//	"1w"      -> 168h
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Day is 24 hours.
	Day = 24 * time.Hour
	// Week is 7 days.
	Week = 7 * Day
)

// extendedUnit matches a number followed by "d" or "w".
var extendedUnit = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*([dw])`)

// bareNumber matches a plain integer or float with no unit.
var bareNumber = regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)?$`)

// Parse parses a duration string, accepting standard Go syntax plus day and
// week units and bare numbers of seconds.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if bareNumber.MatchString(s) {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}

	// Rewrite day/week units into hours so time.ParseDuration can finish the job.
	var rewriteErr error
	rewritten := extendedUnit.ReplaceAllStringFunc(s, func(match string) string {
		parts := extendedUnit.FindStringSubmatch(match)
		value, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			rewriteErr = fmt.Errorf("invalid duration %q: %w", s, err)
			return match
		}
		switch strings.ToLower(parts[2]) {
		case "d":
			return fmt.Sprintf("%gh", value*24)
		case "w":
			return fmt.Sprintf("%gh", value*24*7)
		}
		return match
	})
	if rewriteErr != nil {
		return 0, rewriteErr
	}

	d, err := time.ParseDuration(rewritten)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// Micros converts a duration to integer microseconds, the timestamp unit used
// throughout the export pipeline.
func Micros(d time.Duration) int64 {
	return d.Microseconds()
}

// FromMicros converts microseconds back into a time.Duration.
func FromMicros(micros int64) time.Duration {
	return time.Duration(micros) * time.Microsecond
}

// Format renders a duration with the extended units, largest first, omitting
// zero components. The inverse of Parse for whole-second values.
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	negative := d < 0
	if negative {
		d = -d
	}

	var result strings.Builder

	weeks := d / Week
	d -= weeks * Week
	days := d / Day
	d -= days * Day
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second

	if weeks > 0 {
		fmt.Fprintf(&result, "%dw", weeks)
	}
	if days > 0 {
		fmt.Fprintf(&result, "%dd", days)
	}
	if hours > 0 {
		fmt.Fprintf(&result, "%dh", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&result, "%dm", minutes)
	}
	if seconds > 0 {
		fmt.Fprintf(&result, "%ds", seconds)
	}
	if d > 0 {
		if d >= time.Millisecond {
			ms := d / time.Millisecond
			d -= ms * time.Millisecond
			fmt.Fprintf(&result, "%dms", ms)
		}
		if d >= time.Microsecond {
			us := d / time.Microsecond
			d -= us * time.Microsecond
			fmt.Fprintf(&result, "%dµs", us)
		}
		if d > 0 {
			fmt.Fprintf(&result, "%dns", int64(d))
		}
	}

	if result.Len() == 0 {
		return "0s"
	}
	if negative {
		return "-" + result.String()
	}
	return result.String()
}

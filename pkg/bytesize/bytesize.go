// Package bytesize provides human-readable byte size parsing and formatting.
// It accepts common size units (B, KB, MB, GB, TB) using the binary (1024)
// base, with or without the explicit "i" infix (KiB, MiB, ...). A bare number
// is interpreted as bytes.
package bytesize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Size represents a byte size as int64.
type Size int64

// Common size constants using binary (1024) base.
const (
	B  Size = 1
	KB Size = 1024
	MB Size = 1024 * KB
	GB Size = 1024 * MB
	TB Size = 1024 * GB
)

// unitMultipliers maps lowercase unit names to their byte multiplier.
var unitMultipliers = map[string]Size{
	"":      B,
	"b":     B,
	"byte":  B,
	"bytes": B,
	"k":     KB,
	"kb":    KB,
	"kib":   KB,
	"m":     MB,
	"mb":    MB,
	"mib":   MB,
	"g":     GB,
	"gb":    GB,
	"gib":   GB,
	"t":     TB,
	"tb":    TB,
	"tib":   TB,
}

// sizePattern matches a number (int or float) followed by an optional unit.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-z]*)\s*$`)

// Parse parses a human-readable byte size string such as "5MB", "1.5 GB" or
// "1024". If no unit is given, bytes are assumed.
func Parse(s string) (Size, error) {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	mult, ok := unitMultipliers[strings.ToLower(m[2])]
	if !ok {
		return 0, fmt.Errorf("invalid size unit %q in %q", m[2], s)
	}

	return Size(value * float64(mult)), nil
}

// String returns the size in the largest unit that divides it cleanly,
// falling back to a one-decimal representation.
func (s Size) String() string {
	switch {
	case s >= TB && s%TB == 0:
		return fmt.Sprintf("%dTB", s/TB)
	case s >= GB && s%GB == 0:
		return fmt.Sprintf("%dGB", s/GB)
	case s >= MB && s%MB == 0:
		return fmt.Sprintf("%dMB", s/MB)
	case s >= KB && s%KB == 0:
		return fmt.Sprintf("%dKB", s/KB)
	default:
		return Format(int64(s))
	}
}

// Format renders a raw byte count in the most readable unit with one decimal
// of precision. Intended for log output and size estimates shown to users.
func Format(bytes int64) string {
	size := Size(bytes)
	switch {
	case size >= TB:
		return fmt.Sprintf("%.1fTB", float64(size)/float64(TB))
	case size >= GB:
		return fmt.Sprintf("%.1fGB", float64(size)/float64(GB))
	case size >= MB:
		return fmt.Sprintf("%.1fMB", float64(size)/float64(MB))
	case size >= KB:
		return fmt.Sprintf("%.1fKB", float64(size)/float64(KB))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

// Int64 returns the size as a raw byte count.
func (s Size) Int64() int64 {
	return int64(s)
}

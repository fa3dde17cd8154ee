// Package util holds helpers for decoding host command arguments.
package util

import (
	"strconv"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg strips the host's quoting from one argument.
func CleanArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(strings.TrimSpace(s)))
}

// ParseStringArray parses a stringified host array of quoted strings such as
// ["F","LShift"]. A bare value without brackets is returned as a single
// element; an empty array yields nil.
func ParseStringArray(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if s[0] != '[' || s[len(s)-1] != ']' {
		return []string{CleanArg(s)}
	}

	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(inner, ",") {
		if v := CleanArg(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ParseSeconds parses a host clock value in seconds.
func ParseSeconds(s string) (float64, error) {
	return strconv.ParseFloat(CleanArg(s), 64)
}

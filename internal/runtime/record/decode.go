// Package record turns raw upstream payloads into the flat, fixed-schema
// records that are fanned out to subscribers.
//
// Decoding is best-effort by contract: a payload is newline-separated
// key=value text of unknown quality, and a malformed line is skipped rather
// than failing the whole event. Consumers rely on this, so Decode never
// returns an error.
package record

import "strings"

// Decode parses a newline-separated key=value payload into a map keyed by
// flattened field names (see FlattenKey).
//
// Each line is split on its first "=" only, so values may contain "=". Lines
// without "=" and lines with an empty key are skipped. "FOO=" is kept with an
// empty value. When a key repeats, the last occurrence wins.
func Decode(payload string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(payload, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			continue
		}
		out[FlattenKey(key)] = value
	}
	return out
}

// FlattenKey converts an upstream field path into a schema-compatible key:
// every "." becomes "_" and a trailing "(N)" integer group becomes "_N", so
// "FOO.BAR(12)" becomes "FOO_BAR_12". FlattenKey is idempotent.
func FlattenKey(key string) string {
	key = strings.ReplaceAll(key, ".", "_")

	if !strings.HasSuffix(key, ")") {
		return key
	}
	open := strings.LastIndexByte(key, '(')
	if open < 0 {
		return key
	}
	digits := key[open+1 : len(key)-1]
	if digits == "" || !isDigits(digits) {
		return key
	}
	return key[:open] + "_" + digits
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

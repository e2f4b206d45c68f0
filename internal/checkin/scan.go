package checkin

import "strings"

// ScanKind tags what shape a scanned or typed value appears to have.
type ScanKind int

const (
	// ScanCode is a short human-readable ticket code.
	ScanCode ScanKind = iota
	// ScanIdentifier is a full ticket identifier (UUID).
	ScanIdentifier
)

// ParseScan normalizes raw scanner input and classifies it. A 36-character
// string with five hyphen-separated groups is treated as a ticket
// identifier, anything else as a ticket code. This is a heuristic, not a
// guarantee: a caller that knows it holds an identifier should pass it
// through unchanged and it will classify correctly. Empty input yields ok
// false.
func ParseScan(raw string) (value string, kind ScanKind, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ScanCode, false
	}

	if len(trimmed) == 36 && len(strings.Split(trimmed, "-")) == 5 {
		// Identifiers are stored lowercase.
		return strings.ToLower(trimmed), ScanIdentifier, true
	}
	return strings.ToUpper(trimmed), ScanCode, true
}

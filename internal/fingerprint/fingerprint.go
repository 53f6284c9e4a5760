// Package fingerprint derives stable device identifiers from client-supplied
// browser signals. The digest is the basis for recognizing a returning guest
// on the same device, so it must be fully deterministic: same inputs, same
// output, independent of time, randomness, or map iteration order.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// delimiter separates signals before hashing. Using an explicit separator
// keeps ("ab","c") and ("a","bc") from colliding.
const delimiter = "|"

// Signals holds the raw client signals that feed the digest.
// Any field may be empty; empty values are hashed like any other value
// rather than being special-cased.
type Signals struct {
	UserAgent        string
	ScreenResolution string
	TimezoneOffset   string
	Languages        string
	CanvasHash       string
}

// HasClientSignal reports whether any of the browser-supplied fields is set.
// The user agent alone doesn't count: it is populated by the transport layer
// for every request and would turn every signal-less client into a
// fingerprinted one, defeating the IP-window fallback.
func (s Signals) HasClientSignal() bool {
	return s.ScreenResolution != "" || s.TimezoneOffset != "" ||
		s.Languages != "" || s.CanvasHash != ""
}

// Compute returns the hex-encoded SHA-256 digest of the signals.
// Two invocations with identical inputs always produce identical output.
func Compute(s Signals) string {
	var b strings.Builder
	b.WriteString(s.UserAgent)
	b.WriteString(delimiter)
	b.WriteString(s.ScreenResolution)
	b.WriteString(delimiter)
	b.WriteString(s.TimezoneOffset)
	b.WriteString(delimiter)
	b.WriteString(s.Languages)
	b.WriteString(delimiter)
	b.WriteString(s.CanvasHash)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

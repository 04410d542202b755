package message

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Split breaks text into chunks of at most maxBytes UTF-8 bytes.
//
// Every line ("\n" or "\r\n" separated) is split on its own. A chunk is cut at
// the last space found in the second half of the byte-safe prefix, otherwise
// at the prefix end; chunk boundaries never fall inside a code point. A single
// code point wider than maxBytes is emitted alone. Empty chunks are dropped.
//
// A non-positive maxBytes disables splitting.
func Split(text string, maxBytes int) []string {
	if text == "" {
		return nil
	}
	if maxBytes <= 0 {
		return []string{text}
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	chunks := make([]string, 0, len(lines))

	for _, line := range lines {
		for len(line) > maxBytes {
			chunk, rest := cutLine(line, maxBytes)
			if len(rest) >= len(line) {
				_, size := utf8.DecodeRuneInString(line)
				chunk, rest = line[:size], line[size:]
			}

			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			line = rest
		}

		if line != "" {
			chunks = append(chunks, line)
		}
	}

	return chunks
}

// cutLine expects len(line) > maxBytes.
func cutLine(line string, maxBytes int) (string, string) {
	cut := runeBoundary(line, maxBytes)

	// line[cut] is checked too: a space right after the prefix is a word boundary.
	if sp := strings.LastIndexByte(line[:cut+1], ' '); sp > 0 && 2*sp >= cut {
		cut = sp
	}

	return strings.TrimRightFunc(line[:cut], unicode.IsSpace), strings.TrimLeftFunc(line[cut:], unicode.IsSpace)
}

// runeBoundary returns the largest n' <= n such that s[:n'] ends on a code point boundary.
func runeBoundary(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

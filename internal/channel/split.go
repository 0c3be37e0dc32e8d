package channel

import (
	"strings"
	"unicode/utf8"
)

// splitMessage splits a message into chunks of at most maxLen bytes,
// preferring newline boundaries in the second half of a chunk. Cuts never
// fall inside a UTF-8 sequence.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}

		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		if cut == 0 {
			// maxLen is smaller than the leading rune.
			_, cut = utf8.DecodeRuneInString(msg)
		}

		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}

package payload

import "unicode/utf8"

const ellipsis = "..."

// TruncateMessages returns a copy of p whose commit messages are at most
// maxBytes long. Cuts land on rune boundaries and end with "...".
// The delivery engine never truncates; producers call this before handoff.
func TruncateMessages(p Payload, maxBytes int) Payload {
	if maxBytes <= 0 || len(p.Commits) == 0 {
		return p
	}
	commits := make([]Commit, len(p.Commits))
	for i, c := range p.Commits {
		c.Message = Truncate(c.Message, maxBytes)
		commits[i] = c
	}
	p.Commits = commits
	return p
}

// Truncate shortens s to at most maxBytes bytes.
func Truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	if maxBytes <= len(ellipsis) {
		return cut(s, maxBytes)
	}
	return cut(s, maxBytes-len(ellipsis)) + ellipsis
}

func cut(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

package extract

import (
	"regexp"
	"strings"
)

// lineBreakRunPattern matches a run of line breaks (CRLF, CR, LF, and the
// Unicode line/paragraph separators) together with the spaces and tabs
// around it.
var lineBreakRunPattern = regexp.MustCompile(`[ \t]*(?:(?:\r\n|[\r\n\x{2028}\x{2029}])[ \t]*)+`)

// Normalize rewrites content so that every key it contains starts its own
// line. Existing line breaks are collapsed to single spaces first, so the
// output only carries the line structure implied by the keys.
//
// A line break is never inserted where collapsing it back into a space would
// complete a key, so for keys without leading or trailing whitespace
// normalizing already normalized content returns it unchanged.
func Normalize(content string, keys []string) (string, error) {
	if err := Validate(content, keys); err != nil {
		return "", err
	}
	return normalize(content, keys), nil
}

func normalize(content string, keys []string) string {
	content = collapseLineBreaks(content)

	// Offsets are re-resolved after every insertion, so keys declared
	// earlier decide the boundaries later keys are resolved against.
	for _, key := range keys {
		offset := Locate(content, keys, key)
		if offset < 0 {
			continue
		}

		// The boundary after the key is inserted first so that offset
		// stays valid for the second insertion.
		if next, ok := nextKeyStart(content, keys, offset+len(key)); ok {
			content = safeBreakBefore(content, keys, next)
		}
		content = safeBreakBefore(content, keys, offset)
	}

	// Every remaining occurrence, repeated keys included, starts a line.
	// Right to left keeps the earlier span offsets valid.
	spans := keySpans(content, keys)
	for i := len(spans) - 1; i >= 0; i-- {
		content = safeBreakBefore(content, keys, spans[i].Start)
	}

	return content
}

// safeBreakBefore is breakBefore, except that it leaves content alone when
// the break, read back as a space, would form an occurrence of a key across
// it ("WorkEmail" must not turn into "Work Email").
func safeBreakBefore(content string, keys []string, pos int) string {
	head := strings.TrimRight(content[:pos], " \t")
	if head == "" || strings.HasSuffix(head, "\n") {
		return content
	}
	if joinsKey(head, content[pos:], keys) {
		return content
	}
	return breakBefore(content, pos)
}

// joinsKey reports whether some key occurs across the space in
// head + " " + tail.
func joinsKey(head, tail string, keys []string) bool {
	joined := head + " " + tail
	at := len(head)
	for _, key := range keys {
		if key == "" {
			continue
		}
		lo := max(0, at-len(key)+1)
		hi := min(len(joined), at+len(key))
		if lo < hi && strings.Contains(joined[lo:hi], key) {
			return true
		}
	}
	return false
}

// collapseLineBreaks replaces every line break run with a single space.
func collapseLineBreaks(content string) string {
	return lineBreakRunPattern.ReplaceAllString(content, " ")
}

// breakBefore inserts a line break at pos, dropping the spaces and tabs that
// precede it. Nothing is inserted when pos already starts the content or a
// line.
func breakBefore(content string, pos int) string {
	head := strings.TrimRight(content[:pos], " \t")
	if head == "" || strings.HasSuffix(head, "\n") {
		return content
	}
	return head + "\n" + content[pos:]
}

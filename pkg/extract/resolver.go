package extract

import (
	"sort"
	"strings"
)

// keySpan is one claimed occurrence of a key in the content.
type keySpan struct {
	Key   string
	Start int
	End   int
}

// Locate returns the byte offset of searchKey's true occurrence in content,
// or -1 if it has none.
//
// A key that no other key contains is found by plain substring search. A key
// nested inside other keys (e.g. "Name" in "Zip Name") only matches where
// the surrounding text is not an occurrence of one of those longer keys.
func Locate(content string, keys []string, searchKey string) int {
	if searchKey == "" {
		return -1
	}

	if !isNested(keys, searchKey) {
		return strings.Index(content, searchKey)
	}

	if !containsKey(keys, searchKey) {
		keys = append(keys[:len(keys):len(keys)], searchKey)
	}

	for _, span := range keySpans(content, keys) {
		if span.Key == searchKey {
			return span.Start
		}
	}
	return -1
}

// isNested reports whether any other key contains searchKey.
func isNested(keys []string, searchKey string) bool {
	for _, key := range keys {
		if key != searchKey && strings.Contains(key, searchKey) {
			return true
		}
	}
	return false
}

// keySpans tokenizes content into key occurrences. Keys claim text longest
// first, leftmost first, and a key can never claim bytes already claimed by
// a longer key. The spans are returned in content order.
func keySpans(content string, keys []string) []keySpan {
	claimed := make([]bool, len(content))
	var spans []keySpan

	for _, key := range longestFirst(keys) {
		if key == "" {
			continue
		}

		for from := 0; from+len(key) <= len(content); {
			idx := strings.Index(content[from:], key)
			if idx < 0 {
				break
			}

			start := from + idx
			end := start + len(key)
			if anyClaimed(claimed[start:end]) {
				from = start + 1
				continue
			}

			for i := start; i < end; i++ {
				claimed[i] = true
			}
			spans = append(spans, keySpan{Key: key, Start: start, End: end})
			from = end
		}
	}

	sort.Slice(spans, func(i, j int) bool {
		return spans[i].Start < spans[j].Start
	})
	return spans
}

// nextKeyStart returns the start of the first key span at or after from.
func nextKeyStart(content string, keys []string, from int) (int, bool) {
	for _, span := range keySpans(content, keys) {
		if span.Start >= from {
			return span.Start, true
		}
	}
	return 0, false
}

// longestFirst returns a copy of keys ordered by descending length. Keys of
// equal length keep their key-set order.
func longestFirst(keys []string) []string {
	ordered := make([]string, len(keys))
	copy(ordered, keys)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i]) > len(ordered[j])
	})
	return ordered
}

func anyClaimed(claimed []bool) bool {
	for _, c := range claimed {
		if c {
			return true
		}
	}
	return false
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func containsAnyKey(line string, keys []string) bool {
	for _, key := range keys {
		if key != "" && strings.Contains(line, key) {
			return true
		}
	}
	return false
}

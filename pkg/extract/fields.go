// Package extract maps known field labels ("keys") to their values in loosely
// structured text such as form-submission notification emails.
//
// Labels and values in such text often run together on a single line, wrap
// across lines, or nest inside one another ("Name" inside "Zip Name" inside
// "City Zip Name"). Fields resolves every key's true occurrence, puts each
// key on its own line and reads the value that follows it.
package extract

import (
	"strings"
)

// continuationSeparator joins value text gathered from continuation lines.
const continuationSeparator = " | "

// Fields extracts the value of every key found in content. Keys that do not
// occur are absent from the result; a key with nothing after it maps to "".
// When a key occurs more than once, its last occurrence wins.
//
// Fields fails with a *ValidationError when content is blank or the key set
// is empty, contains a blank key, or contains duplicates.
func Fields(content string, keys []string) (map[string]string, error) {
	if err := Validate(content, keys); err != nil {
		return nil, err
	}
	return fields(content, keys), nil
}

func fields(content string, keys []string) map[string]string {
	lines := strings.Split(normalize(content, keys), "\n")
	ordered := longestFirst(keys)
	result := make(map[string]string)

	for i, line := range lines {
		trimmedLine := strings.TrimSpace(line)

		// Longer keys are tried first so "First Name" wins over "First".
		for _, key := range ordered {
			if !strings.HasPrefix(trimmedLine, key) {
				continue
			}

			value := strings.TrimSpace(trimmedLine[len(key):])
			if more := continuation(lines[i+1:], keys); more != "" {
				value = strings.TrimSpace(value + " " + more)
			}

			result[key] = value
			break
		}
	}

	return result
}

// continuation gathers the non-blank lines that follow a matched key up to
// the first line containing any key.
func continuation(lines []string, keys []string) string {
	var parts []string
	for _, line := range lines {
		if containsAnyKey(line, keys) {
			break
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Trim(strings.Join(parts, continuationSeparator), " |")
}

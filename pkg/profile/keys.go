package profile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseKeyList reads a key set typed by a person or a model. A value that
// starts with "[" is a JSON array of strings and is repaired if malformed
// (single quotes, trailing commas, missing brackets). Anything else holds one
// key per line. Blank lines are dropped; the keys themselves are not trimmed.
func ParseKeyList(s string) ([]string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, nil
	}

	if !strings.HasPrefix(trimmed, "[") {
		var keys []string
		for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
			if strings.TrimSpace(line) != "" {
				keys = append(keys, line)
			}
		}
		return keys, nil
	}

	var keys []string
	if err := json.Unmarshal([]byte(trimmed), &keys); err == nil {
		return keys, nil
	}

	repaired, err := jsonrepair.JSONRepair(trimmed)
	if err != nil {
		return nil, fmt.Errorf("repairing key list: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &keys); err != nil {
		return nil, fmt.Errorf("parsing key list: %w", err)
	}
	return keys, nil
}

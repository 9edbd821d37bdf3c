package extract

import (
	"errors"
	"fmt"
	"strings"
)

// Input errors reported by every entry point before any parsing work.
var (
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrEmptyKeySet  = errors.New("keys cannot be empty")
	ErrBlankKey     = errors.New("keys cannot contain blank entries")
	ErrDuplicateKey = errors.New("duplicate key")
)

// ValidationError describes which input failed validation. It unwraps to one
// of the sentinel errors above.
type ValidationError struct {
	Err   error
	Index int    // position in the key set, -1 for content errors
	Key   string // offending key, if any
}

func (e *ValidationError) Error() string {
	switch {
	case e.Index < 0:
		return e.Err.Error()
	case e.Key == "":
		return fmt.Sprintf("%v (index %d)", e.Err, e.Index)
	default:
		return fmt.Sprintf("%v %q (index %d)", e.Err, e.Key, e.Index)
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks content and keys the same way Fields and Normalize do.
func Validate(content string, keys []string) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Err: ErrEmptyContent, Index: -1}
	}
	return ValidateKeys(keys)
}

// ValidateKeys checks the key set on its own. Profiles use it to reject
// unusable key sets at load time.
func ValidateKeys(keys []string) error {
	if len(keys) == 0 {
		return &ValidationError{Err: ErrEmptyKeySet, Index: -1}
	}

	for i, key := range keys {
		if strings.TrimSpace(key) == "" {
			return &ValidationError{Err: ErrBlankKey, Index: i}
		}
	}

	seen := make(map[string]struct{}, len(keys))
	for i, key := range keys {
		if _, ok := seen[key]; ok {
			return &ValidationError{Err: ErrDuplicateKey, Index: i, Key: key}
		}
		seen[key] = struct{}{}
	}

	return nil
}

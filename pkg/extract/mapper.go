package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/coolbeans/fieldmap/pkg/htmltext"
)

// Config controls the pre-processing a Mapper applies before extraction.
type Config struct {
	// NormalizeHTML converts the content from HTML to text first. Leave it
	// off for plain-text bodies that contain angle brackets, such as
	// "Test Name <test@email.com>".
	NormalizeHTML bool `yaml:"normalize_html" json:"normalize_html"`

	// HTMLMode selects the HTML conversion when NormalizeHTML is set.
	HTMLMode htmltext.Mode `yaml:"html_mode,omitempty" json:"html_mode,omitempty"`

	// CollapseWideWhitespace turns runs of five or more whitespace
	// characters into a line break.
	CollapseWideWhitespace bool `yaml:"collapse_whitespace" json:"collapse_whitespace"`
}

// DefaultConfig enables HTML normalization (as text) and wide whitespace
// collapsing.
func DefaultConfig() Config {
	return Config{
		NormalizeHTML:          true,
		HTMLMode:               htmltext.ModeText,
		CollapseWideWhitespace: true,
	}
}

// Field is a single extracted key/value pair.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Ordered returns the entries of result in key-set order, skipping keys
// that were not found.
func Ordered(result map[string]string, keys []string) []Field {
	fields := make([]Field, 0, len(result))
	for _, key := range keys {
		if value, ok := result[key]; ok {
			fields = append(fields, Field{Key: key, Value: value})
		}
	}
	return fields
}

// HTMLConverter turns an HTML document into text.
type HTMLConverter func(document string, mode htmltext.Mode) (string, error)

// Mapper runs the configured pre-processing and then extracts fields.
// A Mapper is immutable and safe for concurrent use.
type Mapper struct {
	config      Config
	logger      *slog.Logger
	convertHTML HTMLConverter
}

// MapperOption customizes a Mapper.
type MapperOption func(*Mapper)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) MapperOption {
	return func(m *Mapper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHTMLConverter replaces the HTML conversion step.
func WithHTMLConverter(fn HTMLConverter) MapperOption {
	return func(m *Mapper) {
		if fn != nil {
			m.convertHTML = fn
		}
	}
}

// NewMapper creates a Mapper with the given configuration.
func NewMapper(cfg Config, opts ...MapperOption) *Mapper {
	m := &Mapper{
		config:      cfg,
		logger:      slog.New(slog.DiscardHandler),
		convertHTML: htmltext.Convert,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the mapper's configuration.
func (m *Mapper) Config() Config {
	return m.config
}

// Prepare applies the configured pre-processing to content.
func (m *Mapper) Prepare(content string) (string, error) {
	if m.config.NormalizeHTML {
		text, err := m.convertHTML(content, m.config.HTMLMode)
		if err != nil {
			return "", fmt.Errorf("normalizing HTML: %w", err)
		}
		content = text
	}

	if m.config.CollapseWideWhitespace {
		content = htmltext.CollapseWideWhitespace(content)
	}

	return content, nil
}

// Preview returns the normalized text Map would scan, one key per line.
func (m *Mapper) Preview(content string, keys []string) (string, error) {
	if err := Validate(content, keys); err != nil {
		return "", err
	}

	prepared, err := m.Prepare(content)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(prepared) == "" {
		return "", nil
	}

	return normalize(prepared, keys), nil
}

// Map extracts the value of every key found in content after
// pre-processing. Inputs are validated before any pre-processing runs.
func (m *Mapper) Map(content string, keys []string) (map[string]string, error) {
	if err := Validate(content, keys); err != nil {
		return nil, err
	}

	prepared, err := m.Prepare(content)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(prepared) == "" {
		m.logger.Debug("no text left after pre-processing", "content_bytes", len(content))
		return map[string]string{}, nil
	}

	result := fields(prepared, keys)
	m.logger.Debug("mapped fields",
		"content_bytes", len(content),
		"prepared_bytes", len(prepared),
		"keys", len(keys),
		"found", len(result),
	)
	return result, nil
}

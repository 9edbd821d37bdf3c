// Package profile provides a registry of form profiles: named key sets for a
// particular form mailer, the indicators that recognize its emails, and the
// pre-processing its bodies need.
package profile

import (
	"fmt"
	"regexp"

	"github.com/coolbeans/fieldmap/pkg/extract"
	"github.com/coolbeans/fieldmap/pkg/htmltext"
)

// FormProfile describes the emails produced by one form plugin or mailer.
type FormProfile struct {
	// Metadata
	Name        string `yaml:"name" json:"name"`
	ProfileID   string `yaml:"profile_id" json:"profile_id"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Keys are the field labels to extract, in output order.
	Keys []string `yaml:"keys" json:"keys"`

	// Detection configuration
	Detection DetectionConfig `yaml:"detection" json:"detection"`

	// Options override the mapper configuration for this profile.
	Options Options `yaml:"options" json:"options"`

	// source is the file the profile was loaded from, if any.
	source string

	compiled bool
}

// DetectionConfig defines how to recognize an email produced by the profile's form.
type DetectionConfig struct {
	// RequiredIndicators must have at least one match for detection
	RequiredIndicators []Indicator `yaml:"required_indicators" json:"required_indicators"`

	// OptionalIndicators add to confidence but are not required
	OptionalIndicators []Indicator `yaml:"optional_indicators,omitempty" json:"optional_indicators,omitempty"`

	// NegativeIndicators reduce confidence (use negative weights)
	NegativeIndicators []Indicator `yaml:"negative_indicators,omitempty" json:"negative_indicators,omitempty"`
}

// Indicator is a weighted regular expression.
type Indicator struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Weight  int    `yaml:"weight" json:"weight"`

	compiled *regexp.Regexp
}

// Options are per-profile pre-processing settings. Unset fields keep the
// value of the base configuration.
type Options struct {
	NormalizeHTML      *bool  `yaml:"normalize_html,omitempty" json:"normalize_html,omitempty"`
	CollapseWhitespace *bool  `yaml:"collapse_whitespace,omitempty" json:"collapse_whitespace,omitempty"`
	HTMLMode           string `yaml:"html_mode,omitempty" json:"html_mode,omitempty"`
}

// Compile compiles every indicator pattern.
func (fp *FormProfile) Compile() error {
	groups := []struct {
		kind       string
		indicators []Indicator
	}{
		{"required", fp.Detection.RequiredIndicators},
		{"optional", fp.Detection.OptionalIndicators},
		{"negative", fp.Detection.NegativeIndicators},
	}

	for _, group := range groups {
		for i := range group.indicators {
			ind := &group.indicators[i]
			compiled, err := regexp.Compile(ind.Pattern)
			if err != nil {
				return fmt.Errorf("compiling %s indicator %d pattern %q: %w", group.kind, i, ind.Pattern, err)
			}
			ind.compiled = compiled
		}
	}

	fp.compiled = true
	return nil
}

// IsCompiled returns true if the profile has been compiled.
func (fp *FormProfile) IsCompiled() bool {
	return fp.compiled
}

// Source returns the path the profile was loaded from, or "" for profiles
// registered in code or loaded from the built-in set.
func (fp *FormProfile) Source() string {
	return fp.source
}

// Validate checks that the profile has all required fields and a usable key set.
func (fp *FormProfile) Validate() error {
	if fp.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if fp.ProfileID == "" {
		return fmt.Errorf("profile profile_id is required")
	}
	if fp.Version == "" {
		return fmt.Errorf("profile version is required")
	}
	if err := extract.ValidateKeys(fp.Keys); err != nil {
		return fmt.Errorf("profile keys: %w", err)
	}
	if len(fp.Detection.RequiredIndicators) == 0 {
		return fmt.Errorf("at least one required indicator is needed for profile detection")
	}
	if _, err := htmltext.ParseMode(fp.Options.HTMLMode); err != nil {
		return fmt.Errorf("profile options: %w", err)
	}
	return nil
}

// Config applies the profile's options on top of base.
func (fp *FormProfile) Config(base extract.Config) extract.Config {
	cfg := base
	if fp.Options.NormalizeHTML != nil {
		cfg.NormalizeHTML = *fp.Options.NormalizeHTML
	}
	if fp.Options.CollapseWhitespace != nil {
		cfg.CollapseWideWhitespace = *fp.Options.CollapseWhitespace
	}
	if fp.Options.HTMLMode != "" {
		if mode, err := htmltext.ParseMode(fp.Options.HTMLMode); err == nil {
			cfg.HTMLMode = mode
		}
	}
	return cfg
}

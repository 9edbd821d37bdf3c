package profile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/coolbeans/fieldmap/pkg/extract"
	"github.com/coolbeans/fieldmap/pkg/htmltext"
)

// FieldError is a profile validation error with the offending field.
type FieldError struct {
	Field   string
	Message string
	Value   any
}

func (e FieldError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldErrors is a collection of validation errors.
type FieldErrors []FieldError

func (errs FieldErrors) Error() string {
	if len(errs) == 0 {
		return "no errors"
	}
	if len(errs) == 1 {
		return errs[0].Error()
	}
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(errs), strings.Join(messages, "\n  - "))
}

var (
	profileIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	versionPattern   = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// ValidateSchema reports every problem with a profile, unlike Validate which
// stops at the first.
func ValidateSchema(fp *FormProfile) FieldErrors {
	var errs FieldErrors

	if fp.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required field is missing"})
	}

	switch {
	case fp.ProfileID == "":
		errs = append(errs, FieldError{Field: "profile_id", Message: "required field is missing"})
	case !profileIDPattern.MatchString(fp.ProfileID):
		errs = append(errs, FieldError{
			Field:   "profile_id",
			Message: "must be lowercase alphanumeric with hyphens, starting with a letter",
			Value:   fp.ProfileID,
		})
	}

	switch {
	case fp.Version == "":
		errs = append(errs, FieldError{Field: "version", Message: "required field is missing"})
	case !versionPattern.MatchString(fp.Version):
		errs = append(errs, FieldError{Field: "version", Message: "must be semantic version (e.g., 1.0.0)", Value: fp.Version})
	}

	errs = append(errs, validateKeys(fp.Keys)...)
	errs = append(errs, validateDetection(&fp.Detection)...)

	if fp.Options.HTMLMode != "" {
		if _, err := htmltext.ParseMode(fp.Options.HTMLMode); err != nil {
			errs = append(errs, FieldError{Field: "options.html_mode", Message: "must be one of text, markdown, auto", Value: fp.Options.HTMLMode})
		}
	}

	return errs
}

func validateKeys(keys []string) FieldErrors {
	err := extract.ValidateKeys(keys)
	if err == nil {
		return nil
	}

	field := "keys"
	var verr *extract.ValidationError
	if errors.As(err, &verr) && verr.Index >= 0 {
		field = fmt.Sprintf("keys[%d]", verr.Index)
	}
	return FieldErrors{{Field: field, Message: errors.Unwrap(err).Error()}}
}

func validateDetection(d *DetectionConfig) FieldErrors {
	var errs FieldErrors

	if len(d.RequiredIndicators) == 0 {
		errs = append(errs, FieldError{
			Field:   "detection.required_indicators",
			Message: "at least one required indicator is needed",
		})
	}

	for i, ind := range d.RequiredIndicators {
		errs = append(errs, validateIndicator(fmt.Sprintf("detection.required_indicators[%d]", i), ind, true)...)
	}
	for i, ind := range d.OptionalIndicators {
		errs = append(errs, validateIndicator(fmt.Sprintf("detection.optional_indicators[%d]", i), ind, true)...)
	}
	for i, ind := range d.NegativeIndicators {
		errs = append(errs, validateIndicator(fmt.Sprintf("detection.negative_indicators[%d]", i), ind, false)...)
	}

	return errs
}

func validateIndicator(field string, ind Indicator, positiveWeight bool) FieldErrors {
	var errs FieldErrors

	if ind.Pattern == "" {
		errs = append(errs, FieldError{Field: field + ".pattern", Message: "pattern is required"})
	} else if _, err := regexp.Compile(ind.Pattern); err != nil {
		errs = append(errs, FieldError{Field: field + ".pattern", Message: "invalid regular expression", Value: ind.Pattern})
	}

	switch {
	case positiveWeight && ind.Weight < 1:
		errs = append(errs, FieldError{Field: field + ".weight", Message: "weight must be positive (>= 1)", Value: ind.Weight})
	case positiveWeight && ind.Weight > 100:
		errs = append(errs, FieldError{Field: field + ".weight", Message: "weight must be <= 100", Value: ind.Weight})
	case !positiveWeight && ind.Weight > -1:
		errs = append(errs, FieldError{Field: field + ".weight", Message: "negative indicator weight must be negative (<= -1)", Value: ind.Weight})
	case !positiveWeight && ind.Weight < -100:
		errs = append(errs, FieldError{Field: field + ".weight", Message: "weight must be >= -100", Value: ind.Weight})
	}

	return errs
}

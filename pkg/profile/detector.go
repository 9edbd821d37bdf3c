package profile

import (
	"fmt"
	"sort"
	"strings"
)

// Match is a detected profile with its confidence score.
type Match struct {
	ProfileID  string
	Profile    *FormProfile
	Confidence float64
	Score      float64
	MaxScore   float64
	Indicators []IndicatorMatch

	RequiredMatched int
	RequiredTotal   int
	OptionalMatched int
	OptionalTotal   int
	NegativeMatched int
	TotalMatchCount int
}

// IndicatorMatch represents a matched indicator.
type IndicatorMatch struct {
	Pattern    string `json:"pattern"`
	Weight     int    `json:"weight"`
	MatchCount int    `json:"match_count"`
	Type       string `json:"type"` // "required", "optional", "negative"
}

// String returns a human-readable summary of the match.
func (m *Match) String() string {
	return fmt.Sprintf("%s: %.1f%% confidence (score: %.1f/%.1f, %d indicators matched)",
		m.ProfileID, m.Confidence*100, m.Score, m.MaxScore, len(m.Indicators))
}

// DetectorOptions configures the detector.
type DetectorOptions struct {
	// MinConfidence filters out matches at or below this threshold (0.0-1.0)
	MinConfidence float64

	// MaxResults limits the number of results returned (0 = unlimited)
	MaxResults int
}

// Detector picks the profile whose indicators best match an email.
type Detector struct {
	registry Registry
	options  DetectorOptions
}

// NewDetector creates a detector with default options.
func NewDetector(registry Registry) *Detector {
	return &Detector{registry: registry}
}

// NewDetectorWithOptions creates a detector with custom options.
func NewDetectorWithOptions(registry Registry, options DetectorOptions) *Detector {
	return &Detector{registry: registry, options: options}
}

// Detect scores every registered profile against content and returns the
// matches ranked by confidence.
func (d *Detector) Detect(content string) []Match {
	profiles := d.registry.List()
	if len(profiles) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(profiles))
	for _, profile := range profiles {
		match := evaluate(content, profile)
		if match.Confidence > d.options.MinConfidence {
			matches = append(matches, match)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		// More matched indicators means a more specific profile.
		if matches[i].RequiredMatched+matches[i].OptionalMatched != matches[j].RequiredMatched+matches[j].OptionalMatched {
			return matches[i].RequiredMatched+matches[i].OptionalMatched > matches[j].RequiredMatched+matches[j].OptionalMatched
		}
		if matches[i].TotalMatchCount != matches[j].TotalMatchCount {
			return matches[i].TotalMatchCount > matches[j].TotalMatchCount
		}
		return matches[i].ProfileID < matches[j].ProfileID
	})

	if d.options.MaxResults > 0 && len(matches) > d.options.MaxResults {
		matches = matches[:d.options.MaxResults]
	}

	return matches
}

// DetectBest returns the best matching profile, or nil if none matched.
func (d *Detector) DetectBest(content string) *Match {
	matches := d.Detect(content)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

// evaluate scores one profile against content.
func evaluate(content string, profile *FormProfile) Match {
	match := Match{
		ProfileID:     profile.ProfileID,
		Profile:       profile,
		RequiredTotal: len(profile.Detection.RequiredIndicators),
		OptionalTotal: len(profile.Detection.OptionalIndicators),
	}

	var score float64
	for _, ind := range profile.Detection.RequiredIndicators {
		match.MaxScore += float64(ind.Weight)
		if count := ind.count(content); count > 0 {
			score += float64(ind.Weight)
			match.RequiredMatched++
			match.TotalMatchCount += count
			match.Indicators = append(match.Indicators, ind.matched("required", count))
		}
	}

	if match.RequiredMatched == 0 {
		return match
	}

	for _, ind := range profile.Detection.OptionalIndicators {
		if count := ind.count(content); count > 0 {
			score += float64(ind.Weight)
			match.OptionalMatched++
			match.TotalMatchCount += count
			match.Indicators = append(match.Indicators, ind.matched("optional", count))
		}
	}

	for _, ind := range profile.Detection.NegativeIndicators {
		if count := ind.count(content); count > 0 {
			score += float64(ind.Weight)
			match.NegativeMatched++
			match.TotalMatchCount += count
			match.Indicators = append(match.Indicators, ind.matched("negative", count))
		}
	}

	match.Score = score
	if match.MaxScore > 0 {
		match.Confidence = max(0, min(1, score/match.MaxScore))
	}

	return match
}

func (ind Indicator) count(content string) int {
	if ind.compiled == nil {
		return 0
	}
	return len(ind.compiled.FindAllStringIndex(content, -1))
}

func (ind Indicator) matched(kind string, count int) IndicatorMatch {
	return IndicatorMatch{Pattern: ind.Pattern, Weight: ind.Weight, MatchCount: count, Type: kind}
}

// ExplainMatch returns a report of which indicators of a profile matched content.
func (d *Detector) ExplainMatch(content string, profileID string) string {
	profile, ok := d.registry.Get(profileID)
	if !ok {
		return fmt.Sprintf("Profile %q not found in registry", profileID)
	}

	match := evaluate(content, profile)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Explanation for profile: %s (%s)\n", profile.Name, profileID)
	sb.WriteString(strings.Repeat("-", 50) + "\n\n")

	writeIndicators(&sb, "Required Indicators", profile.Detection.RequiredIndicators, content, false)
	writeIndicators(&sb, "Optional Indicators", profile.Detection.OptionalIndicators, content, false)
	writeIndicators(&sb, "Negative Indicators", profile.Detection.NegativeIndicators, content, true)

	sb.WriteString("Summary:\n")
	fmt.Fprintf(&sb, "  Score: %.1f / %.1f\n", match.Score, match.MaxScore)
	fmt.Fprintf(&sb, "  Confidence: %.2f (%.1f%%)\n", match.Confidence, match.Confidence*100)
	fmt.Fprintf(&sb, "  Required: %d/%d matched\n", match.RequiredMatched, match.RequiredTotal)
	fmt.Fprintf(&sb, "  Optional: %d/%d matched\n", match.OptionalMatched, match.OptionalTotal)

	switch {
	case match.Confidence > 0:
		sb.WriteString("\n  → This profile MATCHES the content\n")
	case match.RequiredMatched == 0:
		sb.WriteString("\n  → No required indicators matched - profile does NOT match\n")
	default:
		sb.WriteString("\n  → Confidence too low - profile does NOT match\n")
	}

	return sb.String()
}

func writeIndicators(sb *strings.Builder, title string, indicators []Indicator, content string, negative bool) {
	if len(indicators) == 0 {
		return
	}

	fmt.Fprintf(sb, "%s:\n", title)
	for i, ind := range indicators {
		count := ind.count(content)
		status := "✗"
		switch {
		case negative && count > 0:
			status = "⚠"
		case negative || count > 0:
			status = "✓"
		}
		fmt.Fprintf(sb, "  %s [%d] weight=%d matches=%d pattern=%q\n",
			status, i, ind.Weight, count, truncatePattern(ind.Pattern, 40))
	}
	sb.WriteString("\n")
}

func truncatePattern(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

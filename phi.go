package auditx

import "strings"

// Detector scans free text for protected health information using the fixed
// pattern table in phi_patterns.go.
//
// A Detector is immutable after construction and safe for concurrent use.
// Detection never fails: for any input it returns a DetectionResult, empty
// when nothing matched.
type Detector struct {
	patterns []phiPattern
}

// DetectionResult is the outcome of one detection pass.
type DetectionResult struct {
	// HasPHI is true when at least one pattern matched.
	HasPHI bool `json:"has_phi"`

	// PHITypes lists the matched categories in pattern-table order, each at
	// most once.
	PHITypes []PHIType `json:"phi_types"`

	// Confidence is the arithmetic mean of per-match confidences, 0 when
	// nothing matched.
	Confidence float64 `json:"confidence"`

	// Locations holds every individual match against the original input.
	Locations []PHILocation `json:"locations"`

	// SanitizedContent is the input with every match replaced by its
	// [<TYPE>_REDACTED] placeholder.
	SanitizedContent string `json:"sanitized_content"`
}

// PHILocation describes a single match.
type PHILocation struct {
	// Type is the PHI category that matched.
	Type PHIType `json:"type"`

	// Location is the byte offset of the match in the original input.
	Location int `json:"location"`

	// Value is the matched substring.
	Value string `json:"value"`

	// Confidence is the per-match score in [0,1].
	Confidence float64 `json:"confidence"`
}

// NewDetector returns a detector over the built-in pattern table.
func NewDetector() *Detector {
	return &Detector{patterns: phiPatterns}
}

// Detect runs every pattern against text and returns matches, an overall
// confidence, and the sanitized form of the input.
//
// Sanitization applies each pattern's replacement in table order over the
// progressively redacted string. Matches of different types that overlap the
// same span are therefore redacted independently, not sequentially
// consistent; see the note on phiPatterns.
func (d *Detector) Detect(text string) DetectionResult {
	result := DetectionResult{SanitizedContent: text}
	if text == "" {
		return result
	}

	seen := make(map[PHIType]bool, len(d.patterns))
	var confidenceSum float64

	for _, p := range d.patterns {
		indexes := p.re.FindAllStringIndex(text, -1)
		if len(indexes) == 0 {
			continue
		}

		if !seen[p.typ] {
			seen[p.typ] = true
			result.PHITypes = append(result.PHITypes, p.typ)
		}

		for _, idx := range indexes {
			value := text[idx[0]:idx[1]]
			confidence := matchConfidence(p, value)
			confidenceSum += confidence
			result.Locations = append(result.Locations, PHILocation{
				Type:       p.typ,
				Location:   idx[0],
				Value:      value,
				Confidence: confidence,
			})
		}

		result.SanitizedContent = p.re.ReplaceAllString(result.SanitizedContent, redactionPlaceholder(p.typ))
	}

	if len(result.Locations) > 0 {
		result.HasPHI = true
		result.Confidence = confidenceSum / float64(len(result.Locations))
	}
	return result
}

// Sanitize is a convenience wrapper returning only the redacted text.
func (d *Detector) Sanitize(text string) string {
	return d.Detect(text).SanitizedContent
}

// matchConfidence nudges the per-type base score by the strict format check:
// +0.05 when the match satisfies the stricter format, -0.05 when it does not.
func matchConfidence(p phiPattern, value string) float64 {
	confidence := p.base
	if p.strict != nil {
		if p.strict.MatchString(value) {
			confidence += 0.05
		} else {
			confidence -= 0.05
		}
	}
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

// redactionPlaceholder returns the stable placeholder for a PHI type, e.g.
// [SSN_REDACTED] or [MEDICALCONDITIONS_REDACTED].
func redactionPlaceholder(t PHIType) string {
	return "[" + strings.ToUpper(string(t)) + "_REDACTED]"
}

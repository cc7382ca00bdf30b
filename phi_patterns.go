package auditx

import "regexp"

// PHIType identifies a category of protected health information recognized by
// the detector.
type PHIType string

const (
	PHITypeSSN               PHIType = "ssn"
	PHITypePhone             PHIType = "phone"
	PHITypeEmail             PHIType = "email"
	PHITypeDOB               PHIType = "dob"
	PHITypeMRN               PHIType = "mrn"
	PHITypeNPI               PHIType = "npi"
	PHITypeAddress           PHIType = "address"
	PHITypeCreditCard        PHIType = "creditCard"
	PHITypePatientID         PHIType = "patientId"
	PHITypeMedicalConditions PHIType = "medicalConditions"
)

// phiPattern couples one PHI category with its detection regex. Confidence
// starts from the per-type base score and is nudged +-0.05 by the strict
// format check when one is defined.
type phiPattern struct {
	typ    PHIType
	re     *regexp.Regexp
	strict *regexp.Regexp
	base   float64
}

// phiPatterns is the fixed, ordered detection table. The order is part of the
// redaction contract: sanitization applies each pattern's replacement in this
// sequence. Overlapping matches of different types are redacted by
// independent passes, which can produce inconsistent placeholders on
// pathological inputs; this mirrors relied-upon behavior and must not be
// reordered without product sign-off.
var phiPatterns = []phiPattern{
	{
		typ:    PHITypeSSN,
		re:     regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`),
		strict: regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`),
		base:   0.95,
	},
	{
		typ:    PHITypePhone,
		re:     regexp.MustCompile(`(?:\(\d{3}\)\s*\d{3}[-.]\d{4}|\b\d{3}[-.]\d{3}[-.]\d{4}\b)`),
		strict: regexp.MustCompile(`^\(\d{3}\)\s*\d{3}-\d{4}$`),
		base:   0.80,
	},
	{
		typ:  PHITypeEmail,
		re:   regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		base: 0.90,
	},
	{
		typ:    PHITypeDOB,
		re:     regexp.MustCompile(`(?i)\b(?:DOB|date\s*of\s*birth)[:\s]*\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b`),
		strict: regexp.MustCompile(`\d{1,2}[/\-]\d{1,2}[/\-]\d{4}$`),
		base:   0.85,
	},
	{
		typ:    PHITypeMRN,
		re:     regexp.MustCompile(`(?i)\bMRN[:\s#]*\d{4,12}\b`),
		strict: regexp.MustCompile(`(?i)^MRN[:#]\s?\d{6,10}$`),
		base:   0.90,
	},
	{
		typ:  PHITypeNPI,
		re:   regexp.MustCompile(`(?i)\bNPI[:\s#]*\d{10}\b`),
		base: 0.85,
	},
	{
		typ:  PHITypeAddress,
		re:   regexp.MustCompile(`\b\d{1,6}\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+(?:Street|St|Avenue|Ave|Boulevard|Blvd|Drive|Dr|Road|Rd|Lane|Ln|Court|Ct|Way|Place|Pl|Circle|Cir)\b`),
		base: 0.70,
	},
	{
		typ:    PHITypeCreditCard,
		re:     regexp.MustCompile(`\b(?:\d{4}[-\s]){3}\d{4}\b`),
		strict: regexp.MustCompile(`^(?:\d{4}-){3}\d{4}$`),
		base:   0.90,
	},
	{
		typ:  PHITypePatientID,
		re:   regexp.MustCompile(`(?i)\bpatient[_\s]?id[:\s#]*[A-Za-z0-9\-]{3,20}\b`),
		base: 0.75,
	},
	{
		typ:  PHITypeMedicalConditions,
		re:   regexp.MustCompile(`(?i)\b(?:diabetes|cancer|hypertension|asthma|depression|hiv|aids|covid(?:-19)?|alzheimer'?s|arthritis|epilepsy|hepatitis|schizophrenia|leukemia)\b`),
		base: 0.75,
	},
}

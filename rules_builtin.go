package auditx

import (
	"fmt"
	"time"
)

// builtinRules returns the built-in rule sets for all supported standards.
// Every rule reads well-known record keys; absent keys read as zero values,
// so a rule only fires when the record actually claims the relevant trait.
func builtinRules() []Rule {
	var rules []Rule
	rules = append(rules, hipaaRules()...)
	rules = append(rules, gdprRules()...)
	rules = append(rules, soc2Rules()...)
	rules = append(rules, iso27001Rules()...)
	rules = append(rules, fdaRules()...)
	return rules
}

func hipaaRules() []Rule {
	return []Rule{
		{
			ID:       "hipaa-audit-logging",
			Standard: StandardHIPAA,
			Category: "audit",
			Title:    "PHI access must be audit logged",
			Severity: SeverityHigh,
			Check: func(data Record) *Violation {
				if recordBool(data, "containsPHI") && !recordBool(data, "auditLogged") {
					return &Violation{
						RuleID:           "hipaa-audit-logging",
						Standard:         StandardHIPAA,
						Severity:         SeverityHigh,
						Title:            "PHI access must be audit logged",
						Description:      "the record contains PHI but no audit trail entry was produced for the access",
						OffendingData:    Record{"containsPHI": true, "auditLogged": data["auditLogged"]},
						Suggestion:       "route the access through the audit logger before returning data",
						AutoFixAvailable: true,
					}
				}
				return nil
			},
			AutoFix: func(data Record) Record {
				out := data.Clone()
				out["auditLogged"] = true
				return out
			},
		},
		{
			ID:       "hipaa-phi-encryption",
			Standard: StandardHIPAA,
			Category: "encryption",
			Title:    "PHI at rest must be encrypted",
			Severity: SeverityCritical,
			Check: func(data Record) *Violation {
				level := recordString(data, "encryptionLevel")
				if recordBool(data, "containsPHI") && (level == "" || level == "none") {
					return &Violation{
						RuleID:        "hipaa-phi-encryption",
						Standard:      StandardHIPAA,
						Severity:      SeverityCritical,
						Title:         "PHI at rest must be encrypted",
						Description:   "the record contains PHI but declares no encryption",
						OffendingData: Record{"encryptionLevel": level},
						Suggestion:    "store PHI fields with AES-256-GCM field encryption",
					}
				}
				return nil
			},
		},
		{
			ID:       "hipaa-minimum-necessary",
			Standard: StandardHIPAA,
			Category: "access-control",
			Title:    "Full-record access requires a stated purpose",
			Severity: SeverityMedium,
			Check: func(data Record) *Violation {
				if recordString(data, "accessScope") == "full" && recordString(data, "purpose") == "" {
					return &Violation{
						RuleID:      "hipaa-minimum-necessary",
						Standard:    StandardHIPAA,
						Severity:    SeverityMedium,
						Title:       "Full-record access requires a stated purpose",
						Description: "full-scope access was requested without a documented purpose",
						Suggestion:  "narrow the access scope or record the purpose of use",
					}
				}
				return nil
			},
		},
		{
			ID:       "hipaa-retention-period",
			Standard: StandardHIPAA,
			Category: "retention",
			Title:    "Audit records must be retained for at least six years",
			Severity: SeverityMedium,
			Check: func(data Record) *Violation {
				days, ok := recordInt(data, "retentionDays")
				if ok && days < 2190 {
					return &Violation{
						RuleID:           "hipaa-retention-period",
						Standard:         StandardHIPAA,
						Severity:         SeverityMedium,
						Title:            "Audit records must be retained for at least six years",
						Description:      fmt.Sprintf("configured retention is %d days, below the 2190-day floor", days),
						OffendingData:    Record{"retentionDays": days},
						Suggestion:       "raise retentionDays to 2190 or more",
						AutoFixAvailable: true,
					}
				}
				return nil
			},
			AutoFix: func(data Record) Record {
				out := data.Clone()
				if days, ok := recordInt(out, "retentionDays"); ok && days < 2190 {
					out["retentionDays"] = 2190
				}
				return out
			},
		},
	}
}

func gdprRules() []Rule {
	return []Rule{
		{
			ID:       "gdpr-consent",
			Standard: StandardGDPR,
			Category: "lawful-basis",
			Title:    "Personal data processing requires consent or another lawful basis",
			Severity: SeverityCritical,
			Check: func(data Record) *Violation {
				if recordBool(data, "processesPersonalData") &&
					!recordBool(data, "consentObtained") && recordString(data, "lawfulBasis") == "" {
					return &Violation{
						RuleID:      "gdpr-consent",
						Standard:    StandardGDPR,
						Severity:    SeverityCritical,
						Title:       "Personal data processing requires consent or another lawful basis",
						Description: "the record processes personal data without recorded consent or lawful basis",
						Suggestion:  "capture consent, or record the applicable lawful basis",
					}
				}
				return nil
			},
		},
		{
			ID:       "gdpr-right-to-erasure",
			Standard: StandardGDPR,
			Category: "data-subject-rights",
			Title:    "Personal data stores must support erasure",
			Severity: SeverityHigh,
			Check: func(data Record) *Violation {
				if recordBool(data, "processesPersonalData") && !recordBool(data, "erasureSupported") {
					return &Violation{
						RuleID:      "gdpr-right-to-erasure",
						Standard:    StandardGDPR,
						Severity:    SeverityHigh,
						Title:       "Personal data stores must support erasure",
						Description: "no erasure path is declared for a store holding personal data",
						Suggestion:  "implement and declare an erasure procedure for this store",
					}
				}
				return nil
			},
		},
		{
			ID:       "gdpr-breach-notification",
			Standard: StandardGDPR,
			Category: "incident-response",
			Title:    "Detected breaches must be notified",
			Severity: SeverityCritical,
			Check: func(data Record) *Violation {
				if _, detected := data["breachDetectedAt"]; detected {
					if _, notified := data["breachNotifiedAt"]; !notified {
						return &Violation{
							RuleID:      "gdpr-breach-notification",
							Standard:    StandardGDPR,
							Severity:    SeverityCritical,
							Title:       "Detected breaches must be notified",
							Description: "a breach detection timestamp is present without a notification timestamp",
							Suggestion:  "notify the supervisory authority within 72 hours and record the time",
						}
					}
				}
				return nil
			},
		},
	}
}

func soc2Rules() []Rule {
	return []Rule{
		{
			ID:       "soc2-access-control",
			Standard: StandardSOC2,
			Category: "security",
			Title:    "Confidential data must not be publicly accessible",
			Severity: SeverityHigh,
			Check: func(data Record) *Violation {
				if recordBool(data, "publicAccess") && recordBool(data, "containsConfidential") {
					return &Violation{
						RuleID:        "soc2-access-control",
						Standard:      StandardSOC2,
						Severity:      SeverityHigh,
						Title:         "Confidential data must not be publicly accessible",
						Description:   "the record is flagged confidential yet exposed to public access",
						OffendingData: Record{"publicAccess": true},
						Suggestion:    "restrict access to authenticated principals",
					}
				}
				return nil
			},
		},
		{
			ID:       "soc2-change-management",
			Standard: StandardSOC2,
			Category: "change-management",
			Title:    "Production changes require a change ticket",
			Severity: SeverityMedium,
			Check: func(data Record) *Violation {
				if recordString(data, "environment") == "production" && recordString(data, "changeTicket") == "" {
					return &Violation{
						RuleID:      "soc2-change-management",
						Standard:    StandardSOC2,
						Severity:    SeverityMedium,
						Title:       "Production changes require a change ticket",
						Description: "a production change carries no change-management reference",
						Suggestion:  "link the change to an approved ticket before applying it",
					}
				}
				return nil
			},
		},
		{
			ID:       "soc2-monitoring",
			Standard: StandardSOC2,
			Category: "monitoring",
			Title:    "Systems must declare monitoring",
			Severity: SeverityLow,
			Check: func(data Record) *Violation {
				if _, present := data["monitoringEnabled"]; present && !recordBool(data, "monitoringEnabled") {
					return &Violation{
						RuleID:           "soc2-monitoring",
						Standard:         StandardSOC2,
						Severity:         SeverityLow,
						Title:            "Systems must declare monitoring",
						Description:      "monitoring is explicitly disabled for this record's system",
						Suggestion:       "enable monitoring or document the exception",
						AutoFixAvailable: true,
					}
				}
				return nil
			},
			AutoFix: func(data Record) Record {
				out := data.Clone()
				out["monitoringEnabled"] = true
				return out
			},
		},
	}
}

func iso27001Rules() []Rule {
	return []Rule{
		{
			ID:       "iso27001-classification",
			Standard: StandardISO27001,
			Category: "asset-management",
			Title:    "Data assets must carry a classification",
			Severity: SeverityMedium,
			Check: func(data Record) *Violation {
				if _, present := data["dataClassification"]; present && recordString(data, "dataClassification") == "" {
					return &Violation{
						RuleID:           "iso27001-classification",
						Standard:         StandardISO27001,
						Severity:         SeverityMedium,
						Title:            "Data assets must carry a classification",
						Description:      "the record declares a classification field but leaves it empty",
						Suggestion:       "classify the asset (public, internal, confidential, restricted)",
						AutoFixAvailable: true,
					}
				}
				return nil
			},
			AutoFix: func(data Record) Record {
				out := data.Clone()
				if recordString(out, "dataClassification") == "" {
					out["dataClassification"] = "internal"
				}
				return out
			},
		},
		{
			ID:       "iso27001-access-review",
			Standard: StandardISO27001,
			Category: "access-control",
			Title:    "Access grants must be reviewed every 90 days",
			Severity: SeverityMedium,
			Check: func(data Record) *Violation {
				reviewed, ok := recordTime(data, "lastAccessReview")
				if ok && time.Since(reviewed) > 90*24*time.Hour {
					return &Violation{
						RuleID:        "iso27001-access-review",
						Standard:      StandardISO27001,
						Severity:      SeverityMedium,
						Title:         "Access grants must be reviewed every 90 days",
						Description:   fmt.Sprintf("last access review was %s", reviewed.Format(time.RFC3339)),
						OffendingData: Record{"lastAccessReview": reviewed},
						Suggestion:    "run an access review and record its date",
					}
				}
				return nil
			},
		},
	}
}

func fdaRules() []Rule {
	return []Rule{
		{
			ID:       "fda-electronic-signature",
			Standard: StandardFDA,
			Category: "part-11",
			Title:    "Regulated records require an electronic signature",
			Severity: SeverityCritical,
			Check: func(data Record) *Violation {
				if recordBool(data, "requiresSignature") && recordString(data, "signature") == "" {
					return &Violation{
						RuleID:      "fda-electronic-signature",
						Standard:    StandardFDA,
						Severity:    SeverityCritical,
						Title:       "Regulated records require an electronic signature",
						Description: "the record requires a 21 CFR Part 11 signature but carries none",
						Suggestion:  "sign the record before release",
					}
				}
				return nil
			},
		},
		{
			ID:       "fda-audit-trail",
			Standard: StandardFDA,
			Category: "part-11",
			Title:    "Record modifications require a change reason",
			Severity: SeverityHigh,
			Check: func(data Record) *Violation {
				if recordBool(data, "modified") && recordString(data, "changeReason") == "" {
					return &Violation{
						RuleID:      "fda-audit-trail",
						Standard:    StandardFDA,
						Severity:    SeverityHigh,
						Title:       "Record modifications require a change reason",
						Description: "the record was modified without a recorded reason for change",
						Suggestion:  "capture the reason for change alongside the modification",
					}
				}
				return nil
			},
		},
	}
}

// Record accessors. Absent or mistyped keys read as zero values so rules stay
// total functions over arbitrary records.

func recordBool(data Record, key string) bool {
	b, _ := data[key].(bool)
	return b
}

func recordString(data Record, key string) string {
	s, _ := data[key].(string)
	return s
}

func recordInt(data Record, key string) (int, bool) {
	switch v := data[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func recordTime(data Record, key string) (time.Time, bool) {
	switch v := data[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		return t, err == nil
	default:
		return time.Time{}, false
	}
}

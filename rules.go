package auditx

import (
	"fmt"
	"sort"
	"sync"
)

// Standard is a named regulatory framework a rule belongs to.
type Standard string

const (
	StandardHIPAA    Standard = "HIPAA"
	StandardGDPR     Standard = "GDPR"
	StandardSOC2     Standard = "SOC2"
	StandardISO27001 Standard = "ISO27001"
	StandardFDA      Standard = "FDA"
)

// Severity ranks a violation for triage. Severity never affects the pass/fail
// outcome of a validation, only downstream recommendations.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Record is the unit of data validated by the rule engine. Predicates read
// well-known keys; absent keys read as zero values.
type Record map[string]any

// Clone returns a shallow copy of the record. Auto-fixes operate on copies so
// the caller's data is never mutated in place.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Rule is one named compliance check: a pure predicate with an optional pure
// auto-fix. Rules are immutable once registered.
//
// Predicates must not panic; the engine does not recover. This is an explicit
// contract with rule authors, not an omission.
type Rule struct {
	// ID uniquely identifies the rule, e.g. "hipaa-audit-logging".
	ID string

	// Standard is the framework this rule belongs to.
	Standard Standard

	// Category groups related rules for reporting, e.g. "access-control".
	Category string

	// Title is the human-readable rule name.
	Title string

	// Severity ranks violations of this rule.
	Severity Severity

	// Check inspects a record and returns a violation, or nil when the
	// record complies. Check must be pure.
	Check func(Record) *Violation

	// AutoFix, when non-nil, returns a corrected copy of the record. It must
	// be pure and deterministic: applying it twice yields the same result.
	AutoFix func(Record) Record
}

// Violation reports one failed rule against one record. Violations are
// created fresh per validation call and embedded in a Result or audit entry,
// never persisted on their own.
type Violation struct {
	RuleID           string   `json:"rule_id"`
	Standard         Standard `json:"standard"`
	Severity         Severity `json:"severity"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	OffendingData    any      `json:"offending_data,omitempty"`
	Suggestion       string   `json:"suggestion,omitempty"`
	AutoFixAvailable bool     `json:"auto_fix_available"`
}

// Result is the derived outcome of one validation call. It is recomputed on
// every call, never cached.
type Result struct {
	// Passed is true exactly when Violations is empty. A single low-severity
	// violation fails the record the same as a critical one; severity feeds
	// triage only. Documented design choice.
	Passed bool `json:"passed"`

	// Score is 100 * (rulesRun - violations) / rulesRun, or 100 when no
	// rules applied (vacuously compliant).
	Score float64 `json:"score"`

	Violations []Violation `json:"violations"`

	// Summary counts violations by severity.
	Summary map[Severity]int `json:"summary"`

	Recommendations []string `json:"recommendations"`
}

// FixResult is the outcome of ApplyAutoFixes.
type FixResult struct {
	FixedData           Record      `json:"fixed_data"`
	AppliedFixes        []string    `json:"applied_fixes"`
	RemainingViolations []Violation `json:"remaining_violations"`
}

// Registry is a read-mostly catalog of compliance rules. Build one at
// startup (BuiltinRegistry or NewRegistry + AddRule) and inject it into every
// component that validates; after construction it is safe for concurrent
// readers. There is deliberately no package-level registry: each test builds
// its own, avoiding hidden cross-test coupling.
type Registry struct {
	mu    sync.RWMutex
	order []string
	rules map[string]Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// BuiltinRegistry returns a registry preloaded with the built-in HIPAA, GDPR,
// SOC2, ISO27001 and FDA rule sets.
func BuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, rule := range builtinRules() {
		// builtin IDs are unique by construction
		_ = r.AddRule(rule)
	}
	return r
}

// AddRule registers a rule. Registration should happen at startup, before
// the registry is shared; ErrDuplicateRule is returned for a reused ID.
func (r *Registry) AddRule(rule Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule ID is required", ErrInvalidConfiguration)
	}
	if rule.Check == nil {
		return fmt.Errorf("%w: rule %q has no check function", ErrInvalidConfiguration, rule.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rules[rule.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, rule.ID)
	}
	r.rules[rule.ID] = rule
	r.order = append(r.order, rule.ID)
	return nil
}

// Rule returns a registered rule by ID.
func (r *Registry) Rule(id string) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %s", ErrUnknownRule, id)
	}
	return rule, nil
}

// RulesFor returns the registered rules whose standard is in the requested
// set, in registration order. An empty set selects nothing.
func (r *Registry) RulesFor(standards []Standard) []Rule {
	want := make(map[Standard]bool, len(standards))
	for _, s := range standards {
		want[s] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Rule
	for _, id := range r.order {
		if rule := r.rules[id]; want[rule.Standard] {
			out = append(out, rule)
		}
	}
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Validate evaluates every rule of the requested standards against data and
// returns a fresh Result.
func (r *Registry) Validate(data Record, standards []Standard) Result {
	rules := r.RulesFor(standards)

	result := Result{Summary: make(map[Severity]int)}
	for _, rule := range rules {
		if v := rule.Check(data); v != nil {
			result.Violations = append(result.Violations, *v)
			result.Summary[v.Severity]++
		}
	}

	result.Passed = len(result.Violations) == 0
	if len(rules) == 0 {
		result.Score = 100
	} else {
		result.Score = 100 * float64(len(rules)-len(result.Violations)) / float64(len(rules))
	}
	result.Recommendations = buildRecommendations(result)
	return result
}

// ApplyAutoFixes walks violations in order, applies each rule's auto-fix when
// one exists and returns the fixed record copy, the applied rule IDs, and the
// violations that had no fix.
//
// Fixes are applied independently per violation; when two fixes touch the
// same field the later one wins. There is no conflict detection. Fixes are
// pure, so applying the result a second time is a no-op.
func (r *Registry) ApplyAutoFixes(data Record, violations []Violation) FixResult {
	fixed := data.Clone()
	result := FixResult{}

	for _, v := range violations {
		rule, err := r.Rule(v.RuleID)
		if err != nil || rule.AutoFix == nil {
			result.RemainingViolations = append(result.RemainingViolations, v)
			continue
		}
		fixed = rule.AutoFix(fixed)
		result.AppliedFixes = append(result.AppliedFixes, v.RuleID)
	}

	result.FixedData = fixed
	return result
}

// buildRecommendations derives triage text from a result's severity summary.
func buildRecommendations(result Result) []string {
	if len(result.Violations) == 0 {
		return nil
	}

	var recs []string
	if result.Summary[SeverityCritical] > 0 {
		recs = append(recs, fmt.Sprintf("resolve %d critical violation(s) before processing this record", result.Summary[SeverityCritical]))
	}
	if result.Summary[SeverityHigh] > 0 {
		recs = append(recs, fmt.Sprintf("schedule remediation for %d high-severity violation(s)", result.Summary[SeverityHigh]))
	}

	fixable := 0
	for _, v := range result.Violations {
		if v.AutoFixAvailable {
			fixable++
		}
	}
	if fixable > 0 {
		recs = append(recs, fmt.Sprintf("%d violation(s) can be auto-fixed with ApplyAutoFixes", fixable))
	}

	standards := make(map[Standard]bool)
	for _, v := range result.Violations {
		standards[v.Standard] = true
	}
	names := make([]string, 0, len(standards))
	for s := range standards {
		names = append(names, string(s))
	}
	sort.Strings(names)
	recs = append(recs, fmt.Sprintf("review findings against: %v", names))
	return recs
}

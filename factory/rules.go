/*
Package factory provides JSON to Go loan-rule conversion.

PURPOSE:
  Converts JSON rule definitions into circulation.LoanRule objects. This
  enables rule configuration without code changes - library staff can
  define circulation rules in JSON, and the factory creates the proper
  Go structs.

WHY JSON?
  - Non-developers can modify circulation rules
  - Easy integration with admin UI
  - Version control for rule definitions
  - Database storage of rule configs

JSON SCHEMA:
  {
    "id": "student-books",
    "name": "Students / Books",
    "member_type_id": "student",
    "collection_type_id": "general",
    "material_type_id": "book",
    "loan_limit": 5,
    "loan_period_days": 21,
    "reborrow_limit": 2,
    "fine_each_day": "0.50",
    "grace_period_days": 2
  }

WILDCARDS:
  Omitting a dimension (or setting it null) makes the rule match any
  value of that dimension. More specific rules win over wildcards.

KEY FEATURES:
  - Validates JSON structure and money amounts
  - Nullable dimensions map to wildcard matching
  - Round-trips rules back to JSON for admin display

USAGE:
  factory := NewRuleFactory()

  // From JSON string
  rule, err := factory.ParseRule(jsonString)

  // From preset (recommended for demos)
  rules, err := factory.ParseRuleSet(StandardLibraryRulesJSON())

SEE ALSO:
  - circulation/types.go: LoanRule type definition
  - circulation/rules.go: Specificity-based resolution
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/circulation-engine/circulation"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of a loan rule.
type RuleJSON struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	MemberTypeID     *string `json:"member_type_id,omitempty"`
	CollectionTypeID *string `json:"collection_type_id,omitempty"`
	MaterialTypeID   *string `json:"material_type_id,omitempty"`
	LoanLimit        int     `json:"loan_limit"`
	LoanPeriodDays   int     `json:"loan_period_days"`
	ReborrowLimit    int     `json:"reborrow_limit"`
	FineEachDay      string  `json:"fine_each_day"`
	GracePeriodDays  int     `json:"grace_period_days,omitempty"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rules to Go structs.
type RuleFactory struct{}

// NewRuleFactory creates a new rule factory.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRule parses a JSON string into a LoanRule.
func (f *RuleFactory) ParseRule(jsonStr string) (circulation.LoanRule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return circulation.LoanRule{}, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// ParseRuleSet parses a JSON array of rules.
func (f *RuleFactory) ParseRuleSet(jsonStr string) ([]circulation.LoanRule, error) {
	var rjs []RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rjs); err != nil {
		return nil, fmt.Errorf("failed to parse rule set JSON: %w", err)
	}

	rules := make([]circulation.LoanRule, 0, len(rjs))
	for _, rj := range rjs {
		rule, err := f.FromJSON(rj)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// FromJSON converts RuleJSON to a circulation.LoanRule.
func (f *RuleFactory) FromJSON(rj RuleJSON) (circulation.LoanRule, error) {
	if rj.ID == "" {
		return circulation.LoanRule{}, fmt.Errorf("rule requires an id")
	}

	fineEachDay := circulation.ZeroMoney()
	if rj.FineEachDay != "" {
		var err error
		fineEachDay, err = circulation.ParseMoney(rj.FineEachDay)
		if err != nil {
			return circulation.LoanRule{}, fmt.Errorf("rule %s: invalid fine_each_day: %w", rj.ID, err)
		}
	}
	if fineEachDay.IsNegative() {
		return circulation.LoanRule{}, fmt.Errorf("rule %s: fine_each_day must not be negative", rj.ID)
	}

	if rj.LoanPeriodDays < 0 {
		return circulation.LoanRule{}, fmt.Errorf("rule %s: loan_period_days must not be negative", rj.ID)
	}

	return circulation.LoanRule{
		ID:               circulation.RuleID(rj.ID),
		Name:             rj.Name,
		MemberTypeID:     rj.MemberTypeID,
		CollectionTypeID: rj.CollectionTypeID,
		MaterialTypeID:   rj.MaterialTypeID,
		LoanLimit:        rj.LoanLimit,
		LoanPeriodDays:   rj.LoanPeriodDays,
		ReborrowLimit:    rj.ReborrowLimit,
		FineEachDay:      fineEachDay,
		GracePeriodDays:  rj.GracePeriodDays,
	}, nil
}

// ToJSON converts a LoanRule to RuleJSON.
func (f *RuleFactory) ToJSON(rule circulation.LoanRule) RuleJSON {
	return RuleJSON{
		ID:               string(rule.ID),
		Name:             rule.Name,
		MemberTypeID:     rule.MemberTypeID,
		CollectionTypeID: rule.CollectionTypeID,
		MaterialTypeID:   rule.MaterialTypeID,
		LoanLimit:        rule.LoanLimit,
		LoanPeriodDays:   rule.LoanPeriodDays,
		ReborrowLimit:    rule.ReborrowLimit,
		FineEachDay:      rule.FineEachDay.String(),
		GracePeriodDays:  rule.GracePeriodDays,
	}
}

// =============================================================================
// PRESET RULE SETS
// =============================================================================

// StandardLibraryRulesJSON returns a rule set covering a typical public
// library: a wildcard default, member-type overrides, and collection-scoped
// rules for media and course reserves. The overrides are shaped so no
// lookup can tie: the two-dimension rules beat every one-dimension rule
// they overlap with, and rules at the same specificity are disjoint.
func StandardLibraryRulesJSON() string {
	return `[
		{
			"id": "default",
			"name": "Default",
			"loan_limit": 5,
			"loan_period_days": 21,
			"reborrow_limit": 2,
			"fine_each_day": "0.50",
			"grace_period_days": 0
		},
		{
			"id": "student-default",
			"name": "Students",
			"member_type_id": "student",
			"loan_limit": 10,
			"loan_period_days": 28,
			"reborrow_limit": 3,
			"fine_each_day": "0.25",
			"grace_period_days": 2
		},
		{
			"id": "faculty-default",
			"name": "Faculty",
			"member_type_id": "faculty",
			"loan_limit": 20,
			"loan_period_days": 56,
			"reborrow_limit": 5,
			"fine_each_day": "0.10",
			"grace_period_days": 7
		},
		{
			"id": "media-dvd",
			"name": "Media / DVDs",
			"collection_type_id": "media",
			"material_type_id": "dvd",
			"loan_limit": 3,
			"loan_period_days": 7,
			"reborrow_limit": 1,
			"fine_each_day": "1.00",
			"grace_period_days": 0
		},
		{
			"id": "student-reserve",
			"name": "Students / Course Reserve",
			"member_type_id": "student",
			"collection_type_id": "reserve",
			"loan_limit": 2,
			"loan_period_days": 3,
			"reborrow_limit": 0,
			"fine_each_day": "2.00",
			"grace_period_days": 0
		}
	]`
}

// ShortLoanRulesJSON returns a small aggressive rule set for demos of
// fine accrual: one-day loans with no grace.
func ShortLoanRulesJSON() string {
	return `[
		{
			"id": "short-default",
			"name": "Short Loans",
			"loan_limit": 3,
			"loan_period_days": 1,
			"reborrow_limit": 1,
			"fine_each_day": "1.00",
			"grace_period_days": 0
		}
	]`
}

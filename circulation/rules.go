/*
rules.go - Loan rule resolution

PURPOSE:
  Finds the single loan rule governing a (member type, collection type,
  material type) combination. The rule table stores flat rows with nullable
  wildcard dimensions; resolution makes the implicit priority explicit with
  a total, deterministic tie-break.

SELECTION POLICY:
  1. Collect rules whose non-nil dimensions match the input exactly.
  2. Prefer the rule with the greatest number of non-nil (specific)
     dimensions.
  3. Two or more rules at the same winning specificity is a data-integrity
     fault: resolution fails with AmbiguousRuleError rather than guessing.
  4. No match at all fails with NoApplicableRuleError.

EXAMPLE:
  Rules:
    {member: "student", collection: nil,   material: nil}   specificity 1
    {member: "student", collection: "ref", material: nil}   specificity 2
  Input ("student", "ref", "book") resolves to the second rule.

SEE ALSO:
  - types.go: LoanRule.Matches and Specificity
  - facade.go: Callers abort the whole operation on resolution failure
*/
package circulation

import "context"

// =============================================================================
// RULE RESOLVER
// =============================================================================

// Resolver selects the governing loan rule for a borrowing combination.
type Resolver struct {
	Rules RuleStore
}

// NewResolver creates a resolver reading rules from the given store.
func NewResolver(rules RuleStore) *Resolver {
	return &Resolver{Rules: rules}
}

// Resolve returns the most specific matching rule.
// Fails with NoApplicableRuleError when nothing matches and with
// AmbiguousRuleError when more than one rule ties at the winning
// specificity. Both are hard failures the caller must not default around.
func (r *Resolver) Resolve(ctx context.Context, memberTypeID, collectionTypeID, materialTypeID string) (LoanRule, error) {
	rules, err := r.Rules.ListRules(ctx)
	if err != nil {
		return LoanRule{}, err
	}
	return SelectRule(rules, memberTypeID, collectionTypeID, materialTypeID)
}

// SelectRule applies the selection policy to an in-memory rule set.
// Pure function - no I/O, no side effects.
func SelectRule(rules []LoanRule, memberTypeID, collectionTypeID, materialTypeID string) (LoanRule, error) {
	var (
		best     LoanRule
		bestSpec = -1
		ties     []RuleID
	)

	for _, rule := range rules {
		if !rule.Matches(memberTypeID, collectionTypeID, materialTypeID) {
			continue
		}
		spec := rule.Specificity()
		switch {
		case spec > bestSpec:
			best = rule
			bestSpec = spec
			ties = ties[:0]
		case spec == bestSpec:
			ties = append(ties, rule.ID)
		}
	}

	if bestSpec < 0 {
		return LoanRule{}, &NoApplicableRuleError{
			MemberTypeID:     memberTypeID,
			CollectionTypeID: collectionTypeID,
			MaterialTypeID:   materialTypeID,
		}
	}

	if len(ties) > 0 {
		return LoanRule{}, &AmbiguousRuleError{
			MemberTypeID:     memberTypeID,
			CollectionTypeID: collectionTypeID,
			MaterialTypeID:   materialTypeID,
			Specificity:      bestSpec,
			RuleIDs:          append([]RuleID{best.ID}, ties...),
		}
	}

	return best, nil
}

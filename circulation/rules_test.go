package circulation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/circulation-engine/circulation"
	"github.com/warp/circulation-engine/circulation/store"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func wildcardRule(id string) circulation.LoanRule {
	return circulation.LoanRule{
		ID:             circulation.RuleID(id),
		Name:           "Default",
		LoanLimit:      5,
		LoanPeriodDays: 21,
		ReborrowLimit:  2,
		FineEachDay:    circulation.MustParseMoney("0.50"),
	}
}

// =============================================================================
// SPECIFICITY SELECTION TESTS
// =============================================================================

func TestSelectRule_WildcardMatchesAnything(t *testing.T) {
	// GIVEN: Only a full-wildcard rule
	// WHEN: Resolving any combination
	// THEN: The wildcard rule wins

	rules := []circulation.LoanRule{wildcardRule("default")}

	rule, err := circulation.SelectRule(rules, "student", "general", "book")
	require.NoError(t, err)
	assert.Equal(t, circulation.RuleID("default"), rule.ID)
}

func TestSelectRule_SpecificBeatsWildcard(t *testing.T) {
	// GIVEN: A wildcard rule and a member-type-specific rule
	// WHEN: Resolving for that member type
	// THEN: The specific rule wins regardless of slice order

	specific := wildcardRule("student-rule")
	specific.MemberTypeID = circulation.Dim("student")

	for _, rules := range [][]circulation.LoanRule{
		{wildcardRule("default"), specific},
		{specific, wildcardRule("default")},
	} {
		rule, err := circulation.SelectRule(rules, "student", "general", "book")
		require.NoError(t, err)
		assert.Equal(t, circulation.RuleID("student-rule"), rule.ID)
	}
}

func TestSelectRule_MoreDimensionsWin(t *testing.T) {
	// GIVEN: Rules at specificity 1, 2, and 3
	// WHEN: Resolving a combination all three match
	// THEN: The three-dimension rule wins

	one := wildcardRule("one")
	one.MemberTypeID = circulation.Dim("student")

	two := wildcardRule("two")
	two.MemberTypeID = circulation.Dim("student")
	two.CollectionTypeID = circulation.Dim("reserve")

	three := wildcardRule("three")
	three.MemberTypeID = circulation.Dim("student")
	three.CollectionTypeID = circulation.Dim("reserve")
	three.MaterialTypeID = circulation.Dim("book")

	rule, err := circulation.SelectRule(
		[]circulation.LoanRule{one, two, three},
		"student", "reserve", "book")
	require.NoError(t, err)
	assert.Equal(t, circulation.RuleID("three"), rule.ID)
}

func TestSelectRule_NonMatchingDimensionExcludes(t *testing.T) {
	// GIVEN: A rule pinned to member type "faculty"
	// WHEN: Resolving for a student
	// THEN: The faculty rule is excluded, the wildcard wins

	faculty := wildcardRule("faculty-rule")
	faculty.MemberTypeID = circulation.Dim("faculty")

	rule, err := circulation.SelectRule(
		[]circulation.LoanRule{faculty, wildcardRule("default")},
		"student", "general", "book")
	require.NoError(t, err)
	assert.Equal(t, circulation.RuleID("default"), rule.ID)
}

func TestSelectRule_NoMatch_Fails(t *testing.T) {
	// GIVEN: Only a faculty rule
	// WHEN: Resolving for a student
	// THEN: NoApplicableRuleError - never a silent default

	faculty := wildcardRule("faculty-rule")
	faculty.MemberTypeID = circulation.Dim("faculty")

	_, err := circulation.SelectRule(
		[]circulation.LoanRule{faculty}, "student", "general", "book")

	assert.ErrorIs(t, err, circulation.ErrNoApplicableRule)
	var noRule *circulation.NoApplicableRuleError
	require.ErrorAs(t, err, &noRule)
	assert.Equal(t, "student", noRule.MemberTypeID)
}

func TestSelectRule_EmptyRuleTable_Fails(t *testing.T) {
	_, err := circulation.SelectRule(nil, "student", "general", "book")
	assert.ErrorIs(t, err, circulation.ErrNoApplicableRule)
}

func TestSelectRule_Tie_Fails(t *testing.T) {
	// GIVEN: Two rules that match at the same specificity
	//   - member_type=student (specificity 1)
	//   - material_type=book  (specificity 1)
	// WHEN: Resolving student/general/book
	// THEN: AmbiguousRuleError naming both rules - never a guess

	byMember := wildcardRule("by-member")
	byMember.MemberTypeID = circulation.Dim("student")

	byMaterial := wildcardRule("by-material")
	byMaterial.MaterialTypeID = circulation.Dim("book")

	_, err := circulation.SelectRule(
		[]circulation.LoanRule{byMember, byMaterial},
		"student", "general", "book")

	assert.ErrorIs(t, err, circulation.ErrAmbiguousRule)
	var ambiguous *circulation.AmbiguousRuleError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, 1, ambiguous.Specificity)
	assert.ElementsMatch(t,
		[]circulation.RuleID{"by-member", "by-material"},
		ambiguous.RuleIDs)
}

func TestSelectRule_TieBrokenByMoreSpecificRule(t *testing.T) {
	// GIVEN: Two rules tied at specificity 1 plus one at specificity 2
	// WHEN: All three match
	// THEN: The specificity-2 rule wins; the tie below it is irrelevant

	byMember := wildcardRule("by-member")
	byMember.MemberTypeID = circulation.Dim("student")

	byMaterial := wildcardRule("by-material")
	byMaterial.MaterialTypeID = circulation.Dim("book")

	both := wildcardRule("both")
	both.MemberTypeID = circulation.Dim("student")
	both.MaterialTypeID = circulation.Dim("book")

	rule, err := circulation.SelectRule(
		[]circulation.LoanRule{byMember, byMaterial, both},
		"student", "general", "book")
	require.NoError(t, err)
	assert.Equal(t, circulation.RuleID("both"), rule.ID)
}

// =============================================================================
// RESOLVER TESTS (store-backed)
// =============================================================================

func TestResolver_Resolve(t *testing.T) {
	// GIVEN: A rule table in the store
	// WHEN: Resolving through the Resolver
	// THEN: Same selection semantics as SelectRule

	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.SaveRule(ctx, wildcardRule("default")))
	student := wildcardRule("student-rule")
	student.MemberTypeID = circulation.Dim("student")
	require.NoError(t, mem.SaveRule(ctx, student))

	resolver := circulation.NewResolver(mem)

	rule, err := resolver.Resolve(ctx, "student", "general", "book")
	require.NoError(t, err)
	assert.Equal(t, circulation.RuleID("student-rule"), rule.ID)

	rule, err = resolver.Resolve(ctx, "public", "general", "book")
	require.NoError(t, err)
	assert.Equal(t, circulation.RuleID("default"), rule.ID)
}

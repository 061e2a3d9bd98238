package evaluation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentContainsOnAnyRule(t *testing.T) {
	segment := &Segment{
		UniqueID: "vips",
		Version:  1,
		Rules: []*SegmentRule{
			{Conditions: []*Condition{
				NewCondition("plan", "string", "is one of", []string{"enterprise"}),
			}},
			{Conditions: []*Condition{
				NewCondition("city", "string", "is one of", []string{"Paris"}),
			}},
		},
	}

	assert.True(t, segment.Contains(NewUser().StableRollout("a").With("city", "Paris"), nil))
	assert.True(t, segment.Contains(NewUser().StableRollout("b").With("plan", "enterprise"), nil))
	assert.False(t, segment.Contains(NewUser().StableRollout("c").With("plan", "free").With("city", "Berlin"), nil))
}

func TestSegmentRuleIsConjunction(t *testing.T) {
	rule := &SegmentRule{Conditions: []*Condition{
		NewCondition("plan", "string", "is one of", []string{"enterprise"}),
		NewCondition("city", "string", "is one of", []string{"Paris"}),
	}}

	both := NewUser().StableRollout("a").With("plan", "enterprise").With("city", "Paris")
	one := NewUser().StableRollout("b").With("plan", "enterprise").With("city", "Berlin")

	assert.True(t, rule.Hit(both, nil).Hit)
	assert.False(t, rule.Hit(one, nil).Hit)
}

func TestSegmentRuleMissingAttributeCarriesWarning(t *testing.T) {
	rule := &SegmentRule{Conditions: []*Condition{
		NewCondition("plan", "string", "is one of", []string{"enterprise"}),
	}}

	result := rule.Hit(NewUser().StableRollout("u1"), nil)

	assert.False(t, result.Hit)
	assert.Equal(t, "Warning: User with key 'u1' does not have attribute name 'plan'", result.Reason)
}

func TestSegmentRuleDatetimeConditionNeedsNoAttribute(t *testing.T) {
	rule := &SegmentRule{Conditions: []*Condition{
		NewCondition("signup", "datetime", "after", []string{"0"}),
	}}

	assert.True(t, rule.Hit(NewUser().StableRollout("u1"), nil).Hit)
}

func TestSegmentDecode(t *testing.T) {
	raw := `{
		"uniqueId": "some_segment_id",
		"version": 2,
		"rules": [
			{"conditions": [{"subject": "city", "type": "string", "predicate": "is one of", "objects": ["4"]}]}
		]
	}`
	var segment Segment
	assert.NoError(t, json.Unmarshal([]byte(raw), &segment))
	assert.Equal(t, "some_segment_id", segment.UniqueID)
	assert.True(t, segment.Contains(NewUser().StableRollout("u").With("city", "4"), nil))
}

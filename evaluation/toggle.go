package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Prerequisite requires another toggle to evaluate to a specific value before
// this toggle's rules apply.
type Prerequisite struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Toggle is the evaluation unit: enablement, prerequisites, ordered rules and
// the default/disabled payouts over an indexed variation list. Toggles are
// constructed wholesale by decoding a ruleset snapshot and are immutable
// afterwards.
type Toggle struct {
	Key               string          `json:"key"`
	Enabled           bool            `json:"enabled"`
	TrackAccessEvents bool            `json:"trackAccessEvents"`
	LastModified      int64           `json:"lastModified"`
	Version           uint64          `json:"version"`
	DisabledServe     *Serve          `json:"disabledServe"`
	DefaultServe      *Serve          `json:"defaultServe"`
	Rules             []*Rule         `json:"rules"`
	Variations        []interface{}   `json:"variations"`
	Prerequisites     []*Prerequisite `json:"prerequisites"`
	ForClient         bool            `json:"forClient"`
}

// evalFrame is one toggle on the prerequisite work stack. next is the index
// of the next prerequisite to resolve.
type evalFrame struct {
	toggle *Toggle
	depth  int
	next   int
}

// Eval decides which variation the user receives. It never panics; data
// errors, unresolvable prerequisites and depth overflows all degrade to a
// result carrying the caller's default value and an explanatory reason.
//
// Prerequisites are resolved iteratively with an explicit frame stack, so a
// deep or cyclic toggle graph consumes the depth budget rather than the call
// stack. The depth budget is the only cycle guard. When prerequisites are
// unmet or the budget is exhausted, the defaultServe payout applies: the
// rules did not apply, so the default rollout decides.
func (t *Toggle) Eval(user *User, toggles map[string]*Toggle, segments map[string]*Segment, defaultValue interface{}, maxPrerequisiteDepth int) Result {
	stack := []*evalFrame{{toggle: t, depth: maxPrerequisiteDepth}}
	var completed *Result

	pop := func(res Result) {
		stack = stack[:len(stack)-1]
		completed = &res
	}
	fallback := func(reason string) Result {
		return t.hitValue(t.DefaultServe.EvalIndex(user, t.Key), defaultValue, nil, reason)
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		tg := top.toggle

		var dv interface{}
		if len(stack) == 1 {
			dv = defaultValue
		}

		if top.next == 0 && completed == nil {
			if !tg.Enabled {
				pop(tg.hitValue(tg.DisabledServe.EvalIndex(user, tg.Key), dv, nil, "Toggle disabled."))
				continue
			}
			if top.depth <= 0 {
				return fallback("Prerequisite depth overflow")
			}
		}

		if completed != nil {
			// A prerequisite of tg just resolved; its value must equal the
			// required value, compared in canonical JSON form.
			required := tg.Prerequisites[top.next-1].Value
			res := *completed
			completed = nil
			if res.Value == nil || !jsonEqual(res.Value, required) {
				pop(tg.hitValue(tg.DefaultServe.EvalIndex(user, tg.Key), dv, nil, "Default rule hit."))
				continue
			}
		}

		if top.next < len(tg.Prerequisites) {
			pr := tg.Prerequisites[top.next]
			top.next++
			dep, ok := toggles[pr.Key]
			if !ok {
				return fallback("Prerequisite not exist: " + pr.Key)
			}
			stack = append(stack, &evalFrame{toggle: dep, depth: top.depth - 1})
			continue
		}

		pop(tg.evalRules(user, segments, dv))
	}

	return *completed
}

// evalRules walks the rules in order, first match wins; with no match the
// default serve decides, carrying any trailing missing-attribute warning.
func (t *Toggle) evalRules(user *User, segments map[string]*Segment, defaultValue interface{}) Result {
	var warning string
	for i, rule := range t.Rules {
		hit := rule.Hit(user, segments, t.Key)
		if hit.Hit {
			idx := i
			return t.hitValue(hit, defaultValue, &idx, "")
		}
		warning = hit.Reason
	}
	reason := strings.TrimSpace("Default rule hit. " + warning)
	return t.hitValue(t.DefaultServe.EvalIndex(user, t.Key), defaultValue, nil, reason)
}

func (t *Toggle) hitValue(hit HitResult, defaultValue interface{}, ruleIndex *int, reasonOverride string) Result {
	value := defaultValue
	reason := hit.Reason
	if hit.Index != nil {
		if *hit.Index < 0 || *hit.Index >= len(t.Variations) {
			// Out-of-range variation index is a data error, not a crash.
			return Result{
				Value:   defaultValue,
				Version: t.Version,
				Reason:  fmt.Sprintf("Variation index %d out of range", *hit.Index),
			}
		}
		value = coerceValue(t.Variations[*hit.Index], defaultValue)
		if ruleIndex != nil {
			reason = fmt.Sprintf("Rule %d hit", *ruleIndex)
		}
	}
	if reasonOverride != "" {
		reason = reasonOverride
	}
	return Result{
		Value:          value,
		Version:        t.Version,
		RuleIndex:      ruleIndex,
		VariationIndex: hit.Index,
		Reason:         reason,
	}
}

// coerceValue widens an integer variation to float64 when the caller's
// default value is numeric. This is the only implicit coercion the evaluator
// performs; other mismatches are left to the typed accessors.
func coerceValue(variation, defaultValue interface{}) interface{} {
	if _, ok := defaultValue.(float64); !ok {
		return variation
	}
	switch v := variation.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return variation
}

func jsonEqual(a, b interface{}) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

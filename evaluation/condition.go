package evaluation

import (
	"encoding/json"
	"log/slog"
)

// Condition is a single predicate over a user attribute, a datetime, or
// segment membership. The (type, predicate) pair selects a matcher from the
// static registry when the condition is decoded; unknown pairs resolve to an
// always-false matcher.
type Condition struct {
	Subject   string   `json:"subject"`
	Type      string   `json:"type"`
	Predicate string   `json:"predicate"`
	Objects   []string `json:"objects"`

	match matcher
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	type plain Condition
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Condition(p)
	c.match = matcherFor(c.Type, c.Predicate)
	return nil
}

// NewCondition builds a condition outside of JSON decoding, resolving its
// matcher the same way.
func NewCondition(subject, conditionType, predicate string, objects []string) *Condition {
	return &Condition{
		Subject:   subject,
		Type:      conditionType,
		Predicate: predicate,
		Objects:   objects,
		match:     matcherFor(conditionType, predicate),
	}
}

// Match reports whether the condition holds for the user. Matcher failures
// never escape: a panicking matcher counts as a non-match.
func (c *Condition) Match(user *User, segments map[string]*Segment) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().Error("condition matcher failed",
				"type", c.Type, "predicate", c.Predicate, "error", r)
			matched = false
		}
	}()
	if c.match == nil {
		c.match = matcherFor(c.Type, c.Predicate)
	}
	return c.match(matchContext{
		Subject:  c.Subject,
		Objects:  c.Objects,
		User:     user,
		Segments: segments,
	})
}

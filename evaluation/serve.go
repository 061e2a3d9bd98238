package evaluation

import "fmt"

// Serve is a payout decision: either a fixed variation index or a percentage
// split. Select taking precedence over Split makes this a tagged variant.
type Serve struct {
	Select *int   `json:"select"`
	Split  *Split `json:"split"`
}

// EvalIndex resolves the serve to a variation index for the user.
func (s *Serve) EvalIndex(user *User, toggleKey string) HitResult {
	if s == nil {
		return HitResult{Hit: false, Reason: "Serve not configured"}
	}
	if s.Select != nil {
		return HitResult{Hit: true, Index: s.Select}
	}
	if s.Split == nil {
		return HitResult{Hit: false, Reason: "Serve has neither select nor split"}
	}
	return s.Split.FindIndex(user, toggleKey)
}

// Rule is an ordered condition list (logical AND) plus the payout to serve
// when every condition matches.
type Rule struct {
	Serve      *Serve       `json:"serve"`
	Conditions []*Condition `json:"conditions"`
}

// Hit evaluates the rule's conditions for the user and, when they all match,
// resolves the serve. A condition over an attribute the user lacks is a
// non-match carrying a warning reason.
func (r *Rule) Hit(user *User, segments map[string]*Segment, toggleKey string) HitResult {
	if user == nil || toggleKey == "" {
		return HitResult{Hit: false}
	}
	for _, condition := range r.Conditions {
		if condition.Type != "segment" && condition.Type != "datetime" && !user.ContainAttr(condition.Subject) {
			return HitResult{
				Hit:    false,
				Reason: fmt.Sprintf("Warning: User with key '%s' does not have attribute name '%s'", user.Key, condition.Subject),
			}
		}
		if !condition.Match(user, segments) {
			return HitResult{Hit: false}
		}
	}
	return r.Serve.EvalIndex(user, toggleKey)
}

package evaluation

import "fmt"

// Segment is a named, versioned set of membership rules. A user belongs to
// the segment when any of its rules is fully satisfied.
type Segment struct {
	UniqueID string         `json:"uniqueId"`
	Version  uint64         `json:"version"`
	Rules    []*SegmentRule `json:"rules"`
}

// Contains reports whether the user belongs to this segment.
func (s *Segment) Contains(user *User, segments map[string]*Segment) bool {
	for _, rule := range s.Rules {
		if rule.Hit(user, segments).Hit {
			return true
		}
	}
	return false
}

// SegmentRule is an ordered condition list evaluated as a logical AND,
// short-circuiting on the first non-match.
type SegmentRule struct {
	Conditions []*Condition `json:"conditions"`
}

// Hit reports whether all conditions match. Conditions over user attributes
// require the attribute to be present; segment and datetime conditions source
// their own values.
func (r *SegmentRule) Hit(user *User, segments map[string]*Segment) HitResult {
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
	return HitResult{Hit: true}
}

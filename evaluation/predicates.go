package evaluation

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/blang/semver/v4"
	"github.com/itlightning/dateparse"
	"golang.org/x/exp/slices"
)

const numberTolerance = 1e-6

type matchContext struct {
	Subject  string
	Objects  []string
	User     *User
	Segments map[string]*Segment
}

type matcher func(ctx matchContext) bool

// matchers maps (condition type, predicate) to a matcher. Conditions resolve
// against it when they are decoded. Populated in init rather than a composite
// literal: the segment matchers reach back into this registry through
// Condition.Match, which a package-level initializer would make a cycle.
var matchers map[string]map[string]matcher

func init() {
	matchers = map[string]map[string]matcher{
		"string": {
			"is one of": stringMatcher(func(objs []string, target string) bool {
				return slices.Contains(objs, target)
			}),
			"is not any of": stringMatcher(func(objs []string, target string) bool {
				return !slices.Contains(objs, target)
			}),
			"starts with":          stringMatcher(anyObj(strings.HasPrefix)),
			"ends with":            stringMatcher(anyObj(strings.HasSuffix)),
			"contains":             stringMatcher(anyObj(strings.Contains)),
			"does not start with":  stringMatcher(noObj(strings.HasPrefix)),
			"does not end with":    stringMatcher(noObj(strings.HasSuffix)),
			"does not contain":     stringMatcher(noObj(strings.Contains)),
			"matches regex":        stringMatcher(anyRegex),
			"does not match regex": stringMatcher(noRegex),
		},
		"number": {
			"=": numberMatcher(func(objs []float64, target float64) bool {
				return slices.ContainsFunc(objs, func(o float64) bool { return abs(target-o) < numberTolerance })
			}),
			"!=": numberMatcher(func(objs []float64, target float64) bool {
				return !slices.ContainsFunc(objs, func(o float64) bool { return abs(target-o) < numberTolerance })
			}),
			">": numberMatcher(func(objs []float64, target float64) bool {
				return slices.ContainsFunc(objs, func(o float64) bool { return target > o })
			}),
			">=": numberMatcher(func(objs []float64, target float64) bool {
				return slices.ContainsFunc(objs, func(o float64) bool { return target >= o })
			}),
			"<": numberMatcher(func(objs []float64, target float64) bool {
				return slices.ContainsFunc(objs, func(o float64) bool { return target < o })
			}),
			"<=": numberMatcher(func(objs []float64, target float64) bool {
				return slices.ContainsFunc(objs, func(o float64) bool { return target <= o })
			}),
		},
		"semver": {
			"=":  semverMatcher(func(cmp int) bool { return cmp == 0 }, true),
			"!=": semverMatcher(func(cmp int) bool { return cmp != 0 }, false),
			">":  semverMatcher(func(cmp int) bool { return cmp > 0 }, true),
			">=": semverMatcher(func(cmp int) bool { return cmp >= 0 }, true),
			"<":  semverMatcher(func(cmp int) bool { return cmp < 0 }, true),
			"<=": semverMatcher(func(cmp int) bool { return cmp <= 0 }, true),
		},
		"datetime": {
			"after":  datetimeMatcher(func(target, o int64) bool { return target >= o }),
			"before": datetimeMatcher(func(target, o int64) bool { return target < o }),
		},
		"segment": {
			"is in":     segmentIsIn,
			"is not in": segmentIsNotIn,
		},
	}
}

// matcherFor resolves the matcher for a (type, predicate) pair. Unknown pairs
// fail closed with an always-false matcher.
func matcherFor(conditionType, predicate string) matcher {
	if byPredicate, ok := matchers[conditionType]; ok {
		if m, ok := byPredicate[predicate]; ok {
			return m
		}
	}
	slog.Default().Error("invalid condition type and predicate, matcher will always return false",
		"type", conditionType, "predicate", predicate)
	return func(matchContext) bool { return false }
}

func stringMatcher(check func(objs []string, target string) bool) matcher {
	return func(ctx matchContext) bool {
		target, ok := ctx.User.Attributes[ctx.Subject]
		return ok && check(ctx.Objects, target)
	}
}

func anyObj(pred func(target, obj string) bool) func(objs []string, target string) bool {
	return func(objs []string, target string) bool {
		return slices.ContainsFunc(objs, func(o string) bool { return pred(target, o) })
	}
}

func noObj(pred func(target, obj string) bool) func(objs []string, target string) bool {
	return func(objs []string, target string) bool {
		return !slices.ContainsFunc(objs, func(o string) bool { return pred(target, o) })
	}
}

// anyRegex reports whether any pattern matches the target. A pattern that
// does not compile fails the whole condition closed.
func anyRegex(objs []string, target string) bool {
	for _, pattern := range objs {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		if re.MatchString(target) {
			return true
		}
	}
	return false
}

func noRegex(objs []string, target string) bool {
	for _, pattern := range objs {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		if re.MatchString(target) {
			return false
		}
	}
	return true
}

func numberMatcher(check func(objs []float64, target float64) bool) matcher {
	return func(ctx matchContext) bool {
		raw, ok := ctx.User.Attributes[ctx.Subject]
		if !ok || strings.TrimSpace(raw) == "" {
			return false
		}
		target, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return false
		}
		objs := make([]float64, 0, len(ctx.Objects))
		for _, o := range ctx.Objects {
			v, err := strconv.ParseFloat(strings.TrimSpace(o), 64)
			if err != nil {
				return false
			}
			objs = append(objs, v)
		}
		return check(objs, target)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// semverMatcher compares the user's version against each operand.
// matchAny hits when any comparison satisfies; otherwise all must satisfy
// ("!=" must hold against every operand).
func semverMatcher(satisfies func(cmp int) bool, matchAny bool) matcher {
	return func(ctx matchContext) bool {
		raw, ok := ctx.User.Attributes[ctx.Subject]
		if !ok || strings.TrimSpace(raw) == "" {
			return false
		}
		target, err := semver.ParseTolerant(raw)
		if err != nil {
			return false
		}
		for _, o := range ctx.Objects {
			v, err := semver.ParseTolerant(o)
			if err != nil {
				return false
			}
			ok := satisfies(target.Compare(v))
			if matchAny && ok {
				return true
			}
			if !matchAny && !ok {
				return false
			}
		}
		return !matchAny
	}
}

func datetimeMatcher(satisfies func(target, obj int64) bool) matcher {
	return func(ctx matchContext) bool {
		target := time.Now().Unix()
		if raw, ok := ctx.User.Attributes[ctx.Subject]; ok && strings.TrimSpace(raw) != "" {
			parsed, ok := parseEpochSeconds(raw)
			if !ok {
				return false
			}
			target = parsed
		}
		for _, o := range ctx.Objects {
			obj, ok := parseEpochSeconds(o)
			if !ok {
				return false
			}
			if satisfies(target, obj) {
				return true
			}
		}
		return false
	}
}

// parseEpochSeconds accepts epoch-seconds strings as on the wire, falling
// back to parseable timestamps like "2024-01-02 15:04:05".
func parseEpochSeconds(s string) (int64, bool) {
	if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return v, true
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return 0, false
	}
	return t.Unix(), true
}

// segmentIsIn hits when the user belongs to any of the named segments.
func segmentIsIn(ctx matchContext) bool {
	for _, id := range ctx.Objects {
		if seg, ok := ctx.Segments[id]; ok && seg.Contains(ctx.User, ctx.Segments) {
			return true
		}
	}
	return false
}

// segmentIsNotIn is the negation of "the user belongs to all named segments",
// not of "any". This asymmetry matches the server's evaluation.
func segmentIsNotIn(ctx matchContext) bool {
	for _, id := range ctx.Objects {
		seg, ok := ctx.Segments[id]
		if !ok || !seg.Contains(ctx.User, ctx.Segments) {
			return true
		}
	}
	return false
}

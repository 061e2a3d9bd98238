package evaluation

// HitResult is the outcome of resolving a serve or rule: whether it hit,
// which variation index it selected, and an optional human-readable reason.
type HitResult struct {
	Hit    bool
	Index  *int
	Reason string
}

// Result is the outcome of a single toggle evaluation.
type Result struct {
	Value          interface{}
	Version        uint64
	RuleIndex      *int
	VariationIndex *int
	Reason         string
}

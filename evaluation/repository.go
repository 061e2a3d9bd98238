package evaluation

// Repository is the wire-format ruleset snapshot consumed by a synchronizer:
// all toggles and segments plus an optional debug-event deadline in epoch
// milliseconds. Field names are part of the wire contract.
type Repository struct {
	Toggles        map[string]*Toggle  `json:"toggles"`
	Segments       map[string]*Segment `json:"segments"`
	DebugUntilTime *int64              `json:"debugUntilTime"`
}

package featureprobe

import (
	"errors"
	"fmt"
)

// ErrBlankServerSDKKey is returned by NewClient when no SDK key is provided.
// It is the only error the client surfaces; evaluation and telemetry degrade
// instead of failing.
var ErrBlankServerSDKKey = errors.New("server SDK key is required and must not be blank")

// apiError reports a non-success response from the FeatureProbe API.
type apiError struct {
	status int
	url    string
}

func (e apiError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.status, e.url)
}

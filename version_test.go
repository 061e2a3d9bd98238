package featureprobe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetUserAgent(t *testing.T) {
	agent := getUserAgent()
	assert.True(t, strings.HasPrefix(agent, "featureprobe-go-sdk/"), agent)
}

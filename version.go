package featureprobe

import (
	"fmt"
	"runtime/debug"
)

// getUserAgent returns the User-Agent header value in the format
// "featureprobe-go-sdk/<version>", or "featureprobe-go-sdk/unknown" when the
// version cannot be determined (e.g. during development).
func getUserAgent() string {
	const sdkName = "featureprobe-go-sdk"
	const unknownVersion = "unknown"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Sprintf("%s/%s", sdkName, unknownVersion)
	}

	version := info.Main.Version
	if version == "" || version == "(devel)" {
		return fmt.Sprintf("%s/%s", sdkName, unknownVersion)
	}

	return fmt.Sprintf("%s/%s", sdkName, version)
}

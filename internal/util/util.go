package util

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/mileusna/useragent"
)

// HashToken returns the hex encoded SHA-256 digest of token.
// Refresh tokens are stored and looked up by this value only.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

// ClassifyUserAgent derives a coarse browser and operating system label from a User-Agent header.
func ClassifyUserAgent(userAgent string) (browser, os string) {
	if userAgent == "" {
		return unknownAgent, unknownAgent
	}

	ua := useragent.Parse(userAgent)

	return labelOrUnknown(browserLabels, ua.Name), labelOrUnknown(osLabels, ua.OS)
}

const unknownAgent = "Unknown"

var browserLabels = map[string]string{
	useragent.Chrome:  "Chrome",
	useragent.Edge:    "Edge",
	useragent.Firefox: "Firefox",
	useragent.Safari:  "Safari",
	useragent.Opera:   "Opera",
}

var osLabels = map[string]string{
	useragent.Windows: "Windows",
	useragent.Android: "Android",
	useragent.IOS:     "iOS",
	useragent.MacOS:   "Mac",
	useragent.Linux:   "Linux",
}

func labelOrUnknown(labels map[string]string, name string) string {
	if label, ok := labels[name]; ok {
		return label
	}

	return unknownAgent
}

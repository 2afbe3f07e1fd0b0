package util

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// GenerateID returns a time-prefixed identifier with a random suffix so that
// records created within the same second do not collide.
func GenerateID() string {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		return time.Now().Format("20060102150405.000000000")
	}
	return time.Now().Format("20060102150405") + "-" + hex.EncodeToString(suffix)
}

package feature

import (
	"crypto/sha256"
	"encoding/binary"
)

// Bucket maps (featureKey, subjectID) to [0,99] using the first eight bytes
// of SHA-256("featureKey:subjectID"). The result is stable across processes
// and uncorrelated between feature keys.
func Bucket(featureKey, subjectID string) int {
	sum := sha256.Sum256([]byte(featureKey + ":" + subjectID))
	return int(binary.BigEndian.Uint64(sum[:8]) % 100)
}

// InRollout reports whether the subject falls inside a percent rollout.
// 0 excludes everyone and 100 includes everyone; otherwise an anonymous
// subject is excluded.
func InRollout(featureKey, subjectID string, percent int) bool {
	switch {
	case percent <= 0:
		return false
	case percent >= 100:
		return true
	case subjectID == "":
		return false
	}
	return Bucket(featureKey, subjectID) < percent
}

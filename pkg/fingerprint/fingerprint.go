package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"regexp"
	"slices"
	"strings"
)

// Header carries a fingerprint computed by client-side code. It wins over
// the header-derived one when well formed.
const Header = "X-Device-Fingerprint"

var clientFingerprint = regexp.MustCompile(`^[A-Za-z0-9_-]{16,128}$`)

// stableHeaders are sent by browsers on every navigation and differ between
// engines. Their presence, not their order, goes into the fingerprint.
var stableHeaders = []string{
	"accept", "accept-encoding", "accept-language", "cache-control", "connection",
	"sec-ch-ua", "sec-ch-ua-mobile", "sec-ch-ua-platform",
	"sec-fetch-dest", "sec-fetch-mode", "sec-fetch-site", "upgrade-insecure-requests",
}

// Generate derives a 32 character hex device fingerprint from request
// headers. The client address is left out so one device rotating through
// proxies keeps its fingerprint.
func Generate(r *http.Request) string {
	components := []string{
		r.UserAgent(),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
		r.Header.Get("Accept"),
		r.Header.Get("Sec-Ch-Ua"),
		r.Header.Get("Sec-Ch-Ua-Platform"),
		headerSet(r),
	}
	components = slices.DeleteFunc(components, func(s string) bool { return s == "" })
	if len(components) == 0 {
		return ""
	}

	hash := sha256.Sum256([]byte(strings.Join(components, "|")))
	return hex.EncodeToString(hash[:16])
}

// FromRequest returns the client supplied fingerprint when present and well
// formed, otherwise Generate(r).
func FromRequest(r *http.Request) string {
	if fp := strings.TrimSpace(r.Header.Get(Header)); clientFingerprint.MatchString(fp) {
		return fp
	}
	return Generate(r)
}

func headerSet(r *http.Request) string {
	var names []string
	for name := range r.Header {
		if lower := strings.ToLower(name); slices.Contains(stableHeaders, lower) {
			names = append(names, lower)
		}
	}
	slices.Sort(names)
	return strings.Join(names, ",")
}

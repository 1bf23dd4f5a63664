// Package fingerprint derives a device fingerprint from an HTTP request.
//
// The fingerprint hashes the User-Agent, Accept* headers, client hints and
// the set of stable browser headers with SHA-256 and keeps the first 16
// bytes as hex. The client address is deliberately excluded: registration
// abuse detection relies on recognising one device behind many IPs.
//
// A fingerprint computed in the browser may be passed in the
// X-Device-Fingerprint header; FromRequest prefers it when it looks sane.
//
//	r.Use(fingerprint.Middleware)
//	fp := fingerprint.FromContext(r.Context())
package fingerprint

// Package sanitizer normalises client input before it is validated: header
// values, emails and the string lists of flag definitions.
//
// Helpers are plain functions that compose into pipelines:
//
//	clean := sanitizer.Compose(
//		sanitizer.RemoveControlChars,
//		sanitizer.Trim,
//		sanitizer.Truncate(128),
//	)
//	actor := clean(r.Header.Get("X-Actor"))
package sanitizer

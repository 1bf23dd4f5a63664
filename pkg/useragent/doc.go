// Package useragent classifies HTTP User-Agent strings.
//
// It answers the questions targeting and abuse checks need: what kind of
// device sent the request, which operating system it runs, and whether the
// client is a crawler, a scripted HTTP library or a headless browser.
//
//	ua, _ := useragent.Parse(r.UserAgent())
//	if ua.IsAutomated() {
//		// curl, python-requests, HeadlessChrome, puppeteer ...
//	}
//
// Matching is keyword based over the lowercased header. It is fast and good
// enough for coarse classification; it is not a full browser version parser.
package useragent

package useragent

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Automation tools and headless browsers. A match here is a strong signal
// that a request was not made by a person at a browser.
var automationKeywords = newKeywordSet(
	"headlesschrome", "headless", "phantomjs", "selenium", "webdriver", "puppeteer",
	"playwright", "cypress", "nightmare", "slimerjs", "htmlunit",
	"curl/", "wget/", "python-requests", "python-urllib", "aiohttp", "httpx",
	"go-http-client", "okhttp", "java/", "apache-httpclient", "libwww-perl",
	"node-fetch", "axios/", "postmanruntime", "insomnia", "scrapy", "mechanize",
)

var botNameMap = map[string]string{
	"googlebot":           "Googlebot",
	"bingbot":             "Bingbot",
	"yandexbot":           "Yandexbot",
	"facebookexternalhit": "Facebook",
	"slackbot":            "Slackbot",
	"headlesschrome":      "HeadlessChrome",
	"go-http-client":      "Go-http-client",
	"python-requests":     "Python-requests",
}

var botNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)([a-z0-9\-_]+bot)\b`),
	regexp.MustCompile(`(?i)([a-z0-9\-_]+spider)`),
	regexp.MustCompile(`(?i)([a-z0-9\-_]+crawler)`),
	regexp.MustCompile(`(?i)^([a-z][a-z0-9\-_]+)/[0-9]`),
}

// AutomationTool returns the automation keyword matched in ua, or "".
func AutomationTool(ua string) string {
	return automationKeywords.match(strings.ToLower(ua))
}

// IsAutomated reports whether ua belongs to a scripted client or headless browser.
func IsAutomated(ua string) bool {
	return AutomationTool(ua) != ""
}

// BotName extracts a display name for a bot or tool user agent.
func BotName(ua string) string {
	lowerUA := strings.ToLower(ua)
	for keyword, name := range botNameMap {
		if strings.Contains(lowerUA, keyword) {
			return name
		}
	}

	title := cases.Title(language.English)
	for _, pattern := range botNamePatterns {
		if m := pattern.FindStringSubmatch(ua); len(m) > 1 {
			return title.String(strings.ToLower(m[1]))
		}
	}
	return "Unknown Bot"
}

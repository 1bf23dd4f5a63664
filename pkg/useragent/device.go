package useragent

import "strings"

var (
	botKeywords     = newKeywordSet("bot", "spider", "crawler", "archiver", "slurp", "lighthouse", "facebookexternalhit", "fetcher", "scraper", "monitor")
	tvKeywords      = newKeywordSet("smarttv", "appletv", "googletv", "android tv", "webos", "tizen")
	consoleKeywords = newKeywordSet("playstation", "xbox", "nintendo")
	tabletKeywords  = newKeywordSet("tablet", "kindle", "silk")
	mobileKeywords  = newKeywordSet("mobile", "iphone", "android", "windows phone", "iemobile", "blackberry")
	desktopKeywords = newKeywordSet("windows", "macintosh", "mac os x", "linux", "x11", "cros")
)

// ParseDeviceType classifies a lowercased user agent.
// iOS identifiers are unambiguous and checked first; Android phones carry
// "mobile" while Android tablets do not.
func ParseDeviceType(lowerUA string) string {
	switch {
	case lowerUA == "":
		return DeviceTypeUnknown
	case strings.Contains(lowerUA, "ipad"):
		return DeviceTypeTablet
	case strings.Contains(lowerUA, "iphone"):
		return DeviceTypeMobile
	case botKeywords.contains(lowerUA), automationKeywords.contains(lowerUA):
		return DeviceTypeBot
	case strings.Contains(lowerUA, "android"):
		if strings.Contains(lowerUA, "mobile") {
			return DeviceTypeMobile
		}
		return DeviceTypeTablet
	case tabletKeywords.contains(lowerUA):
		return DeviceTypeTablet
	case mobileKeywords.contains(lowerUA):
		return DeviceTypeMobile
	case tvKeywords.contains(lowerUA):
		return DeviceTypeTV
	case consoleKeywords.contains(lowerUA):
		return DeviceTypeConsole
	case strings.Contains(lowerUA, "windows") &&
		(strings.Contains(lowerUA, "touch") || strings.Contains(lowerUA, "tablet")):
		return DeviceTypeTablet
	case desktopKeywords.contains(lowerUA):
		return DeviceTypeDesktop
	}
	return DeviceTypeUnknown
}

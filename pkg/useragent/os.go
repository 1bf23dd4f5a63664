package useragent

var (
	windowsKeywords  = newKeywordSet("windows")
	iOSKeywords      = newKeywordSet("iphone", "ipad", "ipod")
	macOSKeywords    = newKeywordSet("macintosh", "mac os x")
	androidKeywords  = newKeywordSet("android")
	harmonyKeywords  = newKeywordSet("harmonyos")
	fireOSKeywords   = newKeywordSet("kindle", "silk")
	chromeOSKeywords = newKeywordSet("cros", "chromeos", "chrome os")
	linuxKeywords    = newKeywordSet("linux", "ubuntu", "debian", "fedora", "x11")
)

// ParseOS identifies the operating system of a lowercased user agent.
// Order matters: Android user agents also contain "linux", iOS ones contain "mac os x".
func ParseOS(lowerUA string) string {
	switch {
	case lowerUA == "":
		return OSUnknown
	case windowsKeywords.contains(lowerUA):
		if newKeywordSet("windows phone").contains(lowerUA) {
			return OSWindowsPhone
		}
		return OSWindows
	case iOSKeywords.contains(lowerUA):
		return OSiOS
	case macOSKeywords.contains(lowerUA):
		return OSMacOS
	case harmonyKeywords.contains(lowerUA):
		return OSHarmonyOS
	case androidKeywords.contains(lowerUA):
		return OSAndroid
	case fireOSKeywords.contains(lowerUA):
		return OSFireOS
	case chromeOSKeywords.contains(lowerUA):
		return OSChromeOS
	case linuxKeywords.contains(lowerUA):
		return OSLinux
	}
	return OSUnknown
}

package useragent

import "strings"

// UserAgent is the parsed view of a User-Agent header.
type UserAgent struct {
	raw        string
	deviceType string
	os         string
	automation string
}

func (ua UserAgent) String() string     { return ua.raw }
func (ua UserAgent) DeviceType() string { return ua.deviceType }
func (ua UserAgent) OS() string         { return ua.os }

// AutomationTool is the matched automation keyword, empty for regular browsers.
func (ua UserAgent) AutomationTool() string { return ua.automation }

func (ua UserAgent) IsBot() bool       { return ua.deviceType == DeviceTypeBot }
func (ua UserAgent) IsAutomated() bool { return ua.automation != "" }
func (ua UserAgent) IsMobile() bool    { return ua.deviceType == DeviceTypeMobile }
func (ua UserAgent) IsTablet() bool    { return ua.deviceType == DeviceTypeTablet }
func (ua UserAgent) IsDesktop() bool   { return ua.deviceType == DeviceTypeDesktop }

// Parse classifies a User-Agent header. It returns ErrEmptyUserAgent for an
// empty string and ErrUnknownDevice when nothing in the string is recognised;
// in both cases the returned value is still usable.
func Parse(ua string) (UserAgent, error) {
	if strings.TrimSpace(ua) == "" {
		return UserAgent{deviceType: DeviceTypeUnknown, os: OSUnknown}, ErrEmptyUserAgent
	}

	lowerUA := strings.ToLower(ua)
	parsed := UserAgent{
		raw:        ua,
		deviceType: ParseDeviceType(lowerUA),
		os:         ParseOS(lowerUA),
		automation: automationKeywords.match(lowerUA),
	}
	if parsed.deviceType == DeviceTypeUnknown && parsed.os == OSUnknown {
		return parsed, ErrUnknownDevice
	}
	return parsed, nil
}

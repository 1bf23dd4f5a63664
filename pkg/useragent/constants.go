package useragent

// Device types.
const (
	DeviceTypeBot     = "bot"
	DeviceTypeMobile  = "mobile"
	DeviceTypeTablet  = "tablet"
	DeviceTypeDesktop = "desktop"
	DeviceTypeTV      = "tv"
	DeviceTypeConsole = "console"
	DeviceTypeUnknown = "unknown"
)

// Operating systems. Values are lowercase so they can be compared directly
// against targeting rule values.
const (
	OSWindows      = "windows"
	OSWindowsPhone = "windows phone"
	OSMacOS        = "macos"
	OSiOS          = "ios"
	OSAndroid      = "android"
	OSLinux        = "linux"
	OSChromeOS     = "chromeos"
	OSHarmonyOS    = "harmonyos"
	OSFireOS       = "fireos"
	OSUnknown      = "unknown"
)

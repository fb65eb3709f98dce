package settings

// Well-known keys. Values written by older builds use the same names.
const (
	KeyTheme           = "Theme"
	KeyLanguage        = "Language"
	KeyLogLevel        = "LogLevel"
	KeyEnableAnalytics = "EnableAnalytics"
	KeyLastOpenedPage  = "LastOpenedPage"
	KeyWindowWidth     = "WindowWidth"
	KeyWindowHeight    = "WindowHeight"
	KeyCommandTimeout  = "CommandTimeout"
)

// FileName is the settings file name inside the data directory.
const FileName = "app_settings.json"

package properties

import (
	"os"
	"strconv"
)

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

// Workers returns UNMIX_WORKERS, or 0 when unset or invalid so callers fall
// back to their own default.
func Workers() int {
	n, err := strconv.Atoi(os.Getenv("UNMIX_WORKERS"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func EndmemberPresetPath() string {
	return os.Getenv("ENDMEMBER_PRESET")
}

type Color struct {
	R, G, B uint8
}

// ColorMap holds the preview legend colours, keyed by material name.
var ColorMap = map[string]Color{
	"PV":  {0, 255, 0},
	"NPV": {255, 0, 0},
	"BS":  {0, 0, 255},
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}
func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}
func DiscordWarnNotificationUrl() string {
	return os.Getenv("DISCORD_WARN_NOTIFICATION_URL")
}

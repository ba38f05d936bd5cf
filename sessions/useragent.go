package sessions

import (
	"github.com/mileusna/useragent"
)

const unknown = "unknown"

// UAParser classifies user agents with mileusna/useragent.
type UAParser struct{}

func (UAParser) Parse(userAgent string) DeviceInfo {
	ua := useragent.Parse(userAgent)

	info := DeviceInfo{
		Device:  unknown,
		OS:      ua.OS,
		Browser: ua.Name,
	}

	switch {
	case ua.Bot:
		info.Device = "bot"
	case ua.Tablet:
		info.Device = "tablet"
	case ua.Mobile:
		info.Device = "mobile"
	case ua.Desktop:
		info.Device = "desktop"
	}

	if info.OS == "" {
		info.OS = unknown
	}
	if info.Browser == "" {
		info.Browser = unknown
	}

	return info
}

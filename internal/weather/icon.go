package weather

import "fmt"

// Icon is the display class of a WMO weather code
type Icon int

const (
	IconClear Icon = iota
	IconPartlyCloudy
	IconOvercast
	IconRain
	IconSnow
	IconThunderstorm
)

var iconNames = map[Icon]string{
	IconClear:        "clear",
	IconPartlyCloudy: "partly_cloudy",
	IconOvercast:     "overcast",
	IconRain:         "rain",
	IconSnow:         "snow",
	IconThunderstorm: "thunderstorm",
}

var iconGlyphs = map[Icon]string{
	IconClear:        "☀",
	IconPartlyCloudy: "⛅",
	IconOvercast:     "☁",
	IconRain:         "☔",
	IconSnow:         "❄",
	IconThunderstorm: "⚡",
}

// IconForCode maps a WMO weather code to an icon class.
//
//	0                     clear
//	1, 2                  partly cloudy
//	3, 45, 48             overcast / fog
//	51-57, 61-67, 80-82   rain
//	71-77                 snow
//	95 and above          thunderstorm
//
// Anything else, including a missing code, is overcast.
func IconForCode(code int) Icon {
	switch {
	case code == 0:
		return IconClear
	case code == 1 || code == 2:
		return IconPartlyCloudy
	case code == 3 || code == 45 || code == 48:
		return IconOvercast
	case code >= 51 && code <= 57, code >= 61 && code <= 67, code >= 80 && code <= 82:
		return IconRain
	case code >= 71 && code <= 77:
		return IconSnow
	case code >= 95:
		return IconThunderstorm
	default:
		return IconOvercast
	}
}

// String returns the stable name used in JSON
func (i Icon) String() string {
	if name, ok := iconNames[i]; ok {
		return name
	}
	return fmt.Sprintf("icon(%d)", int(i))
}

// Glyph returns the single-character symbol drawn on the board
func (i Icon) Glyph() string {
	if g, ok := iconGlyphs[i]; ok {
		return g
	}
	return iconGlyphs[IconOvercast]
}

// MarshalText encodes the icon by name
func (i Icon) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText decodes an icon name
func (i *Icon) UnmarshalText(b []byte) error {
	for icon, name := range iconNames {
		if name == string(b) {
			*i = icon
			return nil
		}
	}
	return fmt.Errorf("unknown weather icon %q", string(b))
}

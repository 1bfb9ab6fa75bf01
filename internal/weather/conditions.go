package weather

// Condition names derived from WMO weather interpretation codes.
const (
	Clear        = "clear"
	PartlyCloudy = "partly_cloudy"
	Cloudy       = "cloudy"
	Fog          = "fog"
	Drizzle      = "drizzle"
	Rain         = "rain"
	Snow         = "snow"
	Thunderstorm = "thunderstorm"
)

// Condition maps a WMO code to a condition name. Unknown codes are cloudy.
func Condition(code int) string {
	switch {
	case code == 0:
		return Clear
	case code == 1 || code == 2:
		return PartlyCloudy
	case code == 3:
		return Cloudy
	case code == 45 || code == 48:
		return Fog
	case code >= 51 && code <= 57:
		return Drizzle
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return Rain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return Snow
	case code >= 95 && code <= 99:
		return Thunderstorm
	default:
		return Cloudy
	}
}

// Rainy reports whether a condition brings rain.
func Rainy(condition string) bool {
	return condition == Drizzle || condition == Rain || condition == Thunderstorm
}

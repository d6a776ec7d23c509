package aggregate

// Coordinate is a country's map anchor.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type countryPin struct {
	coordinate Coordinate
	color      string
}

// countryPins is the fixed set of production countries that can be placed on the map.
var countryPins = map[string]countryPin{
	"US": {Coordinate{37.0902, -95.7129}, "#1f77b4"},
	"IN": {Coordinate{20.5937, 78.9629}, "#ff7f0e"},
	"CN": {Coordinate{35.8617, 104.1954}, "#2ca02c"},
	"JP": {Coordinate{36.2048, 138.2529}, "#d62728"},
	"GB": {Coordinate{55.3781, -3.4360}, "#9467bd"},
	"FR": {Coordinate{46.6034, 1.8883}, "#8c564b"},
	"DE": {Coordinate{51.1657, 10.4515}, "#e377c2"},
	"KR": {Coordinate{35.9078, 127.7669}, "#7f7f7f"},
	"IT": {Coordinate{41.8719, 12.5674}, "#bcbd22"},
	"ES": {Coordinate{40.4637, -3.7492}, "#17becf"},
	"RU": {Coordinate{61.5240, 105.3188}, "#f44336"},
	"CA": {Coordinate{56.1304, -106.3468}, "#3f51b5"},
	"AU": {Coordinate{-25.2744, 133.7751}, "#ff9800"},
	"MX": {Coordinate{23.6345, -102.5528}, "#4caf50"},
	"BR": {Coordinate{-14.2350, -51.9253}, "#9c27b0"},
	"HK": {Coordinate{22.3193, 114.1694}, "#009688"},
	"TR": {Coordinate{38.9637, 35.2433}, "#cddc39"},
	"IR": {Coordinate{32.4279, 53.6880}, "#795548"},
	"AR": {Coordinate{-38.4161, -63.6167}, "#607d8b"},
	"PH": {Coordinate{12.8797, 121.7740}, "#ff5722"},
	"TH": {Coordinate{15.8700, 100.9925}, "#673ab7"},
	"ID": {Coordinate{-0.7893, 113.9213}, "#2196f3"},
	"EG": {Coordinate{26.8206, 30.8025}, "#00bcd4"},
	"NG": {Coordinate{9.0820, 8.6753}, "#8bc34a"},
	"PK": {Coordinate{30.3753, 69.3451}, "#f06292"},
	"MY": {Coordinate{4.2105, 101.9758}, "#ffeb3b"},
	"NL": {Coordinate{52.1326, 5.2913}, "#3e2723"},
	"SE": {Coordinate{60.1282, 18.6435}, "#ffc107"},
	"DK": {Coordinate{56.2639, 9.5018}, "#ff6f00"},
	"NO": {Coordinate{60.4720, 8.4689}, "#004d40"},
	"FI": {Coordinate{61.9241, 25.7482}, "#e91e63"},
	"PL": {Coordinate{51.9194, 19.1451}, "#673ab7"},
	"BE": {Coordinate{50.8503, 4.3517}, "#1b5e20"},
	"AT": {Coordinate{47.5162, 14.5501}, "#004d40"},
	"CH": {Coordinate{46.8182, 8.2275}, "#ff5722"},
	"GR": {Coordinate{39.0742, 21.8243}, "#880e4f"},
	"IL": {Coordinate{31.0461, 34.8516}, "#33691e"},
	"ZA": {Coordinate{-30.5595, 22.9375}, "#e64a19"},
	"NZ": {Coordinate{-40.9006, 174.8860}, "#5d4037"},
	"IE": {Coordinate{53.1424, -7.6921}, "#ff4081"},
	"PT": {Coordinate{39.3999, -8.2245}, "#f50057"},
	"HU": {Coordinate{47.1625, 19.5033}, "#d500f9"},
	"CZ": {Coordinate{49.8175, 15.4730}, "#aa00ff"},
	"RO": {Coordinate{45.9432, 24.9668}, "#b0bec5"},
	"CL": {Coordinate{-35.6751, -71.5430}, "#64dd17"},
	"CO": {Coordinate{4.5709, -74.2973}, "#bf360c"},
	"VE": {Coordinate{6.4238, -66.5897}, "#ff1744"},
	"PE": {Coordinate{-9.1900, -75.0152}, "#9e9e9e"},
	"CU": {Coordinate{21.5218, -77.7812}, "#ff9100"},
	"VN": {Coordinate{14.0583, 108.2772}, "#827717"},
	"BD": {Coordinate{23.6850, 90.3563}, "#ff4081"},
	"LK": {Coordinate{7.8731, 80.7718}, "#9c27b0"},
	"NP": {Coordinate{28.3949, 84.1240}, "#ab47bc"},
	"MM": {Coordinate{21.9162, 95.9560}, "#ec407a"},
	"KZ": {Coordinate{48.0196, 66.9237}, "#2196f3"},
	"UA": {Coordinate{48.3794, 31.1656}, "#64b5f6"},
	"BG": {Coordinate{42.7339, 25.4858}, "#1976d2"},
	"RS": {Coordinate{44.0165, 21.0059}, "#b71c1c"},
	"HR": {Coordinate{45.1000, 15.2000}, "#880e4f"},
	"SI": {Coordinate{46.1512, 14.9955}, "#4a148c"},
}

// KnownCountry reports whether the code has a map coordinate.
func KnownCountry(code string) bool {
	_, ok := countryPins[code]
	return ok
}

// CountryCount is the number of countries that can be placed on the map.
func CountryCount() int {
	return len(countryPins)
}

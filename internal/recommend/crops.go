package recommend

// Range is an inclusive interval of ideal values.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within r.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// distance is how far v lies outside r, relative to the width of r. Narrow
// ranges use a floor of tolerance so a small miss is not a total miss.
func (r Range) distance(v, tolerance float64) float64 {
	var d float64
	switch {
	case v < r.Min:
		d = r.Min - v
	case v > r.Max:
		d = v - r.Max
	default:
		return 0
	}
	scale := max(r.Max-r.Min, tolerance)
	return min(1, d/scale)
}

// Profile is the agronomic envelope a crop grows best in. Nutrients are
// available soil N, P and K in kg/ha, rainfall is mm over the season and
// temperature is the mean in °C.
type Profile struct {
	Name        string
	Seasons     []string
	Nitrogen    Range
	Phosphorus  Range
	Potassium   Range
	PH          Range
	Rainfall    Range
	Temperature Range
}

// Seasons of the Indian cropping calendar.
const (
	Kharif = "kharif"
	Rabi   = "rabi"
	Zaid   = "zaid"
)

// Profiles is the crop table the scorer ranks.
var Profiles = []Profile{
	{
		Name: "Rice", Seasons: []string{Kharif},
		Nitrogen: Range{60, 100}, Phosphorus: Range{35, 60}, Potassium: Range{35, 45},
		PH: Range{5.0, 7.5}, Rainfall: Range{180, 300}, Temperature: Range{20, 27},
	},
	{
		Name: "Wheat", Seasons: []string{Rabi},
		Nitrogen: Range{80, 120}, Phosphorus: Range{40, 60}, Potassium: Range{30, 50},
		PH: Range{6.0, 7.5}, Rainfall: Range{50, 100}, Temperature: Range{12, 25},
	},
	{
		Name: "Maize", Seasons: []string{Kharif, Rabi},
		Nitrogen: Range{60, 100}, Phosphorus: Range{35, 60}, Potassium: Range{15, 25},
		PH: Range{5.5, 7.0}, Rainfall: Range{60, 110}, Temperature: Range{18, 27},
	},
	{
		Name: "Cotton", Seasons: []string{Kharif},
		Nitrogen: Range{100, 140}, Phosphorus: Range{35, 60}, Potassium: Range{15, 25},
		PH: Range{5.8, 8.0}, Rainfall: Range{60, 100}, Temperature: Range{22, 26},
	},
	{
		Name: "Sugarcane", Seasons: []string{Kharif, Zaid},
		Nitrogen: Range{100, 150}, Phosphorus: Range{40, 70}, Potassium: Range{40, 70},
		PH: Range{6.0, 7.5}, Rainfall: Range{150, 250}, Temperature: Range{21, 30},
	},
	{
		Name: "Chickpea", Seasons: []string{Rabi},
		Nitrogen: Range{20, 60}, Phosphorus: Range{55, 80}, Potassium: Range{75, 85},
		PH: Range{6.0, 9.0}, Rainfall: Range{65, 95}, Temperature: Range{17, 21},
	},
	{
		Name: "Pigeonpea", Seasons: []string{Kharif},
		Nitrogen: Range{0, 40}, Phosphorus: Range{55, 80}, Potassium: Range{15, 25},
		PH: Range{4.5, 7.5}, Rainfall: Range{90, 200}, Temperature: Range{18, 37},
	},
	{
		Name: "Lentil", Seasons: []string{Rabi},
		Nitrogen: Range{0, 40}, Phosphorus: Range{55, 80}, Potassium: Range{15, 25},
		PH: Range{5.9, 7.8}, Rainfall: Range{35, 55}, Temperature: Range{18, 30},
	},
	{
		Name: "Soybean", Seasons: []string{Kharif},
		Nitrogen: Range{20, 40}, Phosphorus: Range{60, 80}, Potassium: Range{40, 60},
		PH: Range{6.0, 7.5}, Rainfall: Range{60, 110}, Temperature: Range{20, 30},
	},
	{
		Name: "Groundnut", Seasons: []string{Kharif, Zaid},
		Nitrogen: Range{20, 40}, Phosphorus: Range{40, 60}, Potassium: Range{30, 50},
		PH: Range{6.0, 7.0}, Rainfall: Range{50, 125}, Temperature: Range{22, 30},
	},
	{
		Name: "Mustard", Seasons: []string{Rabi},
		Nitrogen: Range{60, 100}, Phosphorus: Range{30, 50}, Potassium: Range{20, 40},
		PH: Range{6.0, 7.5}, Rainfall: Range{25, 40}, Temperature: Range{10, 25},
	},
	{
		Name: "Watermelon", Seasons: []string{Zaid},
		Nitrogen: Range{80, 120}, Phosphorus: Range{5, 30}, Potassium: Range{45, 55},
		PH: Range{6.0, 7.0}, Rainfall: Range{40, 60}, Temperature: Range{24, 27},
	},
	{
		Name: "Tomato", Seasons: []string{Rabi, Zaid},
		Nitrogen: Range{60, 100}, Phosphorus: Range{40, 70}, Potassium: Range{50, 80},
		PH: Range{6.0, 7.0}, Rainfall: Range{40, 100}, Temperature: Range{18, 27},
	},
}

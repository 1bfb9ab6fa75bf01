// Package recommend turns a soil test into crop, fertilizer and market
// advice.
package recommend

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Input is a soil test plus the optional growing conditions.
type Input struct {
	Rainfall    *float64 `json:"rainfall,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Location    string   `json:"location,omitempty"`
	Season      string   `json:"season,omitempty"`
	Nitrogen    float64  `json:"nitrogen"`
	Phosphorus  float64  `json:"phosphorus"`
	Potassium   float64  `json:"potassium"`
	PH          float64  `json:"ph"`
}

// CropRecommendation is one ranked crop.
type CropRecommendation struct {
	Crop        string   `json:"crop"`
	Seasons     []string `json:"seasons"`
	Reasons     []string `json:"reasons"`
	Suitability float64  `json:"suitability"`
}

// TopCrops is how many crops a report carries.
const TopCrops = 3

type factor struct {
	name      string
	weight    float64
	tolerance float64
	value     float64
	ideal     Range
	unit      string
}

// Weights of each factor in the score. They sum to one.
const (
	weightNitrogen    = 0.20
	weightPhosphorus  = 0.15
	weightPotassium   = 0.15
	weightPH          = 0.20
	weightSeason      = 0.10
	weightRainfall    = 0.10
	weightTemperature = 0.10
)

// Score rates how well p suits in on a 0–100 scale and explains why.
// Absent optional conditions neither add nor remove points.
func Score(p Profile, in Input) (float64, []string) {
	factors := []factor{
		{"Nitrogen", weightNitrogen, 40, in.Nitrogen, p.Nitrogen, " kg/ha"},
		{"Phosphorus", weightPhosphorus, 30, in.Phosphorus, p.Phosphorus, " kg/ha"},
		{"Potassium", weightPotassium, 30, in.Potassium, p.Potassium, " kg/ha"},
		{"pH", weightPH, 1.5, in.PH, p.PH, ""},
	}
	if in.Rainfall != nil {
		factors = append(factors, factor{"Rainfall", weightRainfall, 60, *in.Rainfall, p.Rainfall, " mm"})
	}
	if in.Temperature != nil {
		factors = append(factors, factor{"Temperature", weightTemperature, 6, *in.Temperature, p.Temperature, " °C"})
	}

	var penalty float64
	reasons := make([]string, 0, len(factors)+1)
	for _, f := range factors {
		d := f.ideal.distance(f.value, f.tolerance)
		penalty += f.weight * d
		reasons = append(reasons, explain(f, d))
	}

	if season := strings.ToLower(strings.TrimSpace(in.Season)); season != "" {
		if slices.Contains(p.Seasons, season) {
			reasons = append(reasons, fmt.Sprintf("%s is a %s crop", p.Name, season))
		} else {
			penalty += weightSeason
			reasons = append(reasons, fmt.Sprintf("%s is usually grown in %s, not %s",
				p.Name, strings.Join(p.Seasons, "/"), season))
		}
	}

	score := 100 * (1 - penalty)
	score = math.Max(0, math.Min(100, score))
	return math.Round(score*10) / 10, reasons
}

func explain(f factor, d float64) string {
	ideal := fmt.Sprintf("%s–%s%s", trim(f.ideal.Min), trim(f.ideal.Max), f.unit)
	switch {
	case d == 0:
		return fmt.Sprintf("%s %s%s is within the ideal %s", f.name, trim(f.value), f.unit, ideal)
	case f.value < f.ideal.Min:
		return fmt.Sprintf("%s %s%s is below the ideal %s", f.name, trim(f.value), f.unit, ideal)
	default:
		return fmt.Sprintf("%s %s%s is above the ideal %s", f.name, trim(f.value), f.unit, ideal)
	}
}

// trim formats v with at most one decimal.
func trim(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

// RankCrops scores every profile and returns the best n, highest score
// first and ties broken by name.
func RankCrops(profiles []Profile, in Input, n int) []CropRecommendation {
	ranked := make([]CropRecommendation, 0, len(profiles))
	for _, p := range profiles {
		score, reasons := Score(p, in)
		ranked = append(ranked, CropRecommendation{
			Crop:        p.Name,
			Seasons:     p.Seasons,
			Reasons:     reasons,
			Suitability: score,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Suitability != ranked[j].Suitability {
			return ranked[i].Suitability > ranked[j].Suitability
		}
		return ranked[i].Crop < ranked[j].Crop
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

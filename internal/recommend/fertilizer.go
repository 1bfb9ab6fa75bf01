package recommend

import (
	"fmt"
	"math"
)

// NitrogenTarget is the available nitrogen (kg/ha) below which urea is advised.
const NitrogenTarget = 150.0

// UreaNitrogenFraction is the share of nitrogen in urea by mass.
const UreaNitrogenFraction = 0.46

// FertilizerRecommendation is a corrective dose for one nutrient.
type FertilizerRecommendation struct {
	Nutrient string  `json:"nutrient"`
	Product  string  `json:"product"`
	Message  string  `json:"message"`
	Deficit  float64 `json:"deficit"`
	// Quantity is the product dose in kg/ha.
	Quantity float64 `json:"quantity"`
}

// Fertilizers returns the urea dose that lifts nitrogen to NitrogenTarget,
// or an empty list when nitrogen is sufficient.
func Fertilizers(in Input) []FertilizerRecommendation {
	recs := []FertilizerRecommendation{}
	if in.Nitrogen >= NitrogenTarget {
		return recs
	}

	deficit := NitrogenTarget - in.Nitrogen
	dose := math.Round(deficit/UreaNitrogenFraction*10) / 10
	recs = append(recs, FertilizerRecommendation{
		Nutrient: "Nitrogen",
		Product:  "Urea",
		Deficit:  math.Round(deficit*10) / 10,
		Quantity: dose,
		Message: fmt.Sprintf("Nitrogen is %s kg/ha below target; apply about %s kg/ha of urea in split doses",
			trim(deficit), trim(dose)),
	})
	return recs
}

package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Scheme is a government support programme. The _hi and _mr columns hold
// curated translations; empty ones are translated on demand.
type Scheme struct {
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	Name           string         `gorm:"not null" json:"name"`
	NameHi         string         `json:"name_hi,omitempty"`
	NameMr         string         `json:"name_mr,omitempty"`
	Description    string         `gorm:"type:text" json:"description"`
	DescriptionHi  string         `gorm:"type:text" json:"description_hi,omitempty"`
	DescriptionMr  string         `gorm:"type:text" json:"description_mr,omitempty"`
	Category       string         `gorm:"index" json:"category"`
	State          string         `gorm:"index" json:"state"`
	ApplicationURL string         `json:"application_url"`
	Eligibility    datatypes.JSON `gorm:"type:jsonb" json:"eligibility"`
	Benefits       datatypes.JSON `gorm:"type:jsonb" json:"benefits"`
	ID             uint           `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for Scheme model.
func (Scheme) TableName() string {
	return "schemes"
}

// CropDisease is one entry of a crop's disease list.
type CropDisease struct {
	Name       string `json:"name"`
	Symptoms   string `json:"symptoms"`
	Management string `json:"management"`
}

// Crop is an encyclopedia entry.
type Crop struct {
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	CommonName     string         `gorm:"uniqueIndex;not null" json:"common_name"`
	ScientificName string         `json:"scientific_name"`
	Climate        string         `json:"climate"`
	Soil           string         `json:"soil"`
	Season         string         `gorm:"index" json:"season"`
	Description    string         `gorm:"type:text" json:"description"`
	Diseases       datatypes.JSON `gorm:"type:jsonb" json:"diseases"`
	ID             uint           `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for Crop model.
func (Crop) TableName() string {
	return "crops"
}

// MarketPrice is one mandi quotation in ₹ per quintal.
type MarketPrice struct {
	ArrivalDate time.Time `gorm:"index:idx_commodity_date;not null" json:"arrival_date"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	Commodity   string    `gorm:"index:idx_commodity_date;not null" json:"commodity"`
	Variety     string    `json:"variety"`
	Market      string    `gorm:"not null" json:"market"`
	District    string    `json:"district"`
	State       string    `gorm:"index" json:"state"`
	MinPrice    float64   `json:"min_price"`
	MaxPrice    float64   `json:"max_price"`
	ModalPrice  float64   `gorm:"not null" json:"modal_price"`
	ID          uint      `gorm:"primaryKey" json:"id"`
}

// TableName specifies the table name for MarketPrice model.
func (MarketPrice) TableName() string {
	return "market_prices"
}

// PricePoint is the average modal price of a commodity on one day.
type PricePoint struct {
	Day        time.Time `json:"day"`
	AvgPrice   float64   `json:"avg_price"`
	Quotations int64     `json:"quotations"`
}

// SchemeFilter narrows a scheme listing.
type SchemeFilter struct {
	Category string
	State    string
}

// CropFilter narrows an encyclopedia listing.
type CropFilter struct {
	Search string
	Season string
}

// MarketFilter narrows a market price listing.
type MarketFilter struct {
	Commodity string
	State     string
	Market    string
	Limit     int
}

// JSONStrings encodes a string list for a jsonb column.
func JSONStrings(v []string) datatypes.JSON {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

// StringsOf decodes a jsonb string list, returning nil for anything else.
func StringsOf(j datatypes.JSON) []string {
	var out []string
	if len(j) == 0 || json.Unmarshal(j, &out) != nil {
		return nil
	}
	return out
}

// JSONDiseases encodes a disease list for a jsonb column.
func JSONDiseases(v []CropDisease) datatypes.JSON {
	if v == nil {
		v = []CropDisease{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

package pgstore

import (
	"fmt"
	"log/slog"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"agrismart.dev/agrismart/internal/models"
)

// Migrate applies the schema migrations and, when seed is true, loads the
// starter reference data into empty tables.
func Migrate(db *gorm.DB, logger *slog.Logger, seed bool) error {
	logger.Info("running database migrations")

	migrations := []*gormigrate.Migration{
		{
			ID: "202603010900_create_reference_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Scheme{}, &models.Crop{}, &models.MarketPrice{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("market_prices", "crops", "schemes")
			},
		},
		{
			ID: "202603010930_create_sensor_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.IoTSensor{}, &models.SensorReading{}, &models.SensorAlert{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("sensor_alerts", "sensor_readings", "iot_sensors")
			},
		},
		{
			ID: "202603051200_open_alert_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_sensor_alerts_open ON sensor_alerts (sensor_id, created_at DESC) WHERE resolved = false").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_sensor_alerts_open").Error
			},
		},
		{
			// A requeued delivery carries the same sensor and timestamp.
			ID: "202610190900_unique_sensor_reading",
			Migrate: func(tx *gorm.DB) error {
				for _, stmt := range []string{
					"DELETE FROM sensor_readings a USING sensor_readings b WHERE a.sensor_id = b.sensor_id AND a.recorded_at = b.recorded_at AND a.id > b.id",
					"DROP INDEX IF EXISTS idx_sensor_recorded",
					"CREATE UNIQUE INDEX idx_sensor_recorded ON sensor_readings (sensor_id, recorded_at)",
				} {
					if err := tx.Exec(stmt).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Exec("DROP INDEX IF EXISTS idx_sensor_recorded").Error; err != nil {
					return err
				}
				return tx.Exec("CREATE INDEX idx_sensor_recorded ON sensor_readings (sensor_id, recorded_at)").Error
			},
		},
	}

	if seed {
		migrations = append(migrations,
			&gormigrate.Migration{
				ID:      "202603021000_seed_schemes",
				Migrate: func(tx *gorm.DB) error { return seedIfEmpty(tx, &models.Scheme{}, seedSchemes()) },
			},
			&gormigrate.Migration{
				ID:      "202603021015_seed_crops",
				Migrate: func(tx *gorm.DB) error { return seedIfEmpty(tx, &models.Crop{}, seedCrops()) },
			},
		)
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations)
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("database migrations completed successfully", "count", len(migrations))
	return nil
}

func seedIfEmpty[T any](tx *gorm.DB, model *T, rows []T) error {
	var n int64
	if err := tx.Model(model).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 || len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func seedSchemes() []models.Scheme {
	return []models.Scheme{
		{
			Name:           "PM-KISAN",
			NameHi:         "प्रधानमंत्री किसान सम्मान निधि",
			NameMr:         "प्रधानमंत्री किसान सन्मान निधी",
			Description:    "Income support of ₹6,000 per year paid in three instalments to landholding farmer families.",
			Category:       "income_support",
			State:          "All India",
			Eligibility:    models.JSONStrings([]string{"Landholding farmer family", "Land records in the farmer's name"}),
			Benefits:       models.JSONStrings([]string{"₹2,000 every four months by direct benefit transfer"}),
			ApplicationURL: "https://pmkisan.gov.in",
		},
		{
			Name:           "Pradhan Mantri Fasal Bima Yojana",
			NameHi:         "प्रधानमंत्री फसल बीमा योजना",
			Description:    "Crop insurance against yield loss from natural calamities, pests and diseases.",
			Category:       "insurance",
			State:          "All India",
			Eligibility:    models.JSONStrings([]string{"Farmers growing notified crops in notified areas"}),
			Benefits:       models.JSONStrings([]string{"Premium of 2% for kharif, 1.5% for rabi food crops", "Claim settlement for prevented sowing and post-harvest loss"}),
			ApplicationURL: "https://pmfby.gov.in",
		},
		{
			Name:           "Kisan Credit Card",
			Description:    "Short-term credit for cultivation, post-harvest expenses and allied activities at concessional interest.",
			Category:       "credit",
			State:          "All India",
			Eligibility:    models.JSONStrings([]string{"Owner cultivators", "Tenant farmers and sharecroppers", "Self-help groups of farmers"}),
			Benefits:       models.JSONStrings([]string{"Interest subvention on prompt repayment", "Collateral-free loans up to ₹1.6 lakh"}),
			ApplicationURL: "https://www.myscheme.gov.in/schemes/kcc",
		},
		{
			Name:           "Soil Health Card",
			Description:    "Free soil testing with nutrient-wise fertilizer recommendations every two years.",
			Category:       "advisory",
			State:          "All India",
			Eligibility:    models.JSONStrings([]string{"All farmers"}),
			Benefits:       models.JSONStrings([]string{"Report on 12 soil parameters", "Crop-wise fertilizer dosage"}),
			ApplicationURL: "https://soilhealth.dac.gov.in",
		},
		{
			Name:           "Nanaji Deshmukh Krishi Sanjivani",
			NameMr:         "नानाजी देशमुख कृषी संजीवनी प्रकल्प",
			Description:    "Climate resilient agriculture support for drought-prone villages of Maharashtra.",
			Category:       "subsidy",
			State:          "Maharashtra",
			Eligibility:    models.JSONStrings([]string{"Small and marginal farmers in project villages"}),
			Benefits:       models.JSONStrings([]string{"Subsidy on drip and sprinkler irrigation", "Farm pond support"}),
			ApplicationURL: "https://mahapocra.gov.in",
		},
	}
}

func seedCrops() []models.Crop {
	return []models.Crop{
		{
			CommonName:     "Rice",
			ScientificName: "Oryza sativa",
			Climate:        "Hot and humid, 20-35°C, 100-200 cm rainfall",
			Soil:           "Clayey or loamy soil with good water retention",
			Season:         "kharif",
			Diseases: models.JSONDiseases([]models.CropDisease{
				{Name: "Blast", Symptoms: "Spindle-shaped lesions with grey centres on leaves", Management: "Tricyclazole spray, resistant varieties"},
				{Name: "Bacterial leaf blight", Symptoms: "Yellowing from leaf tips along margins", Management: "Avoid excess nitrogen, copper oxychloride"},
			}),
		},
		{
			CommonName:     "Wheat",
			ScientificName: "Triticum aestivum",
			Climate:        "Cool growing season, 10-25°C, 50-100 cm rainfall",
			Soil:           "Well-drained loam or clay loam",
			Season:         "rabi",
			Diseases: models.JSONDiseases([]models.CropDisease{
				{Name: "Yellow rust", Symptoms: "Yellow pustules in stripes on leaves", Management: "Propiconazole spray at first appearance"},
			}),
		},
		{
			CommonName:     "Cotton",
			ScientificName: "Gossypium hirsutum",
			Climate:        "Warm, 21-30°C, frost free, 50-100 cm rainfall",
			Soil:           "Deep black soil",
			Season:         "kharif",
			Diseases: models.JSONDiseases([]models.CropDisease{
				{Name: "Pink bollworm", Symptoms: "Rosette flowers, damaged bolls", Management: "Pheromone traps, timely termination of crop"},
			}),
		},
		{
			CommonName:     "Chickpea",
			ScientificName: "Cicer arietinum",
			Climate:        "Cool and dry, 15-25°C",
			Soil:           "Sandy loam to clay loam, not waterlogged",
			Season:         "rabi",
			Diseases: models.JSONDiseases([]models.CropDisease{
				{Name: "Fusarium wilt", Symptoms: "Drooping and yellowing of plants", Management: "Seed treatment with Trichoderma, crop rotation"},
			}),
		},
		{
			CommonName:     "Soybean",
			ScientificName: "Glycine max",
			Climate:        "Warm and moist, 20-30°C",
			Soil:           "Well-drained loam rich in organic matter",
			Season:         "kharif",
			Diseases: models.JSONDiseases([]models.CropDisease{
				{Name: "Yellow mosaic", Symptoms: "Yellow patches on leaves", Management: "Control whitefly, resistant varieties"},
			}),
		},
		{
			CommonName:     "Tomato",
			ScientificName: "Solanum lycopersicum",
			Climate:        "Warm, 20-27°C",
			Soil:           "Well-drained sandy loam, pH 6-7",
			Season:         "zaid",
			Diseases: models.JSONDiseases([]models.CropDisease{
				{Name: "Early blight", Symptoms: "Concentric brown rings on older leaves", Management: "Mancozeb spray, remove infected leaves"},
				{Name: "Leaf curl virus", Symptoms: "Upward curling and stunting", Management: "Control whitefly, use tolerant hybrids"},
			}),
		},
	}
}

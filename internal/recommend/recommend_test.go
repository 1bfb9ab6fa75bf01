package recommend_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrismart.dev/agrismart/internal/mandi"
	"agrismart.dev/agrismart/internal/recommend"
)

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]float64
	calls  []string
}

func (f *fakePrices) CurrentPrice(_ context.Context, commodity string) (*mandi.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, commodity)
	p, ok := f.prices[commodity]
	if !ok {
		return nil, errors.New("upstream timeout")
	}
	return &mandi.Quote{Commodity: commodity, Market: "Pune", State: "Maharashtra", ModalPrice: p}, nil
}

func ptr(v float64) *float64 { return &v }

var _ = Describe("Recommend", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Describe("Score", func() {
		rice := recommend.Profiles[0]

		It("gives a perfect score inside every range", func() {
			score, reasons := recommend.Score(rice, recommend.Input{
				Nitrogen: 80, Phosphorus: 45, Potassium: 40, PH: 6.5,
				Rainfall: ptr(220), Temperature: ptr(24), Season: "Kharif",
			})
			Expect(score).To(Equal(100.0))
			Expect(reasons).To(ContainElement("Rice is a kharif crop"))
			Expect(reasons).To(ContainElement("Nitrogen 80 kg/ha is within the ideal 60–100 kg/ha"))
		})

		It("penalizes values outside the range", func() {
			inRange, _ := recommend.Score(rice, recommend.Input{Nitrogen: 80, Phosphorus: 45, Potassium: 40, PH: 6.5})
			low, reasons := recommend.Score(rice, recommend.Input{Nitrogen: 20, Phosphorus: 45, Potassium: 40, PH: 6.5})
			Expect(low).To(BeNumerically("<", inRange))
			Expect(reasons).To(ContainElement(ContainSubstring("Nitrogen 20 kg/ha is below")))
		})

		It("penalizes the wrong season", func() {
			score, reasons := recommend.Score(rice, recommend.Input{
				Nitrogen: 80, Phosphorus: 45, Potassium: 40, PH: 6.5, Season: "rabi",
			})
			Expect(score).To(Equal(90.0))
			Expect(reasons).To(ContainElement("Rice is usually grown in kharif, not rabi"))
		})

		It("stays within 0 and 100", func() {
			score, _ := recommend.Score(rice, recommend.Input{
				Nitrogen: 1000, Phosphorus: 1000, Potassium: 1000, PH: 14,
				Rainfall: ptr(0), Temperature: ptr(50), Season: "zaid",
			})
			Expect(score).To(BeNumerically(">=", 0))
			Expect(score).To(BeNumerically("<=", 100))
		})
	})

	Describe("RankCrops", func() {
		It("returns the top three, best first, ties by name", func() {
			wide := recommend.Range{Min: 0, Max: 200}
			acidToAlkaline := recommend.Range{Min: 0, Max: 14}
			profiles := []recommend.Profile{
				{Name: "Zucchini", Nitrogen: wide, Phosphorus: wide, Potassium: wide, PH: acidToAlkaline},
				{Name: "Apple", Nitrogen: wide, Phosphorus: wide, Potassium: wide, PH: acidToAlkaline},
				{Name: "Mango", Nitrogen: wide, Phosphorus: wide, Potassium: wide, PH: acidToAlkaline},
				{Name: "Bad", Nitrogen: recommend.Range{Min: 500, Max: 600}, Phosphorus: wide, Potassium: wide, PH: acidToAlkaline},
			}
			ranked := recommend.RankCrops(profiles, recommend.Input{Nitrogen: 50, Phosphorus: 50, Potassium: 50, PH: 7}, 3)

			Expect(ranked).To(HaveLen(3))
			Expect([]string{ranked[0].Crop, ranked[1].Crop, ranked[2].Crop}).To(Equal([]string{"Apple", "Mango", "Zucchini"}))
		})

		It("depends on the inputs", func() {
			pulses := recommend.RankCrops(recommend.Profiles, recommend.Input{Nitrogen: 20, Phosphorus: 70, Potassium: 80, PH: 7.5}, 1)
			cereals := recommend.RankCrops(recommend.Profiles, recommend.Input{Nitrogen: 90, Phosphorus: 45, Potassium: 40, PH: 6.2, Rainfall: ptr(250)}, 1)

			Expect(pulses[0].Crop).To(Equal("Chickpea"))
			Expect(cereals[0].Crop).To(Equal("Rice"))
		})
	})

	Describe("Fertilizers", func() {
		It("recommends urea for the nitrogen deficit", func() {
			recs := recommend.Fertilizers(recommend.Input{Nitrogen: 104})
			Expect(recs).To(HaveLen(1))
			Expect(recs[0].Nutrient).To(Equal("Nitrogen"))
			Expect(recs[0].Product).To(Equal("Urea"))
			Expect(recs[0].Deficit).To(Equal(46.0))
			Expect(recs[0].Quantity).To(Equal(100.0))
		})

		DescribeTable("is empty at or above the target",
			func(n float64) {
				Expect(recommend.Fertilizers(recommend.Input{Nitrogen: n})).To(BeEmpty())
			},
			Entry("at target", 150.0),
			Entry("above target", 220.0),
		)
	})

	Describe("DemandFor", func() {
		DescribeTable("labels prices",
			func(price float64, want string) {
				Expect(recommend.DemandFor(price)).To(Equal(want))
			},
			Entry("above threshold", 3000.5, recommend.DemandHigh),
			Entry("at threshold", 3000.0, recommend.DemandNormal),
			Entry("below threshold", 1800.0, recommend.DemandNormal),
		)
	})

	Describe("Engine", func() {
		It("requires a logger", func() {
			_, err := recommend.NewEngine(nil, nil)
			Expect(err).To(MatchError(ContainSubstring("logger cannot be nil")))
		})

		It("rejects impossible soil values", func() {
			e, err := recommend.NewEngine(logger, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = e.Recommend(context.Background(), recommend.Input{Nitrogen: 50, PH: 15})
			Expect(err).To(MatchError(recommend.ErrInvalidInput))
		})

		It("keeps insights aligned with crops when prices fail", func() {
			prices := &fakePrices{prices: map[string]float64{}}
			e, err := recommend.NewEngine(logger, prices)
			Expect(err).NotTo(HaveOccurred())

			r, err := e.Recommend(context.Background(), recommend.Input{Nitrogen: 90, Phosphorus: 42, Potassium: 43, PH: 6.5})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.CropRecommendations).To(HaveLen(recommend.TopCrops))
			Expect(r.MarketInsights).To(HaveLen(recommend.TopCrops))
			for i, m := range r.MarketInsights {
				Expect(m.Crop).To(Equal(r.CropRecommendations[i].Crop))
				Expect(m.Demand).To(Equal(recommend.DemandUnavailable))
				Expect(m.CurrentPrice).To(BeNil())
			}
			Expect(r.Coverage()).To(Equal("unavailable"))
			Expect(prices.calls).To(HaveLen(recommend.TopCrops))
		})

		It("mixes found and missing prices", func() {
			e, err := recommend.NewEngine(logger, &fakePrices{prices: map[string]float64{"Rice": 3200}})
			Expect(err).NotTo(HaveOccurred())

			r, err := e.Recommend(context.Background(), recommend.Input{
				Nitrogen: 80, Phosphorus: 45, Potassium: 40, PH: 6.5, Rainfall: ptr(220), Season: "kharif",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.CropRecommendations[0].Crop).To(Equal("Rice"))
			Expect(*r.MarketInsights[0].CurrentPrice).To(Equal(3200.0))
			Expect(r.MarketInsights[0].Demand).To(Equal(recommend.DemandHigh))
			Expect(r.Coverage()).To(Equal("partial"))
		})

		It("works without a price source", func() {
			e, err := recommend.NewEngine(logger, nil)
			Expect(err).NotTo(HaveOccurred())
			r, err := e.Recommend(context.Background(), recommend.Input{Nitrogen: 160, Phosphorus: 45, Potassium: 40, PH: 6.5})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.FertilizerRecommendations).To(BeEmpty())
			Expect(r.MarketInsights).To(HaveLen(recommend.TopCrops))
		})
	})
})

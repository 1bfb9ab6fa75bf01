package generator_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrismart.dev/agrismart/pkg/generator"
)

var _ = Describe("Field sensor generator", func() {
	It("should fake a sensor identity", func() {
		s := generator.NewFieldSensor()
		Expect(s).NotTo(BeNil())
		Expect(s.SensorID).NotTo(BeEmpty())
		Expect(s.Latitude).To(BeNumerically(">=", -90))
		Expect(s.Latitude).To(BeNumerically("<=", 90))
		Expect(s.InstalledAt).To(BeTemporally("<=", time.Now()))
	})

	It("should produce readings that pass validation", func() {
		g := generator.NewSoilGenerator("sensor-42")
		start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

		for i := 0; i < 500; i++ {
			r := g.Reading(start.Add(time.Duration(i) * 10 * time.Minute))
			Expect(r.SensorID).To(Equal("sensor-42"))
			Expect(r.Validate()).To(Succeed())
		}
	})

	It("should never recharge the battery", func() {
		g := generator.NewSoilGenerator("sensor-7")
		last := 101.0
		for i := 0; i < 100; i++ {
			b := g.Battery()
			Expect(b).To(BeNumerically("<=", last))
			last = b
		}
	})

	It("should keep humidity inside physical bounds", func() {
		g := generator.NewSoilGenerator("sensor-9")
		for _, air := range []float64{-5, 10, 25, 45, 60} {
			h := g.Humidity(air)
			Expect(h).To(BeNumerically(">=", 15))
			Expect(h).To(BeNumerically("<=", 98))
		}
	})
})

package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrismart.dev/agrismart/pkg/logger"
)

var _ = Describe("Logger", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = &bytes.Buffer{}
	})

	record := func() map[string]any {
		var out map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &out)).To(Succeed())
		return out
	}

	Describe("New", func() {
		It("writes JSON with the service attached", func() {
			log := logger.New(&logger.Config{Output: buf, Level: slog.LevelInfo, Service: "agrismart"})
			log.Info("reading stored", "sensor_id", "soil-1")

			rec := record()
			Expect(rec).To(HaveKeyWithValue("msg", "reading stored"))
			Expect(rec).To(HaveKeyWithValue("service", "agrismart"))
			Expect(rec).To(HaveKeyWithValue("sensor_id", "soil-1"))
		})

		It("drops records below the configured level", func() {
			log := logger.New(&logger.Config{Output: buf, Level: slog.LevelWarn})
			log.Info("quiet")
			Expect(buf.Len()).To(BeZero())

			log.Warn("loud")
			Expect(record()).To(HaveKeyWithValue("level", "WARN"))
		})

		It("switches to the text handler", func() {
			log := logger.New(&logger.Config{Output: buf, Text: true})
			log.Info("field created", "crop", "wheat")
			Expect(buf.String()).To(ContainSubstring(`msg="field created" crop=wheat`))
		})

		It("adds the source position on request", func() {
			log := logger.New(&logger.Config{Output: buf, AddSource: true})
			log.Info("with source")
			Expect(record()).To(HaveKey("source"))
		})

		It("falls back to defaults for a nil config", func() {
			Expect(logger.New(nil)).NotTo(BeNil())
		})
	})

	DescribeTable("ParseLevel",
		func(in string, want slog.Level) {
			Expect(logger.ParseLevel(in)).To(Equal(want))
		},
		Entry("debug", "debug", slog.LevelDebug),
		Entry("upper case", "ERROR", slog.LevelError),
		Entry("warning alias", "warning", slog.LevelWarn),
		Entry("padded", "  warn ", slog.LevelWarn),
		Entry("unknown", "verbose", slog.LevelInfo),
		Entry("empty", "", slog.LevelInfo),
	)

	Describe("context loggers", func() {
		It("returns the logger stored in the context", func() {
			base := logger.New(&logger.Config{Output: buf})
			ctx := logger.IntoContext(context.Background(), base.With("request_id", "r-42"))

			logger.FromContext(ctx, nil).Info("handled")
			Expect(record()).To(HaveKeyWithValue("request_id", "r-42"))
		})

		It("uses the fallback when the context has none", func() {
			fallback := logger.New(&logger.Config{Output: buf})
			Expect(logger.FromContext(context.Background(), fallback)).To(BeIdenticalTo(fallback))
			Expect(logger.FromContext(context.Background(), nil)).To(BeIdenticalTo(slog.Default()))
		})
	})
})

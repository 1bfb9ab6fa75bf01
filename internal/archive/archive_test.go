package archive_test

import (
	"context"
	"log/slog"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrismart.dev/agrismart/internal/archive"
)

var _ = Describe("Archive", func() {
	DescribeTable("New rejects incomplete configuration",
		func(cfg *archive.Config, msg string) {
			b, err := archive.New(context.Background(), cfg)
			Expect(err).To(MatchError(ContainSubstring(msg)))
			Expect(b).To(BeNil())
		},
		Entry("nil config", nil, "config cannot be nil"),
		Entry("nil logger", &archive.Config{Bucket: "b"}, "logger cannot be nil"),
		Entry("empty bucket", &archive.Config{Logger: slog.Default()}, "bucket name cannot be empty"),
	)

	It("partitions object names by user and day", func() {
		at := time.Date(2026, 10, 19, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
		name := archive.ObjectName("disease-images", "u1", at, ".png")

		Expect(name).To(HavePrefix("disease-images/u1/2026/10/19/"))
		Expect(name).To(HaveSuffix(".png"))
		Expect(strings.Count(name, "/")).To(Equal(5))
		Expect(archive.ObjectName("p", "u1", at, ".png")).NotTo(Equal(archive.ObjectName("p", "u1", at, ".png")))
	})
})

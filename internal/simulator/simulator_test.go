package simulator_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrismart.dev/agrismart/internal/simulator"
	"agrismart.dev/agrismart/pkg/mq/mock"
	"agrismart.dev/agrismart/pkg/telemetry"
)

type sensorList []string

func (l sensorList) ListSensorIDs(context.Context) ([]string, error) {
	return l, nil
}

var _ = Describe("Simulator", func() {
	var (
		logger *slog.Logger
		client *mock.MockClient
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		client = mock.NewMockClient()
		client.QueueName = telemetry.DefaultSensorQueue
	})

	Describe("Publisher", func() {
		It("should publish one valid reading per sensor", func() {
			p, err := simulator.NewPublisher(client, []string{"soil-1", "soil-2"}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Sensors()).To(Equal([]string{"soil-1", "soil-2"}))

			now := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)
			Expect(p.PublishAll(context.Background(), now)).To(Succeed())

			pushed := client.Pushed()
			Expect(pushed).To(HaveLen(2))
			for i, body := range pushed {
				var r telemetry.SensorReading
				Expect(json.Unmarshal(body, &r)).To(Succeed())
				Expect(r.Validate()).To(Succeed())
				Expect(r.SensorID).To(Equal(p.Sensors()[i]))
				Expect(r.RecordedAt.Equal(now)).To(BeTrue())
			}
		})

		It("should keep publishing after a failure and report it", func() {
			client.PushError = errors.New("not connected")
			p, err := simulator.NewPublisher(client, []string{"soil-1", "soil-2"}, nil)
			Expect(err).NotTo(HaveOccurred())

			err = p.PublishAll(context.Background(), time.Now())
			Expect(err).To(MatchError(ContainSubstring("soil-1")))
			Expect(err).To(MatchError(ContainSubstring("soil-2")))
			Expect(client.Pushed()).To(HaveLen(2))
		})

		It("should require a client and sensors", func() {
			_, err := simulator.NewPublisher(nil, []string{"soil-1"}, nil)
			Expect(err).To(HaveOccurred())
			_, err = simulator.NewPublisher(client, nil, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("NewServer", func() {
		valid := func() *simulator.ServerConfig {
			return &simulator.ServerConfig{
				Logger:      logger,
				RabbitMQURL: "amqp://localhost:5672",
				Queue:       telemetry.DefaultSensorQueue,
				Interval:    time.Second,
				SensorIDs:   []string{"soil-1"},
			}
		}

		It("should accept a valid configuration", func() {
			server, err := simulator.NewServer(valid())
			Expect(err).NotTo(HaveOccurred())
			Expect(server).NotTo(BeNil())
		})

		DescribeTable("should reject invalid configuration",
			func(mutate func(*simulator.ServerConfig)) {
				cfg := valid()
				mutate(cfg)
				server, err := simulator.NewServer(cfg)
				Expect(err).To(HaveOccurred())
				Expect(server).To(BeNil())
			},
			Entry("missing logger", func(c *simulator.ServerConfig) { c.Logger = nil }),
			Entry("zero interval", func(c *simulator.ServerConfig) { c.Interval = 0 }),
			Entry("missing URL", func(c *simulator.ServerConfig) { c.RabbitMQURL = "" }),
			Entry("missing queue", func(c *simulator.ServerConfig) { c.Queue = "" }),
			Entry("no sensor source", func(c *simulator.ServerConfig) { c.SensorIDs = nil }),
		)

		It("should reject a nil config", func() {
			_, err := simulator.NewServer(nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Run", func() {
		It("should publish for registered sensors until canceled", func() {
			server, err := simulator.NewServer(&simulator.ServerConfig{
				Logger:      logger,
				RabbitMQURL: "amqp://localhost:5672",
				Queue:       telemetry.DefaultSensorQueue,
				Interval:    10 * time.Millisecond,
				Sensors:     sensorList{"soil-7"},
			})
			Expect(err).NotTo(HaveOccurred())
			server.UseClient(client)

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			Expect(server.Run(ctx)).To(Succeed())

			Expect(len(client.Pushed())).To(BeNumerically(">=", 2))
			Expect(client.CloseCalls).To(Equal(1))
		})

		It("should invent demo sensors when none are registered", func() {
			server, err := simulator.NewServer(&simulator.ServerConfig{
				Logger:      logger,
				RabbitMQURL: "amqp://localhost:5672",
				Queue:       telemetry.DefaultSensorQueue,
				Interval:    10 * time.Millisecond,
				Sensors:     sensorList{},
				DemoSensors: 3,
			})
			Expect(err).NotTo(HaveOccurred())
			server.UseClient(client)

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			Expect(server.Run(ctx)).To(Succeed())

			ids := map[string]bool{}
			for _, body := range client.Pushed() {
				var r telemetry.SensorReading
				Expect(json.Unmarshal(body, &r)).To(Succeed())
				ids[r.SensorID] = true
			}
			Expect(ids).To(HaveLen(3))
		})

		It("should fail without any sensors", func() {
			server, err := simulator.NewServer(&simulator.ServerConfig{
				Logger:      logger,
				RabbitMQURL: "amqp://localhost:5672",
				Queue:       telemetry.DefaultSensorQueue,
				Interval:    10 * time.Millisecond,
				Sensors:     sensorList{},
			})
			Expect(err).NotTo(HaveOccurred())
			server.UseClient(client)
			Expect(server.Run(context.Background())).To(MatchError(ContainSubstring("no sensors")))
		})
	})
})

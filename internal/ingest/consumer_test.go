package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/ingest"
	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/pkg/mq/mock"
	"agrismart.dev/agrismart/pkg/telemetry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

var _ = Describe("ReadingConsumer", func() {
	var (
		logger *slog.Logger
		owner  string
		store  *memStore
		phones phoneBook
		in     *feed
		client *mock.MockClient
		notify *mock.MockClient
	)

	BeforeEach(func() {
		logger = testLogger()
		owner = primitive.NewObjectID().Hex()
		store = newMemStore(models.IoTSensor{SensorID: "soil-1", UserID: owner, Name: "East plot"})
		phones = phoneBook{owner: "+919812345678"}
		in = newFeed()
		client = mock.NewMockClient()
		client.QueueName = telemetry.DefaultSensorQueue
		client.ConsumeChannel = in.ch
		notify = mock.NewMockClient()
		notify.QueueName = telemetry.DefaultSMSQueue
	})

	Describe("NewReadingConsumer", func() {
		It("should return error when config is nil", func() {
			c, err := ingest.NewReadingConsumer(nil)
			Expect(err).To(MatchError(ContainSubstring("config cannot be nil")))
			Expect(c).To(BeNil())
		})

		DescribeTable("should validate configuration",
			func(mutate func(*ingest.ReadingConsumerConfig), msg string) {
				cfg := &ingest.ReadingConsumerConfig{Logger: logger, Store: store, Client: client}
				mutate(cfg)
				c, err := ingest.NewReadingConsumer(cfg)
				Expect(err).To(MatchError(ContainSubstring(msg)))
				Expect(c).To(BeNil())
			},
			Entry("logger", func(c *ingest.ReadingConsumerConfig) { c.Logger = nil }, "logger"),
			Entry("store", func(c *ingest.ReadingConsumerConfig) { c.Store = nil }, "store"),
			Entry("client", func(c *ingest.ReadingConsumerConfig) { c.Client = nil }, "mq client"),
			Entry("phones", func(c *ingest.ReadingConsumerConfig) { c.Notify = notify }, "phone book"),
		)
	})

	Context("when consuming", func() {
		var (
			consumer *ingest.ReadingConsumer
			cancel   context.CancelFunc
		)

		reading := func(moisture float64) telemetry.SensorReading {
			return telemetry.SensorReading{
				SensorID:        "soil-1",
				RecordedAt:      time.Now().UTC(),
				SoilMoisture:    moisture,
				SoilTemperature: 24,
				AirTemperature:  30,
				Humidity:        55,
				Battery:         80,
			}
		}

		start := func(cfg *ingest.ReadingConsumerConfig) {
			var err error
			consumer, err = ingest.NewReadingConsumer(cfg)
			Expect(err).NotTo(HaveOccurred())
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			Expect(consumer.Start(ctx)).To(Succeed())
		}

		BeforeEach(func() {
			start(&ingest.ReadingConsumerConfig{
				Logger: logger,
				Store:  store,
				Client: client,
				Notify: notify,
				Phones: phones,
			})
		})

		AfterEach(func() {
			cancel()
			Expect(consumer.Stop()).To(Succeed())
			Expect(client.CloseCalls).To(Equal(1))
		})

		It("should store a healthy reading without alerts", func() {
			tag := in.send(reading(35))
			Eventually(func() string { return in.acks.outcome(tag) }).Should(Equal("ack"))
			Expect(store.readingCount()).To(Equal(1))
			Expect(store.alertList()).To(BeEmpty())
			Expect(notify.Pushed()).To(BeEmpty())
		})

		It("should raise a critical alert once and queue one SMS", func() {
			first := in.send(reading(5))
			second := in.send(reading(4))
			Eventually(func() string { return in.acks.outcome(second) }).Should(Equal("ack"))
			Expect(in.acks.outcome(first)).To(Equal("ack"))

			Expect(store.readingCount()).To(Equal(2))
			alerts := store.alertList()
			Expect(alerts).To(HaveLen(1))
			Expect(alerts[0].Severity).To(Equal(models.SeverityCritical))

			pushed := notify.Pushed()
			Expect(pushed).To(HaveLen(1))
			var job telemetry.SMSJob
			Expect(json.Unmarshal(pushed[0], &job)).To(Succeed())
			Expect(job.To).To(Equal("+919812345678"))
			Expect(job.AlertID).To(Equal(alerts[0].ID))
			Expect(job.ID).NotTo(BeEmpty())
			Expect(job.Message).To(ContainSubstring("East plot"))
			Expect(job.Validate()).To(Succeed())
		})

		It("should not text for non-critical alerts", func() {
			tag := in.send(reading(15))
			Eventually(func() string { return in.acks.outcome(tag) }).Should(Equal("ack"))
			Expect(store.alertList()).To(HaveLen(1))
			Expect(notify.Pushed()).To(BeEmpty())
		})

		It("should still ack when the owner has no phone", func() {
			delete(phones, owner)
			tag := in.send(reading(5))
			Eventually(func() string { return in.acks.outcome(tag) }).Should(Equal("ack"))
			Expect(store.alertList()).To(HaveLen(1))
			Expect(notify.Pushed()).To(BeEmpty())
		})

		It("should still ack when queueing the SMS fails", func() {
			notify.PushError = errors.New("channel closed")
			tag := in.send(reading(5))
			Eventually(func() string { return in.acks.outcome(tag) }).Should(Equal("ack"))
			Expect(store.alertList()).To(HaveLen(1))
		})

		It("should reject poison messages", func() {
			garbage := in.raw([]byte("{not json"), false)
			empty := in.raw(nil, false)
			invalid := in.send(telemetry.SensorReading{SensorID: "soil-1"})
			unknown := in.send(telemetry.SensorReading{SensorID: "ghost", RecordedAt: time.Now()})

			Eventually(func() string { return in.acks.outcome(unknown) }).Should(Equal("reject"))
			Expect(in.acks.outcome(garbage)).To(Equal("reject"))
			Expect(in.acks.outcome(empty)).To(Equal("reject"))
			Expect(in.acks.outcome(invalid)).To(Equal("reject"))
			Expect(store.readingCount()).To(BeZero())
		})

		It("should requeue when the database fails", func() {
			store.mu.Lock()
			store.saveErr = errors.New("connection refused")
			store.mu.Unlock()

			tag := in.send(reading(35))
			Eventually(func() string { return in.acks.outcome(tag) }).Should(Equal("requeue"))
		})

		It("should store a requeued reading once when alerts failed the first time", func() {
			store.mu.Lock()
			store.alertErrs = []error{errors.New("deadlock detected")}
			store.mu.Unlock()

			body, err := json.Marshal(reading(5))
			Expect(err).NotTo(HaveOccurred())

			first := in.raw(body, false)
			Eventually(func() string { return in.acks.outcome(first) }).Should(Equal("requeue"))
			Expect(store.alertList()).To(BeEmpty())

			retry := in.raw(body, true)
			Eventually(func() string { return in.acks.outcome(retry) }).Should(Equal("ack"))
			Expect(store.readingCount()).To(Equal(1))
			Expect(store.alertList()).To(HaveLen(1))
			Expect(notify.Pushed()).To(HaveLen(1))
		})
	})
})

var _ = Describe("SMSConsumer", func() {
	var (
		logger *slog.Logger
		in     *feed
		client *mock.MockClient
		sender *fakeSender
	)

	BeforeEach(func() {
		logger = testLogger()
		in = newFeed()
		client = mock.NewMockClient()
		client.QueueName = telemetry.DefaultSMSQueue
		client.ConsumeChannel = in.ch
		sender = &fakeSender{configured: true}
	})

	It("should require a configured sender", func() {
		_, err := ingest.NewSMSConsumer(&ingest.SMSConsumerConfig{Logger: logger, Client: client, Sender: &fakeSender{}})
		Expect(err).To(MatchError(ContainSubstring("sms sender")))
		_, err = ingest.NewSMSConsumer(nil)
		Expect(err).To(HaveOccurred())
	})

	Context("when consuming", func() {
		var (
			consumer *ingest.SMSConsumer
			cancel   context.CancelFunc
		)

		BeforeEach(func() {
			var err error
			consumer, err = ingest.NewSMSConsumer(&ingest.SMSConsumerConfig{Logger: logger, Client: client, Sender: sender})
			Expect(err).NotTo(HaveOccurred())
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			Expect(consumer.Start(ctx)).To(Succeed())
		})

		AfterEach(func() {
			cancel()
			Expect(consumer.Stop()).To(Succeed())
		})

		It("should deliver a job", func() {
			tag := in.send(telemetry.SMSJob{ID: "job-1", To: "+919812345678", Message: "Soil is dry"})
			Eventually(func() string { return in.acks.outcome(tag) }).Should(Equal("ack"))
			Expect(sender.messages()).To(ConsistOf("+919812345678: Soil is dry"))
		})

		It("should drop a job without a recipient", func() {
			tag := in.send(telemetry.SMSJob{ID: "job-2", Message: "Soil is dry"})
			Eventually(func() string { return in.acks.outcome(tag) }).Should(Equal("reject"))
			Expect(sender.messages()).To(BeEmpty())
		})

		It("should retry a failed send once", func() {
			sender.mu.Lock()
			sender.fail = true
			sender.mu.Unlock()

			body, err := json.Marshal(telemetry.SMSJob{ID: "job-3", To: "+919812345678", Message: "x"})
			Expect(err).NotTo(HaveOccurred())

			first := in.raw(body, false)
			Eventually(func() string { return in.acks.outcome(first) }).Should(Equal("requeue"))
			retry := in.raw(body, true)
			Eventually(func() string { return in.acks.outcome(retry) }).Should(Equal("reject"))
		})
	})
})

var _ = Describe("ProfilePhones", func() {
	It("should treat a malformed user id as unknown", func() {
		_, err := ingest.ProfilePhones{}.PhoneForUser(context.Background(), "not-hex")
		Expect(err).To(MatchError(models.ErrNotFound))
	})

	It("should read the profile phone", func() {
		id := primitive.NewObjectID()
		phones := ingest.ProfilePhones{Profiles: profiles{id: {UserID: id, Phone: "+919800000000"}}}
		phone, err := phones.PhoneForUser(context.Background(), id.Hex())
		Expect(err).NotTo(HaveOccurred())
		Expect(phone).To(Equal("+919800000000"))
	})
})

type profiles map[primitive.ObjectID]*models.FarmerProfile

func (p profiles) ProfileByUser(_ context.Context, id primitive.ObjectID) (*models.FarmerProfile, error) {
	if profile, found := p[id]; found {
		return profile, nil
	}
	return nil, models.ErrNotFound
}

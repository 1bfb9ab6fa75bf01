package api_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrismart.dev/agrismart/internal/api"
	"agrismart.dev/agrismart/internal/mandi"
	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/internal/recommend"
)

var _ = Describe("Handlers", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness()
	})

	Describe("authentication", func() {
		It("should register, sign in and report the current user", func() {
			token, id := h.register("asha@example.com")

			me := h.do(http.MethodGet, "/api/auth/me", nil, token)
			Expect(me.Code).To(Equal(http.StatusOK))
			user := me.body["user"].(map[string]any)
			Expect(user["id"]).To(Equal(id))
			Expect(user).NotTo(HaveKey("password_hash"))
			Expect(me.body["is_admin"]).To(BeFalse())

			login := h.do(http.MethodPost, "/api/auth/login", map[string]string{
				"email": "ASHA@example.com", "password": "correct-horse",
			}, "")
			Expect(login.Code).To(Equal(http.StatusOK))
			Expect(login.Header().Get("Set-Cookie")).To(ContainSubstring("agrismart_session="))
		})

		It("should reject a duplicate email with 400", func() {
			h.register("dup@example.com")
			res := h.do(http.MethodPost, "/api/auth/register", map[string]string{
				"email": "dup@example.com", "password": "another-pass", "name": "Other",
			}, "")
			Expect(res.Code).To(Equal(http.StatusBadRequest))
			Expect(res.body["error"]).To(Equal("email already registered"))
		})

		It("should reject a short password", func() {
			res := h.do(http.MethodPost, "/api/auth/register", map[string]string{
				"email": "short@example.com", "password": "short", "name": "Short",
			}, "")
			Expect(res.Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject bad credentials with 401", func() {
			h.register("ravi@example.com")
			res := h.do(http.MethodPost, "/api/auth/login", map[string]string{
				"email": "ravi@example.com", "password": "wrong-password",
			}, "")
			Expect(res.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should accept the session cookie", func() {
			token, _ := h.register("cookie@example.com")
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			req.AddCookie(&http.Cookie{Name: "agrismart_session", Value: token})
			Expect(h.send(req, "").Code).To(Equal(http.StatusOK))
		})

		It("should throttle repeated sign-in attempts", func() {
			h = newHarness(func(c *api.ServerConfig) { c.AuthBurst = 2 })
			codes := []int{}
			for range 3 {
				codes = append(codes, h.do(http.MethodPost, "/api/auth/login", map[string]string{
					"email": "nobody@example.com", "password": "whatever1",
				}, "").Code)
			}
			Expect(codes).To(Equal([]int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}))
		})

		DescribeTable("should require a session",
			func(method, path string) {
				owner, _ := h.register("owner@example.com")
				fieldID := h.createField(owner)
				created := h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
					"field_id": fieldID, "crop_name": "Soybean",
				}, owner)
				Expect(created.Code).To(Equal(http.StatusCreated))
				cycleID := created.body["crop_cycle"].(map[string]any)["id"].(string)

				path = strings.NewReplacer(":field", fieldID, ":cycle", cycleID).Replace(path)
				res := h.do(method, path, map[string]any{"name": "x", "area_hectares": 1, "crop_name": "x"}, "")
				Expect(res.Code).To(Equal(http.StatusUnauthorized))

				Expect(h.farm.fieldCount()).To(Equal(1))
				Expect(h.farm.fieldName(fieldID)).To(Equal("North plot"))
				Expect(h.farm.cycleCount()).To(Equal(1))
				Expect(h.farm.cycleCrop(cycleID)).To(Equal("Soybean"))
			},
			Entry("list fields", http.MethodGet, "/api/fields"),
			Entry("create field", http.MethodPost, "/api/fields"),
			Entry("update field", http.MethodPut, "/api/fields/:field"),
			Entry("delete field", http.MethodDelete, "/api/fields/:field"),
			Entry("list cycles", http.MethodGet, "/api/crop-cycles"),
			Entry("create cycle", http.MethodPost, "/api/crop-cycles"),
			Entry("update cycle", http.MethodPut, "/api/crop-cycles/:cycle"),
			Entry("delete cycle", http.MethodDelete, "/api/crop-cycles/:cycle"),
			Entry("profile", http.MethodGet, "/api/profile"),
			Entry("update profile", http.MethodPut, "/api/profile"),
		)

		It("should reject a forged token", func() {
			res := h.do(http.MethodGet, "/api/fields", nil, "not.a.token")
			Expect(res.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should reject the token of a deleted account", func() {
			token, id := h.register("gone@example.com")
			Expect(h.do(http.MethodGet, "/api/fields", nil, token).Code).To(Equal(http.StatusOK))

			Expect(h.do(http.MethodDelete, "/api/admin/users/"+id, nil, h.adminToken()).Code).To(Equal(http.StatusOK))

			Expect(h.do(http.MethodGet, "/api/fields", nil, token).Code).To(Equal(http.StatusUnauthorized))
			Expect(h.do(http.MethodPost, "/api/fields", map[string]any{"name": "x", "area_hectares": 1}, token).Code).
				To(Equal(http.StatusUnauthorized))
			Expect(h.farm.fieldCount()).To(BeZero())

			page := h.do(http.MethodGet, "/dashboard", nil, token)
			Expect(page.Code).To(Equal(http.StatusSeeOther))
			Expect(page.Header().Get("Location")).To(Equal("/login"))
		})

		It("should report a failing user store as a server error", func() {
			token, _ := h.register("lookup@example.com")
			h.farm.mu.Lock()
			h.farm.lookupErr = errors.New("connection refused")
			h.farm.mu.Unlock()

			res := h.do(http.MethodGet, "/api/fields", nil, token)
			Expect(res.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("profile", func() {
		It("should return an empty profile, then the saved one", func() {
			token, _ := h.register("profile@example.com")

			res := h.do(http.MethodGet, "/api/profile", nil, token)
			Expect(res.Code).To(Equal(http.StatusOK))
			Expect(res.body["profile"].(map[string]any)["phone"]).To(BeEmpty())

			res = h.do(http.MethodPut, "/api/profile", map[string]any{
				"name": "Asha", "phone": "9876543210", "farm_size_acres": 4,
				"location": map[string]string{"state": "Maharashtra", "district": "Pune"},
			}, token)
			Expect(res.Code).To(Equal(http.StatusOK))
			Expect(res.body["profile"].(map[string]any)["phone"]).To(Equal("+919876543210"))
		})

		DescribeTable("should validate",
			func(body map[string]any) {
				token, _ := h.register("validate@example.com")
				Expect(h.do(http.MethodPut, "/api/profile", body, token).Code).To(Equal(http.StatusBadRequest))
			},
			Entry("short phone", map[string]any{"phone": "12345"}),
			Entry("foreign prefix", map[string]any{"phone": "+449876543210"}),
			Entry("negative farm size", map[string]any{"farm_size_acres": -1}),
		)
	})

	Describe("fields", func() {
		var token string

		BeforeEach(func() {
			token, _ = h.register("fields@example.com")
		})

		DescribeTable("should reject invalid fields without writing",
			func(body map[string]any) {
				res := h.do(http.MethodPost, "/api/fields", body, token)
				Expect(res.Code).To(Equal(http.StatusBadRequest))
				Expect(res.body["error"]).NotTo(BeEmpty())
				Expect(h.farm.fieldCount()).To(BeZero())
			},
			Entry("zero area", map[string]any{"name": "A", "area_hectares": 0}),
			Entry("negative area", map[string]any{"name": "A", "area_hectares": -3}),
			Entry("missing area", map[string]any{"name": "A"}),
			Entry("missing name", map[string]any{"area_hectares": 1}),
			Entry("unknown soil", map[string]any{"name": "A", "area_hectares": 1, "soil_type": "moon"}),
			Entry("unknown irrigation", map[string]any{"name": "A", "area_hectares": 1, "irrigation_type": "magic"}),
			Entry("latitude out of range", map[string]any{"name": "A", "area_hectares": 1, "coordinates": map[string]float64{"lat": 95, "lng": 10}}),
			Entry("degenerate boundary", map[string]any{"name": "A", "area_hectares": 1, "boundary": [][2]float64{{73.8, 18.5}, {73.8, 18.5}, {73.9, 18.5}}}),
		)

		It("should compute the boundary area and close the ring", func() {
			res := h.do(http.MethodPost, "/api/fields", map[string]any{
				"name": "Surveyed", "area_hectares": 1,
				"boundary": [][2]float64{{73.8000, 18.5000}, {73.8010, 18.5000}, {73.8010, 18.5010}, {73.8000, 18.5010}},
			}, token)
			Expect(res.Code).To(Equal(http.StatusCreated))
			field := res.body["field"].(map[string]any)
			Expect(field["boundary"]).To(HaveLen(5))
			// Roughly 105 m × 111 m.
			Expect(field["boundary_area_hectares"]).To(BeNumerically("~", 1.17, 0.05))
		})

		It("should hide other users' fields", func() {
			id := h.createField(token)
			other, _ := h.register("other@example.com")

			Expect(h.do(http.MethodGet, "/api/fields/"+id, nil, other).Code).To(Equal(http.StatusForbidden))
			Expect(h.do(http.MethodDelete, "/api/fields/"+id, nil, other).Code).To(Equal(http.StatusForbidden))
			Expect(h.do(http.MethodGet, "/api/fields/0123456789abcdef01234567", nil, token).Code).To(Equal(http.StatusNotFound))
			Expect(h.do(http.MethodGet, "/api/fields/not-an-id", nil, token).Code).To(Equal(http.StatusNotFound))
		})

		It("should update supplied attributes only", func() {
			id := h.createField(token)
			res := h.do(http.MethodPut, "/api/fields/"+id, map[string]any{"irrigation_type": "drip"}, token)
			Expect(res.Code).To(Equal(http.StatusOK))
			field := res.body["field"].(map[string]any)
			Expect(field["irrigation_type"]).To(Equal("drip"))
			Expect(field["name"]).To(Equal("North plot"))

			Expect(h.do(http.MethodPut, "/api/fields/"+id, map[string]any{"area_hectares": 0}, token).Code).
				To(Equal(http.StatusBadRequest))
		})

		It("should refuse to delete a field with an active cycle", func() {
			id := h.createField(token)
			Expect(h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
				"field_id": id, "crop_name": "Wheat", "status": "growing",
			}, token).Code).To(Equal(http.StatusCreated))

			res := h.do(http.MethodDelete, "/api/fields/"+id, nil, token)
			Expect(res.Code).To(Equal(http.StatusBadRequest))
			Expect(h.farm.fieldCount()).To(Equal(1))
			Expect(h.farm.cycleCount()).To(Equal(1))

			got := h.do(http.MethodGet, "/api/fields/"+id, nil, token)
			Expect(got.body["field"].(map[string]any)["active_cycle"]).NotTo(BeNil())
		})

		It("should delete a field without an active cycle", func() {
			id := h.createField(token)
			Expect(h.do(http.MethodDelete, "/api/fields/"+id, nil, token).Code).To(Equal(http.StatusOK))
			Expect(h.farm.fieldCount()).To(BeZero())
		})
	})

	Describe("crop cycles", func() {
		var token, fieldID string

		BeforeEach(func() {
			token, _ = h.register("cycles@example.com")
			fieldID = h.createField(token)
		})

		It("should default to planning and reject a second active cycle", func() {
			first := h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
				"field_id": fieldID, "crop_name": "Soybean", "planting_date": "2026-06-15",
			}, token)
			Expect(first.Code).To(Equal(http.StatusCreated))
			Expect(first.body["crop_cycle"].(map[string]any)["status"]).To(Equal("planning"))

			second := h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
				"field_id": fieldID, "crop_name": "Cotton", "status": "planted",
			}, token)
			Expect(second.Code).To(Equal(http.StatusBadRequest))
			Expect(second.body["error"]).To(Equal(api.ErrActiveCycleExists.Error()))
			Expect(h.farm.cycleCount()).To(Equal(1))
		})

		It("should allow a finished cycle next to an active one", func() {
			Expect(h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
				"field_id": fieldID, "crop_name": "Soybean", "status": "growing",
			}, token).Code).To(Equal(http.StatusCreated))
			Expect(h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
				"field_id": fieldID, "crop_name": "Gram", "status": "harvested",
			}, token).Code).To(Equal(http.StatusCreated))
		})

		It("should reject an unknown status", func() {
			res := h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
				"field_id": fieldID, "crop_name": "Soybean", "status": "sleeping",
			}, token)
			Expect(res.Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject a cycle on another user's field", func() {
			other, _ := h.register("intruder@example.com")
			res := h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
				"field_id": fieldID, "crop_name": "Soybean",
			}, other)
			Expect(res.Code).To(Equal(http.StatusForbidden))
			Expect(h.farm.cycleCount()).To(BeZero())
		})

		It("should block reactivation while another cycle is active", func() {
			done := h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
				"field_id": fieldID, "crop_name": "Gram", "status": "harvested",
			}, token)
			doneID := done.body["crop_cycle"].(map[string]any)["id"].(string)
			Expect(h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
				"field_id": fieldID, "crop_name": "Soybean", "status": "growing",
			}, token).Code).To(Equal(http.StatusCreated))

			res := h.do(http.MethodPut, "/api/crop-cycles/"+doneID, map[string]any{"status": "planted"}, token)
			Expect(res.Code).To(Equal(http.StatusBadRequest))
		})

		It("should stamp the harvest date when harvested", func() {
			created := h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
				"field_id": fieldID, "crop_name": "Soybean", "status": "growing",
			}, token)
			id := created.body["crop_cycle"].(map[string]any)["id"].(string)

			res := h.do(http.MethodPut, "/api/crop-cycles/"+id, map[string]any{"status": "harvested", "notes": "good yield"}, token)
			Expect(res.Code).To(Equal(http.StatusOK))
			cycle := res.body["crop_cycle"].(map[string]any)
			Expect(cycle["status"]).To(Equal("harvested"))
			Expect(cycle["actual_harvest_date"]).NotTo(BeNil())
			Expect(cycle["notes"]).To(Equal("good yield"))
		})

		It("should delete a cycle together with its activities", func() {
			created := h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
				"field_id": fieldID, "crop_name": "Soybean",
			}, token)
			id := created.body["crop_cycle"].(map[string]any)["id"].(string)
			Expect(h.do(http.MethodPost, "/api/field-activities", map[string]any{
				"crop_cycle_id": id, "activity_type": "sowing", "cost": 1200,
			}, token).Code).To(Equal(http.StatusCreated))

			Expect(h.do(http.MethodDelete, "/api/crop-cycles/"+id, nil, token).Code).To(Equal(http.StatusOK))
			list := h.do(http.MethodGet, "/api/field-activities", nil, token)
			Expect(list.body["field_activities"]).To(BeEmpty())
		})
	})

	Describe("field activities", func() {
		var token, fieldID, cycleID string

		BeforeEach(func() {
			token, _ = h.register("activities@example.com")
			fieldID = h.createField(token)
			res := h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
				"field_id": fieldID, "crop_name": "Onion", "status": "growing",
			}, token)
			cycleID = res.body["crop_cycle"].(map[string]any)["id"].(string)
		})

		It("should summarize costs per type", func() {
			for _, a := range []map[string]any{
				{"crop_cycle_id": cycleID, "field_id": fieldID, "activity_type": "fertilizer", "cost": 1500},
				{"crop_cycle_id": cycleID, "activity_type": "irrigation", "cost": 300, "date": "2026-07-01"},
				{"crop_cycle_id": cycleID, "activity_type": "fertilizer", "cost": 500},
			} {
				Expect(h.do(http.MethodPost, "/api/field-activities", a, token).Code).To(Equal(http.StatusCreated))
			}

			res := h.do(http.MethodGet, "/api/field-activities/summary?crop_cycle_id="+cycleID, nil, token)
			Expect(res.Code).To(Equal(http.StatusOK))
			summary := res.body["summary"].(map[string]any)
			Expect(summary["total"]).To(BeNumerically("==", 2300))
			Expect(summary["by_type"]).To(HaveKeyWithValue("fertilizer", BeNumerically("==", 2000)))
		})

		DescribeTable("should validate activities",
			func(mutate func(map[string]any)) {
				body := map[string]any{"crop_cycle_id": cycleID, "activity_type": "weeding", "cost": 10}
				mutate(body)
				Expect(h.do(http.MethodPost, "/api/field-activities", body, token).Code).To(Equal(http.StatusBadRequest))
			},
			Entry("unknown type", func(b map[string]any) { b["activity_type"] = "dancing" }),
			Entry("negative cost", func(b map[string]any) { b["cost"] = -1 }),
			Entry("field mismatch", func(b map[string]any) { b["field_id"] = "0123456789abcdef01234567" }),
			Entry("missing cycle", func(b map[string]any) { delete(b, "crop_cycle_id") }),
		)
	})

	Describe("recommendations", func() {
		var token string

		BeforeEach(func() {
			token, _ = h.register("recommend@example.com")
		})

		It("should require nitrogen", func() {
			res := h.do(http.MethodPost, "/api/recommend", map[string]any{
				"phosphorus": 40, "potassium": 40, "ph": 6.5,
			}, token)
			Expect(res.Code).To(Equal(http.StatusBadRequest))
			Expect(res.body["error"]).To(ContainSubstring("nitrogen"))
		})

		It("should reject an impossible pH", func() {
			res := h.do(http.MethodPost, "/api/recommend", map[string]any{
				"nitrogen": 90, "phosphorus": 40, "potassium": 40, "ph": 15,
			}, token)
			Expect(res.Code).To(Equal(http.StatusBadRequest))
		})

		It("should align market insights with crops when the price API is down", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			srv.Close()
			logger := testLogger()
			prices, err := mandi.New(&mandi.Config{Logger: logger, APIKey: "key", BaseURL: srv.URL})
			Expect(err).NotTo(HaveOccurred())
			engine, err := recommend.NewEngine(logger, prices)
			Expect(err).NotTo(HaveOccurred())
			h = newHarness(func(c *api.ServerConfig) { c.Recommender = engine })
			token, _ = h.register("offline@example.com")

			res := h.do(http.MethodPost, "/api/recommend", map[string]any{
				"nitrogen": 90, "phosphorus": 40, "potassium": 40, "ph": 6.5, "season": "kharif",
			}, token)
			Expect(res.Code).To(Equal(http.StatusOK))
			Expect(res.body["success"]).To(BeTrue())

			crops := res.body["crop_recommendations"].([]any)
			insights := res.body["market_insights"].([]any)
			Expect(crops).To(HaveLen(3))
			Expect(insights).To(HaveLen(len(crops)))
			for i := range crops {
				crop := crops[i].(map[string]any)
				insight := insights[i].(map[string]any)
				Expect(insight["crop"]).To(Equal(crop["crop"]))
				Expect(insight["demand"]).To(Equal("Unavailable"))
				Expect(insight["current_price"]).To(BeNil())
			}

			fert := res.body["fertilizer_recommendations"].([]any)
			Expect(fert).To(HaveLen(1))
			Expect(fert[0].(map[string]any)["product"]).To(Equal("Urea"))
		})

		It("should return an empty fertilizer list when nitrogen suffices", func() {
			res := h.do(http.MethodPost, "/api/recommend", map[string]any{
				"nitrogen": 200, "phosphorus": 40, "potassium": 40, "ph": 6.5,
			}, token)
			Expect(res.Code).To(Equal(http.StatusOK))
			Expect(res.body["fertilizer_recommendations"]).To(BeEmpty())
			Expect(res.body["fertilizer_recommendations"]).NotTo(BeNil())
		})

		It("should fill soil values from the field's latest analysis", func() {
			fieldID := h.createField(token)
			Expect(h.do(http.MethodPost, "/api/recommend", map[string]any{"field_id": fieldID}, token).Code).
				To(Equal(http.StatusBadRequest))

			Expect(h.do(http.MethodPost, "/api/soil-analysis", map[string]any{
				"field_id": fieldID, "nitrogen": 120, "phosphorus": 30, "potassium": 45, "ph": 7.1,
			}, token).Code).To(Equal(http.StatusCreated))

			res := h.do(http.MethodPost, "/api/recommend", map[string]any{"field_id": fieldID}, token)
			Expect(res.Code).To(Equal(http.StatusOK))
			Expect(res.body["crop_recommendations"]).To(HaveLen(3))
		})
	})

	Describe("soil analysis", func() {
		It("should validate pH and nutrients", func() {
			token, _ := h.register("soil@example.com")
			fieldID := h.createField(token)
			Expect(h.do(http.MethodPost, "/api/soil-analysis", map[string]any{
				"field_id": fieldID, "nitrogen": 120, "phosphorus": 30, "potassium": 45, "ph": 14.5,
			}, token).Code).To(Equal(http.StatusBadRequest))
			Expect(h.do(http.MethodPost, "/api/soil-analysis", map[string]any{
				"field_id": fieldID, "nitrogen": -1, "phosphorus": 30, "potassium": 45, "ph": 7,
			}, token).Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("reference data", func() {
		var token string

		BeforeEach(func() {
			token, _ = h.register("reference@example.com")
			Expect(h.reference.CreateScheme(context.Background(), &models.Scheme{
				Name:     "PM-KISAN",
				NameHi:   "पीएम-किसान",
				Category: "income_support",
			})).To(Succeed())
		})

		It("should serve curated translations", func() {
			res := h.do(http.MethodGet, "/api/schemes?lang=hi", nil, token)
			Expect(res.Code).To(Equal(http.StatusOK))
			schemes := res.body["schemes"].([]any)
			Expect(schemes).To(HaveLen(1))
			Expect(schemes[0].(map[string]any)["name"]).To(Equal("पीएम-किसान"))
		})

		It("should reject an unsupported language", func() {
			Expect(h.do(http.MethodGet, "/api/schemes?lang=fr", nil, token).Code).To(Equal(http.StatusBadRequest))
		})

		It("should list and trend market prices", func() {
			now := time.Now().UTC()
			for i, price := range []float64{2100, 2200} {
				Expect(h.reference.CreateMarketPrice(context.Background(), &models.MarketPrice{
					Commodity: "Wheat", Market: "Pune", ModalPrice: price,
					ArrivalDate: now.AddDate(0, 0, -i),
				})).To(Succeed())
			}

			res := h.do(http.MethodGet, "/api/market-prices?commodity=wheat&limit=1", nil, token)
			Expect(res.Code).To(Equal(http.StatusOK))
			Expect(res.body["market_prices"]).To(HaveLen(1))

			Expect(h.do(http.MethodGet, "/api/market-prices?limit=abc", nil, token).Code).To(Equal(http.StatusBadRequest))
			Expect(h.do(http.MethodGet, "/api/market-prices/trends", nil, token).Code).To(Equal(http.StatusBadRequest))

			trend := h.do(http.MethodGet, "/api/market-prices/trends?commodity=Wheat", nil, token)
			Expect(trend.body["trend"]).To(HaveLen(2))
		})

		It("should return 404 for a missing crop", func() {
			Expect(h.do(http.MethodGet, "/api/encyclopedia/42", nil, token).Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("weather", func() {
		It("should default to the configured location", func() {
			token, _ := h.register("weather@example.com")
			res := h.do(http.MethodGet, "/api/weather", nil, token)
			Expect(res.Code).To(Equal(http.StatusOK))
			report := res.body["weather"].(map[string]any)
			Expect(report["lat"]).To(BeNumerically("==", 18.52))
			Expect(report["source"]).To(Equal("fallback"))

			Expect(h.do(http.MethodGet, "/api/weather?lat=91&lng=0", nil, token).Code).To(Equal(http.StatusBadRequest))
			Expect(h.do(http.MethodGet, "/api/weather?lat=north", nil, token).Code).To(Equal(http.StatusBadRequest))
		})

		DescribeTable("should reject coordinates that are not finite",
			func(query string) {
				token, _ := h.register("finite@example.com")
				res := h.do(http.MethodGet, "/api/weather?"+query, nil, token)
				Expect(res.Code).To(Equal(http.StatusBadRequest))
				Expect(res.body).To(HaveKeyWithValue("success", false))
			},
			Entry("NaN latitude", "lat=NaN&lng=73"),
			Entry("infinite longitude", "lng=Inf&lat=18"),
			Entry("negative infinity", "lat=-Inf&lng=73"),
		)
	})

	Describe("disease detection", func() {
		upload := func(data []byte) *http.Request {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, err := mw.CreateFormFile("image", "leaf.png")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(mw.Close()).To(Succeed())
			req := httptest.NewRequest(http.MethodPost, "/api/ai/disease-detection", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			return req
		}

		pngBytes := func() []byte {
			img := image.NewRGBA(image.Rect(0, 0, 8, 8))
			img.Set(1, 1, color.RGBA{G: 200, A: 255})
			var buf bytes.Buffer
			Expect(png.Encode(&buf, img)).To(Succeed())
			return buf.Bytes()
		}

		It("should report 503 when not configured", func() {
			token, _ := h.register("disease@example.com")
			res := h.send(upload(pngBytes()), token)
			Expect(res.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(res.body["configured"]).To(BeFalse())
			Expect(res.body["success"]).To(BeFalse())
		})

		It("should diagnose an image", func() {
			h = newHarness(func(c *api.ServerConfig) { c.Disease = fakeDetector{} })
			token, _ := h.register("disease@example.com")
			res := h.send(upload(pngBytes()), token)
			Expect(res.Code).To(Equal(http.StatusOK))
			Expect(res.body["diagnosis"].(map[string]any)["disease"]).To(Equal("Leaf Blight"))
		})

		It("should reject files that are not images", func() {
			h = newHarness(func(c *api.ServerConfig) { c.Disease = fakeDetector{} })
			token, _ := h.register("disease@example.com")
			Expect(h.send(upload([]byte("plain text, not a photo")), token).Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject a PNG whose pixels do not decode", func() {
			h = newHarness(func(c *api.ServerConfig) { c.Disease = fakeDetector{} })
			token, _ := h.register("disease@example.com")
			corrupt := append(pngBytes()[:16], bytes.Repeat([]byte{0xde, 0xad}, 64)...)
			Expect(http.DetectContentType(corrupt)).To(Equal("image/png"))

			res := h.send(upload(corrupt), token)
			Expect(res.Code).To(Equal(http.StatusBadRequest))
			Expect(res.body["error"]).To(Equal("image could not be decoded"))
		})

		It("should finish archiving before shutdown returns", func() {
			archive := newSlowArchive()
			h = newHarness(func(c *api.ServerConfig) {
				c.Disease = fakeDetector{}
				c.Archive = archive
			})
			token, _ := h.register("disease@example.com")
			Expect(h.send(upload(pngBytes()), token).Code).To(Equal(http.StatusOK))
			Eventually(archive.started).Should(Receive())

			stopped := make(chan error, 1)
			go func() { stopped <- h.server.Shutdown() }()
			Consistently(stopped, 200*time.Millisecond).ShouldNot(Receive())

			close(archive.release)
			Eventually(stopped).Should(Receive(BeNil()))
			Expect(archive.stored.Load()).To(BeEquivalentTo(1))
		})

		It("should surface model failures as 500", func() {
			h = newHarness(func(c *api.ServerConfig) { c.Disease = fakeDetector{err: errors.New("quota exceeded")} })
			token, _ := h.register("disease@example.com")
			Expect(h.send(upload(pngBytes()), token).Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("sms", func() {
		It("should report when SMS is not configured", func() {
			token, _ := h.register("sms@example.com")
			res := h.do(http.MethodPost, "/api/notifications/sms", map[string]string{"message": "hi"}, token)
			Expect(res.Code).To(Equal(http.StatusOK))
			Expect(res.body["success"]).To(BeFalse())
			Expect(res.body["configured"]).To(BeFalse())
		})

		It("should send to the profile phone", func() {
			sender := &fakeSMS{}
			h = newHarness(func(c *api.ServerConfig) { c.SMS = sender })
			token, _ := h.register("sms@example.com")

			Expect(h.do(http.MethodPost, "/api/notifications/sms", map[string]string{"message": "hi"}, token).Code).
				To(Equal(http.StatusBadRequest))

			Expect(h.do(http.MethodPut, "/api/profile", map[string]any{"phone": "+919812345678"}, token).Code).
				To(Equal(http.StatusOK))
			res := h.do(http.MethodPost, "/api/notifications/sms", map[string]string{"message": "Rain expected"}, token)
			Expect(res.Code).To(Equal(http.StatusOK))
			Expect(res.body["message_id"]).To(Equal("msg-1"))
			Expect(sender.sent).To(ConsistOf("+919812345678: Rain expected"))
		})

		It("should surface gateway failures as 500", func() {
			h = newHarness(func(c *api.ServerConfig) { c.SMS = &fakeSMS{fail: true} })
			token, _ := h.register("sms@example.com")
			h.do(http.MethodPut, "/api/profile", map[string]any{"phone": "9812345678"}, token)
			res := h.do(http.MethodPost, "/api/notifications/sms", map[string]string{"message": "x"}, token)
			Expect(res.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("sensors", func() {
		It("should register sensors and manage their alerts", func() {
			token, _ := h.register("sensors@example.com")
			fieldID := h.createField(token)

			res := h.do(http.MethodPost, "/api/sensors", map[string]any{
				"sensor_id": "soil-1", "field_id": fieldID, "name": "East sensor",
			}, token)
			Expect(res.Code).To(Equal(http.StatusCreated))
			Expect(res.body["sensor"].(map[string]any)["kind"]).To(Equal("soil"))

			dup := h.do(http.MethodPost, "/api/sensors", map[string]any{"sensor_id": "soil-1", "field_id": fieldID}, token)
			Expect(dup.Code).To(Equal(http.StatusBadRequest))

			id := h.sensors.addAlert(models.SensorAlert{SensorID: "soil-1", Severity: models.SeverityCritical, Metric: "soil_moisture"})

			open := h.do(http.MethodGet, "/api/sensors/alerts?resolved=false", nil, token)
			Expect(open.body["alerts"]).To(HaveLen(1))

			other, _ := h.register("neighbour@example.com")
			path := "/api/sensors/alerts/" + itoa(id)
			Expect(h.do(http.MethodPost, path+"/acknowledge", nil, other).Code).To(Equal(http.StatusForbidden))

			ack := h.do(http.MethodPost, path+"/acknowledge", nil, token)
			Expect(ack.Code).To(Equal(http.StatusOK))
			Expect(ack.body["alert"].(map[string]any)["acknowledged"]).To(BeTrue())

			Expect(h.do(http.MethodPost, path+"/resolve", nil, token).Code).To(Equal(http.StatusOK))
			open = h.do(http.MethodGet, "/api/sensors/alerts?resolved=false", nil, token)
			Expect(open.body["alerts"]).To(BeEmpty())

			Expect(h.do(http.MethodGet, "/api/sensors/alerts?resolved=maybe", nil, token).Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("admin", func() {
		DescribeTable("should forbid non-admins without mutating",
			func(method, path string, body any) {
				admin := h.adminToken()
				scheme := h.do(http.MethodPost, "/api/admin/schemes", map[string]any{"name": "PM-KISAN"}, admin)
				Expect(scheme.Code).To(Equal(http.StatusCreated))
				crop := h.do(http.MethodPost, "/api/admin/crops", map[string]any{"common_name": "Wheat"}, admin)
				Expect(crop.Code).To(Equal(http.StatusCreated))
				price := h.do(http.MethodPost, "/api/admin/market-prices", map[string]any{
					"commodity": "Wheat", "market": "Pune", "modal_price": 2200, "arrival_date": "2026-10-01",
				}, admin)
				Expect(price.Code).To(Equal(http.StatusCreated))
				schemeID := uint(scheme.body["scheme"].(map[string]any)["id"].(float64))
				cropID := uint(crop.body["crop"].(map[string]any)["id"].(float64))
				priceID := uint(price.body["market_price"].(map[string]any)["id"].(float64))

				token, userID := h.register("farmer@example.com")
				path = strings.NewReplacer(
					":user", userID, ":scheme", itoa(schemeID), ":crop", itoa(cropID), ":price", itoa(priceID),
				).Replace(path)

				before := h.reference.priceCount()
				Expect(h.do(method, path, body, token).Code).To(Equal(http.StatusForbidden))
				Expect(h.do(method, path, body, "").Code).To(Equal(http.StatusUnauthorized))
				Expect(h.reference.priceCount()).To(Equal(before))
				Expect(h.reference.has(schemeID, cropID, priceID)).To(BeTrue())
				Expect(h.farm.hasUser(userID)).To(BeTrue())
				Expect(h.farm.hasUser(h.adminID.Hex())).To(BeTrue())
			},
			Entry("stats", http.MethodGet, "/api/admin/stats", nil),
			Entry("users", http.MethodGet, "/api/admin/users", nil),
			Entry("create price", http.MethodPost, "/api/admin/market-prices", map[string]any{
				"commodity": "Rice", "market": "Nashik", "modal_price": 2500, "arrival_date": "2026-10-01",
			}),
			Entry("export", http.MethodGet, "/api/admin/market-prices/export", nil),
			Entry("delete user", http.MethodDelete, "/api/admin/users/:user", nil),
			Entry("delete scheme", http.MethodDelete, "/api/admin/schemes/:scheme", nil),
			Entry("delete crop", http.MethodDelete, "/api/admin/crops/:crop", nil),
			Entry("delete price", http.MethodDelete, "/api/admin/market-prices/:price", nil),
		)

		It("should serve stats gathered from every store", func() {
			token, _ := h.register("farmer@example.com")
			h.createField(token)

			res := h.do(http.MethodGet, "/api/admin/stats", nil, h.adminToken())
			Expect(res.Code).To(Equal(http.StatusOK))
			stats := res.body["stats"].(map[string]any)
			Expect(stats["users"]).To(BeNumerically("==", 2))
			Expect(stats["fields"]).To(BeNumerically("==", 1))
		})

		It("should not let an admin delete themselves", func() {
			res := h.do(http.MethodDelete, "/api/admin/users/"+h.adminID.Hex(), nil, h.adminToken())
			Expect(res.Code).To(Equal(http.StatusBadRequest))

			_, id := h.register("leaving@example.com")
			Expect(h.do(http.MethodDelete, "/api/admin/users/"+id, nil, h.adminToken()).Code).To(Equal(http.StatusOK))
		})

		It("should manage schemes and crops", func() {
			admin := h.adminToken()
			res := h.do(http.MethodPost, "/api/admin/schemes", map[string]any{
				"name": "Soil Health Card", "eligibility": []string{"All farmers"},
			}, admin)
			Expect(res.Code).To(Equal(http.StatusCreated))
			id := res.body["scheme"].(map[string]any)["id"].(float64)

			upd := h.do(http.MethodPut, "/api/admin/schemes/"+itoa(uint(id)), map[string]any{"name": "Soil Health Card Scheme"}, admin)
			Expect(upd.Code).To(Equal(http.StatusOK))
			Expect(h.do(http.MethodDelete, "/api/admin/schemes/"+itoa(uint(id)), nil, admin).Code).To(Equal(http.StatusOK))
			Expect(h.do(http.MethodDelete, "/api/admin/schemes/"+itoa(uint(id)), nil, admin).Code).To(Equal(http.StatusNotFound))

			Expect(h.do(http.MethodPost, "/api/admin/crops", map[string]any{"common_name": "Rice"}, admin).Code).
				To(Equal(http.StatusCreated))
			Expect(h.do(http.MethodPost, "/api/admin/crops", map[string]any{"common_name": "Rice"}, admin).Code).
				To(Equal(http.StatusBadRequest))
			Expect(h.do(http.MethodPost, "/api/admin/crops", map[string]any{}, admin).Code).
				To(Equal(http.StatusBadRequest))
		})

		It("should validate market prices", func() {
			admin := h.adminToken()
			Expect(h.do(http.MethodPost, "/api/admin/market-prices", map[string]any{
				"commodity": "Rice", "market": "Nashik", "min_price": 3000, "max_price": 2000,
				"modal_price": 2500, "arrival_date": "2026-10-01",
			}, admin).Code).To(Equal(http.StatusBadRequest))
			Expect(h.do(http.MethodPost, "/api/admin/market-prices", map[string]any{
				"commodity": "Rice", "market": "Nashik", "modal_price": 2500,
			}, admin).Code).To(Equal(http.StatusBadRequest))
			Expect(h.do(http.MethodPost, "/api/admin/market-prices", map[string]any{
				"commodity": "Rice", "market": "Nashik", "modal_price": 2500, "arrival_date": "2026-10-01",
			}, admin).Code).To(Equal(http.StatusCreated))
		})
	})

	Describe("pages", func() {
		It("should redirect visitors to the sign-in page", func() {
			for _, path := range []string{"/dashboard", "/market", "/schemes", "/admin", "/fields/0123456789abcdef01234567"} {
				res := h.send(httptest.NewRequest(http.MethodGet, path, nil), "")
				Expect(res.Code).To(Equal(http.StatusSeeOther), path)
				Expect(res.Header().Get("Location")).To(Equal("/login"))
			}
		})

		It("should render the dashboard with escaped content", func() {
			token, _ := h.register("pages@example.com")
			h.do(http.MethodPost, "/api/fields", map[string]any{"name": "<script>x</script>", "area_hectares": 1}, token)

			res := h.send(httptest.NewRequest(http.MethodGet, "/dashboard", nil), token)
			Expect(res.Code).To(Equal(http.StatusOK))
			Expect(res.Header().Get("Content-Type")).To(HavePrefix("text/html"))
			Expect(res.Body.String()).To(ContainSubstring("&lt;script&gt;"))
			Expect(res.Body.String()).NotTo(ContainSubstring("<script>x"))
		})

		It("should forbid the admin page to farmers", func() {
			token, _ := h.register("pages@example.com")
			denied := h.send(httptest.NewRequest(http.MethodGet, "/admin", nil), token)
			Expect(denied.Code).To(Equal(http.StatusForbidden))
			Expect(denied.Body.String()).To(ContainSubstring("<h1>Forbidden</h1>"))

			res := h.send(httptest.NewRequest(http.MethodGet, "/admin", nil), h.adminToken())
			Expect(res.Code).To(Equal(http.StatusOK))
			Expect(res.Body.String()).To(ContainSubstring("<h1>Back office</h1>"))
			Expect(res.Body.String()).To(ContainSubstring("<td>pages@example.com</td>"))
			Expect(res.Body.String()).To(ContainSubstring(`<a href="/admin">Admin</a>`))
		})

		It("should render a field with its crop cycles", func() {
			token, _ := h.register("pages@example.com")
			fieldID := h.createField(token)
			Expect(h.do(http.MethodPost, "/api/crop-cycles", map[string]any{
				"field_id": fieldID, "crop_name": "Soybean", "planting_date": "2026-06-15",
			}, token).Code).To(Equal(http.StatusCreated))

			res := h.send(httptest.NewRequest(http.MethodGet, "/fields/"+fieldID, nil), token)
			Expect(res.Code).To(Equal(http.StatusOK))
			body := res.Body.String()
			Expect(body).To(HavePrefix("<!doctype html>"))
			Expect(body).To(ContainSubstring("<title>North plot · AgriSmart</title>"))
			Expect(body).To(ContainSubstring("<td>Soybean</td><td>—</td><td>planning</td><td>2026-06-15</td>"))
			Expect(body).To(ContainSubstring(`<span class="muted">pages@example.com</span>`))
			Expect(body).NotTo(ContainSubstring("No crop cycles yet."))
		})

		It("should show a missing field as not found", func() {
			token, _ := h.register("pages@example.com")
			res := h.send(httptest.NewRequest(http.MethodGet, "/fields/0123456789abcdef01234567", nil), token)
			Expect(res.Code).To(Equal(http.StatusNotFound))
			Expect(res.Body.String()).To(ContainSubstring("<h1>Not found</h1>"))
		})

		It("should link the other scheme languages", func() {
			token, _ := h.register("pages@example.com")
			res := h.send(httptest.NewRequest(http.MethodGet, "/schemes?lang=fr", nil), token)
			Expect(res.Code).To(Equal(http.StatusOK))
			Expect(res.Body.String()).To(ContainSubstring("<strong>English</strong>"))
			Expect(res.Body.String()).To(ContainSubstring(`<a href="/schemes?lang=hi">`))
		})

		It("should sign in through the form", func() {
			h.register("form@example.com")
			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString("email=form%40example.com&password=correct-horse"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			res := h.send(req, "")
			Expect(res.Code).To(Equal(http.StatusSeeOther))
			Expect(res.Header().Get("Location")).To(Equal("/dashboard"))

			req = httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString("email=form%40example.com&password=nope-nope"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			failed := h.send(req, "")
			Expect(failed.Code).To(Equal(http.StatusUnauthorized))
			Expect(failed.Body.String()).To(ContainSubstring(`<p class="error">Invalid email or password.</p>`))
			Expect(failed.Body.String()).To(ContainSubstring(`value="form@example.com"`))
		})
	})

	It("should tag responses with a request id and security headers", func() {
		res := h.do(http.MethodGet, "/health", nil, "")
		Expect(res.Code).To(Equal(http.StatusOK))
		Expect(res.Header().Get(api.RequestIDHeader)).NotTo(BeEmpty())
		Expect(res.Header().Get("X-Frame-Options")).To(Equal("DENY"))
		Expect(res.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))
	})
})

func itoa(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}

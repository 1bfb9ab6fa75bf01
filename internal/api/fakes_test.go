package api_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrismart.dev/agrismart/internal/gemini"
	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/internal/weather"
)

// memFarm is an in-memory UserStore and FarmStore.
type memFarm struct {
	mu         sync.Mutex
	users      map[primitive.ObjectID]*models.User
	profiles   map[primitive.ObjectID]*models.FarmerProfile
	fields     map[primitive.ObjectID]*models.Field
	cycles     map[primitive.ObjectID]*models.CropCycle
	activities []*models.FieldActivity
	soil       []*models.SoilAnalysis

	// lookupErr fails UserByID when set.
	lookupErr error
}

func newMemFarm() *memFarm {
	return &memFarm{
		users:    map[primitive.ObjectID]*models.User{},
		profiles: map[primitive.ObjectID]*models.FarmerProfile{},
		fields:   map[primitive.ObjectID]*models.Field{},
		cycles:   map[primitive.ObjectID]*models.CropCycle{},
	}
}

func (m *memFarm) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == strings.ToLower(u.Email) {
			return models.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	u.Email = strings.ToLower(u.Email)
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memFarm) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memFarm) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	u, found := m.users[id]
	if !found {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memFarm) SetAdminFlag(_ context.Context, id primitive.ObjectID, admin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, found := m.users[id]
	if !found {
		return models.ErrNotFound
	}
	u.IsAdmin = admin
	return nil
}

func (m *memFarm) ListUsers(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memFarm) DeleteUser(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.users[id]; !found {
		return models.ErrNotFound
	}
	delete(m.users, id)
	delete(m.profiles, id)
	return nil
}

func (m *memFarm) CountUsers(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *memFarm) ProfileByUser(_ context.Context, userID primitive.ObjectID) (*models.FarmerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, found := m.profiles[userID]
	if !found {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memFarm) UpsertProfile(_ context.Context, p *models.FarmerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, found := m.profiles[p.UserID]; found {
		p.ID = existing.ID
	} else {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

func (m *memFarm) ListFields(_ context.Context, userID primitive.ObjectID) ([]models.Field, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Field
	for _, f := range m.fields {
		if f.UserID == userID {
			cp := *f
			cp.ActiveCycle = m.activeLocked(f.ID)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m *memFarm) FieldByID(_ context.Context, id primitive.ObjectID) (*models.Field, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, found := m.fields[id]
	if !found {
		return nil, models.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memFarm) CreateField(_ context.Context, f *models.Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = primitive.NewObjectID()
	f.CreatedAt = time.Now()
	cp := *f
	m.fields[f.ID] = &cp
	return nil
}

func (m *memFarm) UpdateField(_ context.Context, f *models.Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.fields[f.ID]; !found {
		return models.ErrNotFound
	}
	cp := *f
	cp.ActiveCycle = nil
	m.fields[f.ID] = &cp
	return nil
}

func (m *memFarm) DeleteField(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.fields[id]; !found {
		return models.ErrNotFound
	}
	delete(m.fields, id)
	return nil
}

func (m *memFarm) CountFields(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.fields)), nil
}

func (m *memFarm) ListCycles(_ context.Context, f models.CycleFilter) ([]models.CropCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CropCycle
	for _, c := range m.cycles {
		if c.UserID != f.UserID || (f.FieldID != nil && c.FieldID != *f.FieldID) || (f.Status != "" && c.Status != f.Status) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memFarm) CycleByID(_ context.Context, id primitive.ObjectID) (*models.CropCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, found := m.cycles[id]
	if !found {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memFarm) activeLocked(fieldID primitive.ObjectID) *models.CropCycle {
	for _, c := range m.cycles {
		if c.FieldID == fieldID && c.Status.Active() {
			cp := *c
			return &cp
		}
	}
	return nil
}

func (m *memFarm) ActiveCycle(_ context.Context, fieldID primitive.ObjectID) (*models.CropCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.activeLocked(fieldID); c != nil {
		return c, nil
	}
	return nil, models.ErrNotFound
}

func (m *memFarm) CreateCycle(_ context.Context, c *models.CropCycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = primitive.NewObjectID()
	cp := *c
	m.cycles[c.ID] = &cp
	return nil
}

func (m *memFarm) UpdateCycle(_ context.Context, c *models.CropCycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.cycles[c.ID]; !found {
		return models.ErrNotFound
	}
	cp := *c
	m.cycles[c.ID] = &cp
	return nil
}

func (m *memFarm) DeleteCycle(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.cycles[id]; !found {
		return models.ErrNotFound
	}
	delete(m.cycles, id)
	kept := m.activities[:0]
	for _, a := range m.activities {
		if a.CropCycleID != id {
			kept = append(kept, a)
		}
	}
	m.activities = kept
	return nil
}

func (m *memFarm) CountCycles(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.cycles)), nil
}

func (m *memFarm) ListActivities(_ context.Context, f models.ActivityFilter) ([]models.FieldActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FieldActivity
	for _, a := range m.activities {
		if a.UserID != f.UserID || (f.FieldID != nil && a.FieldID != *f.FieldID) || (f.CropCycleID != nil && a.CropCycleID != *f.CropCycleID) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memFarm) CreateActivity(_ context.Context, a *models.FieldActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = primitive.NewObjectID()
	cp := *a
	m.activities = append(m.activities, &cp)
	return nil
}

func (m *memFarm) ActivityCostSummary(_ context.Context, userID, cycleID primitive.ObjectID) (*models.CostSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := &models.CostSummary{CropCycleID: cycleID, ByType: map[string]float64{}}
	for _, a := range m.activities {
		if a.UserID == userID && a.CropCycleID == cycleID {
			sum.Total += a.Cost
			sum.ByType[a.ActivityType] += a.Cost
			sum.Activities++
		}
	}
	return sum, nil
}

func (m *memFarm) ListSoilAnalyses(_ context.Context, userID primitive.ObjectID, fieldID *primitive.ObjectID) ([]models.SoilAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SoilAnalysis
	for _, a := range m.soil {
		if a.UserID == userID && (fieldID == nil || a.FieldID == *fieldID) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memFarm) CreateSoilAnalysis(_ context.Context, a *models.SoilAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = primitive.NewObjectID()
	cp := *a
	m.soil = append(m.soil, &cp)
	return nil
}

func (m *memFarm) LatestSoilAnalysis(_ context.Context, fieldID primitive.ObjectID) (*models.SoilAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.SoilAnalysis
	for _, a := range m.soil {
		if a.FieldID == fieldID && (latest == nil || a.TestDate.After(latest.TestDate)) {
			latest = a
		}
	}
	if latest == nil {
		return nil, models.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memFarm) cycleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cycles)
}

func (m *memFarm) fieldCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fields)
}

// fieldName returns the stored name of a field, or "" once it is gone.
func (m *memFarm) fieldName(hex string) string {
	id, _ := primitive.ObjectIDFromHex(hex)
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.fields[id]; ok {
		return f.Name
	}
	return ""
}

func (m *memFarm) cycleCrop(hex string) string {
	id, _ := primitive.ObjectIDFromHex(hex)
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cycles[id]; ok {
		return c.CropName
	}
	return ""
}

func (m *memFarm) hasUser(hex string) bool {
	id, _ := primitive.ObjectIDFromHex(hex)
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	return ok
}

// memReference is an in-memory ReferenceStore.
type memReference struct {
	mu      sync.Mutex
	nextID  uint
	schemes map[uint]*models.Scheme
	crops   map[uint]*models.Crop
	prices  []models.MarketPrice
}

func newMemReference() *memReference {
	return &memReference{schemes: map[uint]*models.Scheme{}, crops: map[uint]*models.Crop{}}
}

func (m *memReference) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memReference) ListSchemes(_ context.Context, f models.SchemeFilter) ([]models.Scheme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Scheme
	for _, sc := range m.schemes {
		if (f.Category == "" || strings.EqualFold(sc.Category, f.Category)) && (f.State == "" || strings.EqualFold(sc.State, f.State)) {
			out = append(out, *sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memReference) SchemeByID(_ context.Context, id uint) (*models.Scheme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, found := m.schemes[id]
	if !found {
		return nil, models.ErrNotFound
	}
	cp := *sc
	return &cp, nil
}

func (m *memReference) CreateScheme(_ context.Context, sc *models.Scheme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc.ID = m.id()
	cp := *sc
	m.schemes[sc.ID] = &cp
	return nil
}

func (m *memReference) UpdateScheme(_ context.Context, sc *models.Scheme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sc
	m.schemes[sc.ID] = &cp
	return nil
}

func (m *memReference) DeleteScheme(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.schemes[id]; !found {
		return models.ErrNotFound
	}
	delete(m.schemes, id)
	return nil
}

func (m *memReference) CountSchemes(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.schemes)), nil
}

func (m *memReference) ListCrops(_ context.Context, f models.CropFilter) ([]models.Crop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Crop
	for _, c := range m.crops {
		q := strings.ToLower(f.Search)
		if q != "" && !strings.Contains(strings.ToLower(c.CommonName), q) && !strings.Contains(strings.ToLower(c.ScientificName), q) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memReference) CropByID(_ context.Context, id uint) (*models.Crop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, found := m.crops[id]
	if !found {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memReference) CreateCrop(_ context.Context, c *models.Crop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.crops {
		if strings.EqualFold(existing.CommonName, c.CommonName) {
			return models.ErrDuplicate
		}
	}
	c.ID = m.id()
	cp := *c
	m.crops[c.ID] = &cp
	return nil
}

func (m *memReference) UpdateCrop(_ context.Context, c *models.Crop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.crops[c.ID] = &cp
	return nil
}

func (m *memReference) DeleteCrop(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.crops[id]; !found {
		return models.ErrNotFound
	}
	delete(m.crops, id)
	return nil
}

func (m *memReference) ListMarketPrices(_ context.Context, f models.MarketFilter) ([]models.MarketPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MarketPrice
	for _, p := range m.prices {
		if f.Commodity == "" || strings.EqualFold(p.Commodity, f.Commodity) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ArrivalDate.After(out[j].ArrivalDate) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memReference) CreateMarketPrice(_ context.Context, p *models.MarketPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	m.prices = append(m.prices, *p)
	return nil
}

func (m *memReference) CreateMarketPrices(_ context.Context, prices []models.MarketPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range prices {
		p.ID = m.id()
		m.prices = append(m.prices, p)
	}
	return nil
}

func (m *memReference) DeleteMarketPrice(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.prices {
		if p.ID == id {
			m.prices = append(m.prices[:i], m.prices[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memReference) PriceTrend(_ context.Context, commodity string, since time.Time) ([]models.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PricePoint
	for _, p := range m.prices {
		if strings.EqualFold(p.Commodity, commodity) && !p.ArrivalDate.Before(since) {
			out = append(out, models.PricePoint{Day: p.ArrivalDate, AvgPrice: p.ModalPrice, Quotations: 1})
		}
	}
	return out, nil
}

func (m *memReference) CountMarketPrices(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.prices)), nil
}

func (m *memReference) priceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prices)
}

// has reports whether a scheme, crop and market price with the given ids
// are all still stored.
func (m *memReference) has(scheme, crop, price uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, okScheme := m.schemes[scheme]
	_, okCrop := m.crops[crop]
	okPrice := false
	for _, p := range m.prices {
		okPrice = okPrice || p.ID == price
	}
	return okScheme && okCrop && okPrice
}

// memSensors is an in-memory SensorStore.
type memSensors struct {
	mu      sync.Mutex
	sensors map[string]*models.IoTSensor
	alerts  map[uint]*models.SensorAlert
}

func newMemSensors() *memSensors {
	return &memSensors{sensors: map[string]*models.IoTSensor{}, alerts: map[uint]*models.SensorAlert{}}
}

func (m *memSensors) ListSensors(_ context.Context, userID string) ([]models.IoTSensor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.IoTSensor
	for _, s := range m.sensors {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSensors) CreateSensor(_ context.Context, s *models.IoTSensor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.sensors[s.SensorID]; found {
		return models.ErrDuplicate
	}
	s.ID = uint(len(m.sensors) + 1)
	cp := *s
	m.sensors[s.SensorID] = &cp
	return nil
}

func (m *memSensors) addAlert(a models.SensorAlert) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uint(len(m.alerts) + 1)
	m.alerts[a.ID] = &a
	return a.ID
}

func (m *memSensors) SensorAlerts(_ context.Context, userID string, resolved *bool) ([]models.SensorAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SensorAlert
	for _, a := range m.alerts {
		s := m.sensors[a.SensorID]
		if s == nil || s.UserID != userID || (resolved != nil && a.Resolved != *resolved) {
			continue
		}
		cp := *a
		cp.Sensor = s
		out = append(out, cp)
	}
	return out, nil
}

func (m *memSensors) AlertByID(_ context.Context, id uint) (*models.SensorAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, found := m.alerts[id]
	if !found {
		return nil, models.ErrNotFound
	}
	cp := *a
	cp.Sensor = m.sensors[a.SensorID]
	return &cp, nil
}

func (m *memSensors) AcknowledgeAlert(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, found := m.alerts[id]
	if !found {
		return models.ErrNotFound
	}
	now := time.Now()
	a.Acknowledged, a.AcknowledgedAt = true, &now
	return nil
}

func (m *memSensors) ResolveAlert(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, found := m.alerts[id]
	if !found {
		return models.ErrNotFound
	}
	now := time.Now()
	a.Resolved, a.ResolvedAt = true, &now
	return nil
}

func (m *memSensors) CountOpenAlerts(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.alerts {
		if !a.Resolved {
			n++
		}
	}
	return n, nil
}

// fakeWeather always serves fallback data.
type fakeWeather struct{}

func (fakeWeather) Report(_ context.Context, _ primitive.ObjectID, lat, lng float64) *weather.Report {
	return weather.Fallback(lat, lng)
}

func (fakeWeather) RecentAlerts(context.Context, primitive.ObjectID) ([]models.WeatherAlert, error) {
	return nil, nil
}

type fakeDetector struct {
	err error
}

func (fakeDetector) Configured() bool { return true }

func (d fakeDetector) DetectDisease(_ context.Context, data []byte) (*gemini.Diagnosis, error) {
	if _, err := gemini.PrepareImage(data); err != nil {
		return nil, err
	}
	if d.err != nil {
		return nil, d.err
	}
	return &gemini.Diagnosis{Disease: "Leaf Blight", Severity: "moderate", Confidence: 82}, nil
}

// slowArchive holds every Store call until release is closed.
type slowArchive struct {
	started chan struct{}
	release chan struct{}
	stored  atomic.Int32
}

func newSlowArchive() *slowArchive {
	return &slowArchive{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (a *slowArchive) Store(ctx context.Context, userID string, _ []byte, _ string) (string, error) {
	a.started <- struct{}{}
	select {
	case <-a.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	a.stored.Add(1)
	return "gs://photos/" + userID, nil
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (*fakeSMS) Configured() bool { return true }

func (f *fakeSMS) Send(_ context.Context, phone, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("gateway unavailable")
	}
	f.sent = append(f.sent, phone+": "+message)
	return "msg-1", nil
}

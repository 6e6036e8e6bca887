package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/clinic"
	"github.com/hackgods/clinic-scheduling/internal/logger"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	RescheduleRatio float64
	CancelRatio     float64
	ReadRatio       float64
	Days            int // distinct dates bookings are spread over
	SlotsPerDay     int // distinct times per date; fewer slots means more contention
	StartDate       time.Time
}

type DataPool struct {
	Doctors  []int64
	Patients []int64
	Slots    []clinic.Slot

	mu           sync.RWMutex
	appointments []string
}

func (dp *DataPool) AddAppointment(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RemoveAppointment(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	for i, a := range dp.appointments {
		if a == id {
			dp.appointments = append(dp.appointments[:i], dp.appointments[i+1:]...)
			return
		}
	}
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return "", false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking    OperationMetrics
	Reschedule OperationMetrics
	Cancel     OperationMetrics
	ReadByID   OperationMetrics
	Available  OperationMetrics
	ByDoctor   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     *zap.Logger
}

func main() {
	zlog, err := logger.New(getEnv("LOG_LEVEL", "info"), getEnv("LOG_FORMAT", "console"))
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		zlog.Fatal("invalid config", zap.Error(err))
	}

	zlog.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("reschedule", cfg.RescheduleRatio),
		zap.Float64("cancel", cfg.CancelRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    zlog,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sim.pool, err = sim.loadDataPool(ctx)
	if err != nil {
		zlog.Fatal("load data pool", zap.Error(err))
	}
	zlog.Info("data pool loaded",
		zap.Int("doctors", len(sim.pool.Doctors)),
		zap.Int("patients", len(sim.pool.Patients)),
		zap.Int("slots", len(sim.pool.Slots)),
	)

	sim.Run()
	sim.PrintReport()

	doubles, err := sim.verify(context.Background())
	if err != nil {
		zlog.Fatal("verify appointments", zap.Error(err))
	}
	if doubles > 0 {
		zlog.Fatal("double booking detected", zap.Int("count", doubles))
	}
	zlog.Info("no double bookings found")
}

func loadConfig() SimConfig {
	start, err := time.Parse(clinic.DateLayout, getEnv("SIM_START_DATE", time.Now().AddDate(0, 0, 1).Format(clinic.DateLayout)))
	if err != nil {
		start = time.Now().AddDate(0, 0, 1)
	}

	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.5),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.1),
		CancelRatio:     getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.3),
		Days:            getInt("SIM_DAYS", 5),
		SlotsPerDay:     getInt("SIM_SLOTS_PER_DAY", 16),
		StartDate:       start,
	}

	total := cfg.BookingRatio + cfg.RescheduleRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.RescheduleRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 || cfg.SlotsPerDay <= 0 {
		return fmt.Errorf("SIM_DAYS and SIM_SLOTS_PER_DAY must be > 0")
	}
	return nil
}

// loadDataPool reads doctors and patients from the API and builds half-hour
// slots starting at 08:00 on each simulated day.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	dataPool := &DataPool{}

	var doctors []api.DoctorResponse
	if err := s.getJSON(ctx, "/doctors", &doctors); err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for _, d := range doctors {
		dataPool.Doctors = append(dataPool.Doctors, d.ID)
	}

	var patients []api.PatientResponse
	if err := s.getJSON(ctx, "/patients", &patients); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for _, p := range patients {
		dataPool.Patients = append(dataPool.Patients, p.ID)
	}

	for day := 0; day < s.config.Days; day++ {
		date := s.config.StartDate.AddDate(0, 0, day)
		for i := 0; i < s.config.SlotsPerDay; i++ {
			minutes := 8*60 + i*30
			dataPool.Slots = append(dataPool.Slots, clinic.NewSlot(date, (minutes/60)%24, minutes%60))
		}
	}

	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run cmd/seed first")
	}
	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.RescheduleRatio:
			s.doReschedule(ctx, rng)
		case r < s.config.BookingRatio+s.config.RescheduleRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			switch rng.Intn(3) {
			case 0:
				s.doReadByID(ctx, rng)
			case 1:
				s.doAvailable(ctx, rng)
			case 2:
				s.doListByDoctor(ctx, rng)
			}
		}
	}
}

func (s *Simulator) randomRequest(rng *rand.Rand) api.AppointmentRequest {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	return api.AppointmentRequest{
		DoctorID:  s.pool.Doctors[rng.Intn(len(s.pool.Doctors))],
		PatientID: s.pool.Patients[rng.Intn(len(s.pool.Patients))],
		Date:      slot.Date(),
		Time:      slot.Clock(),
		Reason:    "Simulated visit",
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	start := time.Now()
	var created api.AppointmentResponse
	status, err := s.sendJSON(ctx, http.MethodPost, "/appointments", s.randomRequest(rng), &created)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success && created.ID != "" {
		s.pool.AddAppointment(created.ID)
	}
	s.metrics.Booking.Record(latency, success, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.sendJSON(ctx, http.MethodPut, "/appointments/"+url.PathEscape(id), s.randomRequest(rng), nil)
	latency := time.Since(start)

	// a concurrent cancel may have removed it
	conflict := err == nil && (status == http.StatusConflict || status == http.StatusNotFound)
	s.metrics.Reschedule.Record(latency, err == nil && status == http.StatusOK, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.sendJSON(ctx, http.MethodDelete, "/appointments/"+url.PathEscape(id), nil, nil)
	latency := time.Since(start)

	success := err == nil && status == http.StatusNoContent
	if success || (err == nil && status == http.StatusNotFound) {
		s.pool.RemoveAppointment(id)
	}
	s.metrics.Cancel.Record(latency, success, err == nil && status == http.StatusNotFound)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.sendJSON(ctx, http.MethodGet, "/appointments/"+url.PathEscape(id), nil, nil)
	s.metrics.ReadByID.Record(time.Since(start), err == nil && status == http.StatusOK, err == nil && status == http.StatusNotFound)
}

func (s *Simulator) doAvailable(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	q := url.Values{"date": {slot.Date()}, "time": {slot.Clock()}}

	start := time.Now()
	status, err := s.sendJSON(ctx, http.MethodGet, "/doctors/available?"+q.Encode(), nil, nil)
	s.metrics.Available.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doListByDoctor(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	start := time.Now()
	status, err := s.sendJSON(ctx, http.MethodGet, fmt.Sprintf("/doctors/%d/appointments", doctorID), nil, nil)
	s.metrics.ByDoctor.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

// verify lists every appointment and counts doctor slots held more than once.
func (s *Simulator) verify(ctx context.Context) (int, error) {
	var list []api.AppointmentResponse
	if err := s.getJSON(ctx, "/appointments", &list); err != nil {
		return 0, err
	}

	seen := make(map[string]int, len(list))
	doubles := 0
	for _, a := range list {
		key := fmt.Sprintf("%d|%s|%s", a.DoctorID, a.Date, a.Time)
		seen[key]++
		if seen[key] == 2 {
			doubles++
			s.log.Error("doctor slot held twice",
				zap.Int64("doctor_id", a.DoctorID),
				zap.String("date", a.Date),
				zap.String("time", a.Time),
			)
		}
	}

	s.log.Info("verified appointments", zap.Int("appointments", len(list)))
	return doubles, nil
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) error {
	status, err := s.sendJSON(ctx, http.MethodGet, path, nil, out)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, status)
	}
	return nil
}

// sendJSON performs one request. out is decoded only on a 2xx response.
func (s *Simulator) sendJSON(ctx context.Context, method, path string, in, out any) (int, error) {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Slots: %d across %d days\n", len(s.pool.Slots), s.config.Days)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Available doctors", &s.metrics.Available)
	printOperationReport("List by doctor", &s.metrics.ByDoctor)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

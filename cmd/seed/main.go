package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
	"github.com/hackgods/clinic-scheduling/internal/logger"
	"github.com/hackgods/clinic-scheduling/internal/seed"
)

// seeder registers fake doctors and patients on a running api-server.
type seeder struct {
	baseURL string
	client  *http.Client
	gen     *seed.Generator
	log     *zap.Logger
}

type result struct {
	created, duplicates int
}

func main() {
	zlog, err := logger.New(getEnv("LOG_LEVEL", "info"), getEnv("LOG_FORMAT", "console"))
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	s := &seeder{
		baseURL: getEnv("SEED_API_BASE_URL", "http://localhost:8080"),
		client:  &http.Client{Timeout: 10 * time.Second},
		gen:     seed.NewGenerator(uint64(getInt("SEED_RANDOM", 0))),
		log:     zlog,
	}
	doctors := getInt("SEED_DOCTORS", 20)
	patients := getInt("SEED_PATIENTS", 200)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	zlog.Info("seed starting", zap.String("api", s.baseURL), zap.Int("doctors", doctors), zap.Int("patients", patients))

	res, err := s.seedDoctors(ctx, doctors)
	if err != nil {
		zlog.Fatal("seed doctors", zap.Error(err))
	}
	zlog.Info("doctors seeded", zap.Int("created", res.created), zap.Int("duplicates_skipped", res.duplicates))

	res, err = s.seedPatients(ctx, patients)
	if err != nil {
		zlog.Fatal("seed patients", zap.Error(err))
	}
	zlog.Info("patients seeded", zap.Int("created", res.created), zap.Int("duplicates_skipped", res.duplicates))

	zlog.Info("seed complete")
}

func (s *seeder) seedDoctors(ctx context.Context, count int) (result, error) {
	var res result
	for i := 0; i < count; i++ {
		d := s.gen.Doctor()
		created, err := s.post(ctx, "/doctors", doctorPayload(d))
		if err != nil {
			return res, fmt.Errorf("doctor %d: %w", i, err)
		}
		if created {
			res.created++
		} else {
			res.duplicates++
		}
	}
	return res, nil
}

func (s *seeder) seedPatients(ctx context.Context, count int) (result, error) {
	var res result
	for i := 0; i < count; i++ {
		p := s.gen.Patient()
		created, err := s.post(ctx, "/patients", patientPayload(p))
		if err != nil {
			return res, fmt.Errorf("patient %d: %w", i, err)
		}
		if created {
			res.created++
		} else {
			res.duplicates++
		}
		if (i+1)%100 == 0 {
			s.log.Info("patients progress", zap.Int("done", i+1), zap.Int("total", count))
		}
	}
	return res, nil
}

// post returns false when the server rejects the record as a duplicate.
func (s *seeder) post(ctx context.Context, path string, payload any) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return true, nil
	case http.StatusConflict:
		return false, nil
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}
}

func personPayload(p clinic.Person) map[string]any {
	return map[string]any{
		"name":            p.Name,
		"document_type":   string(p.DocumentType),
		"document_number": p.DocumentNumber,
		"phone":           p.Phone,
		"address":         p.Address,
		"email":           p.Email,
	}
}

func doctorPayload(d clinic.Doctor) map[string]any {
	m := personPayload(d.Person)
	m["specialty"] = d.Specialty
	m["office_room"] = d.OfficeRoom
	m["schedule"] = d.Schedule
	return m
}

func patientPayload(p clinic.Patient) map[string]any {
	m := personPayload(p.Person)
	m["birth_date"] = p.BirthDate.Format(clinic.DateLayout)
	m["condition"] = p.Condition
	return m
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

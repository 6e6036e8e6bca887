package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
)

type RouterConfig struct {
	Service *appointment.Service
	Metrics *metrics.Collector
	Logger  *zap.Logger
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(RecoverMiddleware)
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Service
	r.Get("/stats", statsHandler(svc))

	r.Route("/doctors", func(r chi.Router) {
		r.Post("/", createDoctorHandler(svc))
		r.Get("/", listDoctorsHandler(svc))
		r.Get("/available", availableDoctorsHandler(svc))
		r.Get("/by-document/{document}", findDoctorByDocumentHandler(svc))
		r.Delete("/by-email/{email}", deleteDoctorHandler(svc))
		r.Get("/{id}", getDoctorHandler(svc))
		r.Put("/{id}", updateDoctorHandler(svc))
		r.Get("/{id}/appointments", listDoctorAppointmentsHandler(svc))
	})

	r.Route("/patients", func(r chi.Router) {
		r.Post("/", createPatientHandler(svc))
		r.Get("/", listPatientsHandler(svc))
		r.Get("/by-document/{document}", findPatientByDocumentHandler(svc))
		r.Delete("/by-email/{email}", deletePatientHandler(svc))
		r.Get("/{id}", getPatientHandler(svc))
		r.Put("/{id}", updatePatientHandler(svc))
		r.Get("/{id}/appointments", listPatientAppointmentsHandler(svc))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(svc))
		r.Get("/", listAppointmentsHandler(svc))
		r.Get("/conflicts", conflictHandler(svc))
		r.Get("/{id}", getAppointmentHandler(svc))
		r.Put("/{id}", updateAppointmentHandler(svc))
		r.Delete("/{id}", cancelAppointmentHandler(svc))
	})

	return r
}

package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentUpdated   = "APPOINTMENT_UPDATED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventDoctorRegistered     = "DOCTOR_REGISTERED"
	EventDoctorUpdated        = "DOCTOR_UPDATED"
	EventDoctorDeleted        = "DOCTOR_DELETED"
	EventPatientRegistered    = "PATIENT_REGISTERED"
	EventPatientUpdated       = "PATIENT_UPDATED"
	EventPatientDeleted       = "PATIENT_DELETED"
)

type EventLog struct {
	EventType string
	// AppointmentID is empty for doctor and patient events.
	AppointmentID string
	Payload       []byte
	CreatedAt     time.Time
}

// EventSink receives an audit trail of every accepted change.
type EventSink interface {
	InsertEvent(ctx context.Context, ev EventLog) error
}

type LogEventSink struct {
	log *zap.Logger
}

func NewLogEventSink(log *zap.Logger) *LogEventSink {
	return &LogEventSink{log: log}
}

func (s *LogEventSink) InsertEvent(_ context.Context, ev EventLog) error {
	s.log.Info("event",
		zap.String("event_type", ev.EventType),
		zap.String("appointment_id", ev.AppointmentID),
		zap.ByteString("payload", ev.Payload),
		zap.Time("created_at", ev.CreatedAt),
	)
	return nil
}

// PgEventSink appends events to the event_logs table. Nothing is read back:
// registries always start empty.
type PgEventSink struct {
	pool *pgxpool.Pool
}

func NewPgEventSink(pool *pgxpool.Pool) *PgEventSink {
	return &PgEventSink{pool: pool}
}

func (s *PgEventSink) InsertEvent(ctx context.Context, ev EventLog) error {
	var appID *string
	if ev.AppointmentID != "" {
		appID = &ev.AppointmentID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, appID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
	"github.com/hackgods/clinic-scheduling/internal/lock"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/registry"
)

type Deps struct {
	Doctors  *registry.Doctors
	Patients *registry.Patients
	Repo     Repository
	Locker   lock.Locker
	Events   EventSink
	Metrics  *metrics.Collector
	Logger   *zap.Logger
}

// Service is the scheduling core. One Service is built at startup and shared by
// every consumer.
type Service struct {
	doctors  *registry.Doctors
	patients *registry.Patients
	repo     Repository
	locker   lock.Locker
	events   EventSink
	metrics  *metrics.Collector
	log      *zap.Logger

	newID func() clinic.AppointmentID
	now   func() time.Time

	// refs is held shared by bookings and exclusively by doctor/patient deletes,
	// so a delete never races a booking that references the same record.
	refs sync.RWMutex
}

func NewService(d Deps) *Service {
	s := &Service{
		doctors:  d.Doctors,
		patients: d.Patients,
		repo:     d.Repo,
		locker:   d.Locker,
		events:   d.Events,
		metrics:  d.Metrics,
		log:      d.Logger,
		newID:    newAppointmentID,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.doctors == nil {
		s.doctors = registry.NewDoctors()
	}
	if s.patients == nil {
		s.patients = registry.NewPatients()
	}
	if s.repo == nil {
		s.repo = NewMemoryRepository()
	}
	if s.locker == nil {
		s.locker = lock.NewLocalLocker()
	}
	if s.events == nil {
		s.events = NewLogEventSink(s.log)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewCollector("clinic")
	}
	return s
}

func newAppointmentID() clinic.AppointmentID {
	return clinic.AppointmentID("APT-" + uuid.NewString())
}

// AppointmentCommand carries every caller supplied field of an appointment.
type AppointmentCommand struct {
	DoctorID  int64
	PatientID int64
	Slot      clinic.Slot
	Price     decimal.Decimal
	Reason    string
	Notes     string
}

func (c AppointmentCommand) appointment() clinic.Appointment {
	return clinic.Appointment{
		DoctorID:  c.DoctorID,
		PatientID: c.PatientID,
		Slot:      c.Slot,
		Price:     c.Price,
		Reason:    c.Reason,
		Notes:     c.Notes,
	}
}

// BookAppointment reserves a slot for a patient with a doctor.
// The conflict check and the insert run under one slot lock so two concurrent
// requests for the same doctor and slot cannot both succeed.
func (s *Service) BookAppointment(ctx context.Context, cmd AppointmentCommand) (*clinic.AppointmentDetail, error) {
	a := cmd.appointment()
	if err := clinic.ValidateAppointment(a); err != nil {
		return nil, err
	}

	s.refs.RLock()
	defer s.refs.RUnlock()

	doctor, patient, err := s.resolve(a.DoctorID, a.PatientID)
	if err != nil {
		return nil, err
	}

	err = s.locker.WithSlotLock(ctx, lock.SlotKey(a.DoctorID, a.Slot), func(lockCtx context.Context) error {
		conflict, err := s.repo.ExistsConflict(lockCtx, a.DoctorID, a.Slot, "")
		if err != nil {
			return fmt.Errorf("check slot conflict: %w", err)
		}
		if conflict {
			return clinic.ErrSlotConflict
		}

		now := s.now()
		a.ID = s.newID()
		a.CreatedAt = now
		a.UpdatedAt = now
		if err := s.repo.Save(lockCtx, a); err != nil {
			return fmt.Errorf("save appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.slotError("book", a, err)
	}

	s.metrics.AppointmentsTotal.WithLabelValues("booked").Inc()
	s.log.Info("appointment booked",
		zap.String("appointment_id", a.ID.String()),
		zap.Int64("doctor_id", a.DoctorID),
		zap.Int64("patient_id", a.PatientID),
		zap.String("slot", a.Slot.String()),
	)
	s.logEvent(ctx, EventAppointmentBooked, a.ID.String(), appointmentPayload(a))

	return &clinic.AppointmentDetail{Appointment: a, Doctor: &doctor, Patient: &patient}, nil
}

// UpdateAppointment replaces every mutable field of an appointment. The
// appointment never conflicts with its own current slot.
func (s *Service) UpdateAppointment(ctx context.Context, id clinic.AppointmentID, cmd AppointmentCommand) (*clinic.AppointmentDetail, error) {
	a := cmd.appointment()
	if err := clinic.ValidateAppointment(a); err != nil {
		return nil, err
	}

	s.refs.RLock()
	defer s.refs.RUnlock()

	doctor, patient, err := s.resolve(a.DoctorID, a.PatientID)
	if err != nil {
		return nil, err
	}

	err = s.locker.WithSlotLock(ctx, lock.SlotKey(a.DoctorID, a.Slot), func(lockCtx context.Context) error {
		existing, err := s.repo.Get(lockCtx, id)
		if err != nil {
			return err
		}

		conflict, err := s.repo.ExistsConflict(lockCtx, a.DoctorID, a.Slot, id)
		if err != nil {
			return fmt.Errorf("check slot conflict: %w", err)
		}
		if conflict {
			return clinic.ErrSlotConflict
		}

		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		a.UpdatedAt = s.now()
		return s.repo.Update(lockCtx, a)
	})
	if err != nil {
		return nil, s.slotError("update", a, err)
	}

	s.metrics.AppointmentsTotal.WithLabelValues("updated").Inc()
	s.logEvent(ctx, EventAppointmentUpdated, a.ID.String(), appointmentPayload(a))

	return &clinic.AppointmentDetail{Appointment: a, Doctor: &doctor, Patient: &patient}, nil
}

// CancelAppointment removes an appointment by id.
func (s *Service) CancelAppointment(ctx context.Context, id clinic.AppointmentID) (clinic.Appointment, error) {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return clinic.Appointment{}, err
	}

	s.metrics.AppointmentsTotal.WithLabelValues("cancelled").Inc()
	s.logEvent(ctx, EventAppointmentCancelled, id.String(), appointmentPayload(removed))
	return removed, nil
}

// ExistsConflict reports whether the doctor already holds slot in an
// appointment other than excludeID.
func (s *Service) ExistsConflict(ctx context.Context, doctorID int64, slot clinic.Slot, excludeID clinic.AppointmentID) (bool, error) {
	return s.repo.ExistsConflict(ctx, doctorID, slot, excludeID)
}

func (s *Service) GetAppointment(ctx context.Context, id clinic.AppointmentID) (*clinic.AppointmentDetail, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	d := s.hydrate(a)
	return &d, nil
}

// ListAppointments returns all appointments in booking order.
func (s *Service) ListAppointments(ctx context.Context) ([]clinic.AppointmentDetail, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return s.hydrateAll(list), nil
}

func (s *Service) ListAppointmentsByDoctor(ctx context.Context, doctorID int64) ([]clinic.AppointmentDetail, error) {
	list, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return s.hydrateAll(list), nil
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID int64) ([]clinic.AppointmentDetail, error) {
	list, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return s.hydrateAll(list), nil
}

type Stats struct {
	Doctors      int `json:"doctors"`
	Patients     int `json:"patients"`
	Appointments int `json:"appointments"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count appointments: %w", err)
	}
	return Stats{
		Doctors:      s.doctors.Len(),
		Patients:     s.patients.Len(),
		Appointments: len(list),
	}, nil
}

func (s *Service) resolve(doctorID, patientID int64) (clinic.Doctor, clinic.Patient, error) {
	doctor, ok := s.doctors.Get(doctorID)
	if !ok {
		return clinic.Doctor{}, clinic.Patient{}, &clinic.NotFoundError{Kind: "doctor", Key: fmt.Sprintf("id %d", doctorID)}
	}
	patient, ok := s.patients.Get(patientID)
	if !ok {
		return clinic.Doctor{}, clinic.Patient{}, &clinic.NotFoundError{Kind: "patient", Key: fmt.Sprintf("id %d", patientID)}
	}
	return doctor, patient, nil
}

func (s *Service) hydrate(a clinic.Appointment) clinic.AppointmentDetail {
	d := clinic.AppointmentDetail{Appointment: a}
	if doc, ok := s.doctors.Get(a.DoctorID); ok {
		d.Doctor = &doc
	}
	if p, ok := s.patients.Get(a.PatientID); ok {
		d.Patient = &p
	}
	return d
}

func (s *Service) hydrateAll(list []clinic.Appointment) []clinic.AppointmentDetail {
	out := make([]clinic.AppointmentDetail, 0, len(list))
	for _, a := range list {
		out = append(out, s.hydrate(a))
	}
	return out
}

func (s *Service) slotError(op string, a clinic.Appointment, err error) error {
	switch {
	case errors.Is(err, lock.ErrLockNotAcquired):
		s.metrics.LockContentionTotal.Inc()
		return clinic.ErrSlotBeingBooked
	case errors.Is(err, clinic.ErrSlotConflict):
		s.metrics.SlotConflictsTotal.WithLabelValues(op).Inc()
		s.log.Info("slot conflict",
			zap.String("operation", op),
			zap.Int64("doctor_id", a.DoctorID),
			zap.String("slot", a.Slot.String()),
		)
		return fmt.Errorf("doctor %d at %s: %w", a.DoctorID, a.Slot, clinic.ErrSlotConflict)
	}
	return err
}

func appointmentPayload(a clinic.Appointment) map[string]any {
	return map[string]any{
		"doctor_id":  a.DoctorID,
		"patient_id": a.PatientID,
		"date":       a.Slot.Date(),
		"time":       a.Slot.Clock(),
		"price":      a.Price.StringFixed(2),
	}
}

func (s *Service) logEvent(ctx context.Context, eventType, appointmentID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.events.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert event log",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}

package appointment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
	"github.com/hackgods/clinic-scheduling/internal/registry"
)

func (s *Service) RegisterDoctor(ctx context.Context, d clinic.Doctor) (clinic.Doctor, error) {
	return register(ctx, s, s.doctors, clinic.ValidateDoctor, d, EventDoctorRegistered)
}

// UpdateDoctor replaces the doctor with d.ID. Unique fields are checked
// against every other doctor.
func (s *Service) UpdateDoctor(ctx context.Context, d clinic.Doctor) (clinic.Doctor, error) {
	return update(ctx, s, s.doctors, clinic.ValidateDoctor, d, EventDoctorUpdated)
}

// DeleteDoctor removes the doctor with the given email. A doctor who still has
// appointments cannot be deleted.
func (s *Service) DeleteDoctor(ctx context.Context, email string) (clinic.Doctor, error) {
	return remove(ctx, s, s.doctors, email, func(d clinic.Doctor) (int, error) {
		list, err := s.repo.ListByDoctor(ctx, d.ID)
		return len(list), err
	}, EventDoctorDeleted)
}

func (s *Service) GetDoctor(id int64) (clinic.Doctor, error) {
	d, ok := s.doctors.Get(id)
	if !ok {
		return clinic.Doctor{}, &clinic.NotFoundError{Kind: "doctor", Key: fmt.Sprintf("id %d", id)}
	}
	return d, nil
}

func (s *Service) ListDoctors() []clinic.Doctor {
	return s.doctors.List()
}

func (s *Service) FindDoctorByDocument(document string) (clinic.Doctor, error) {
	d, ok := s.doctors.FindBy(registry.FieldDocument, document)
	if !ok {
		return clinic.Doctor{}, &clinic.NotFoundError{Kind: "doctor", Key: fmt.Sprintf("document %q", document)}
	}
	return d, nil
}

// DoctorExistsWith reports whether a doctor already uses value for a unique
// field (document or email).
func (s *Service) DoctorExistsWith(field, value string) bool {
	return s.doctors.ExistsWith(field, value)
}

func (s *Service) RegisterPatient(ctx context.Context, p clinic.Patient) (clinic.Patient, error) {
	return register(ctx, s, s.patients, clinic.ValidatePatient, p, EventPatientRegistered)
}

func (s *Service) UpdatePatient(ctx context.Context, p clinic.Patient) (clinic.Patient, error) {
	return update(ctx, s, s.patients, clinic.ValidatePatient, p, EventPatientUpdated)
}

func (s *Service) DeletePatient(ctx context.Context, email string) (clinic.Patient, error) {
	return remove(ctx, s, s.patients, email, func(p clinic.Patient) (int, error) {
		list, err := s.repo.ListByPatient(ctx, p.ID)
		return len(list), err
	}, EventPatientDeleted)
}

func (s *Service) GetPatient(id int64) (clinic.Patient, error) {
	p, ok := s.patients.Get(id)
	if !ok {
		return clinic.Patient{}, &clinic.NotFoundError{Kind: "patient", Key: fmt.Sprintf("id %d", id)}
	}
	return p, nil
}

func (s *Service) ListPatients() []clinic.Patient {
	return s.patients.List()
}

func (s *Service) FindPatientByDocument(document string) (clinic.Patient, error) {
	p, ok := s.patients.FindBy(registry.FieldDocument, document)
	if !ok {
		return clinic.Patient{}, &clinic.NotFoundError{Kind: "patient", Key: fmt.Sprintf("document %q", document)}
	}
	return p, nil
}

// PatientExistsWith reports whether a patient already uses value for a unique
// field (document, email or phone).
func (s *Service) PatientExistsWith(field, value string) bool {
	return s.patients.ExistsWith(field, value)
}

func register[T any](ctx context.Context, s *Service, r *registry.Registry[T], validate func(T) error, item T, event string) (T, error) {
	var zero T
	if err := validate(item); err != nil {
		return zero, err
	}

	saved, err := r.Save(item)
	if err != nil {
		s.countDuplicate(err)
		return zero, err
	}

	s.metrics.RegistryEntries.WithLabelValues(r.Kind()).Set(float64(r.Len()))
	s.logEvent(ctx, event, "", saved)
	return saved, nil
}

func update[T any](ctx context.Context, s *Service, r *registry.Registry[T], validate func(T) error, item T, event string) (T, error) {
	var zero T
	if err := validate(item); err != nil {
		return zero, err
	}

	updated, err := r.Update(item)
	if err != nil {
		s.countDuplicate(err)
		return zero, err
	}

	s.logEvent(ctx, event, "", updated)
	return updated, nil
}

func remove[T any](ctx context.Context, s *Service, r *registry.Registry[T], email string, references func(T) (int, error), event string) (T, error) {
	var zero T

	s.refs.Lock()
	defer s.refs.Unlock()

	item, ok := r.FindBy(registry.FieldEmail, email)
	if !ok {
		return zero, &clinic.NotFoundError{Kind: r.Kind(), Key: fmt.Sprintf("email %q", email)}
	}

	n, err := references(item)
	if err != nil {
		return zero, fmt.Errorf("count %s appointments: %w", r.Kind(), err)
	}
	if n > 0 {
		return zero, fmt.Errorf("%s %q has %d appointments: %w", r.Kind(), email, n, clinic.ErrInUse)
	}

	removed, err := r.Delete(email)
	if err != nil {
		return zero, err
	}

	s.metrics.RegistryEntries.WithLabelValues(r.Kind()).Set(float64(r.Len()))
	s.logEvent(ctx, event, "", removed)
	return removed, nil
}

func (s *Service) countDuplicate(err error) {
	var dup *clinic.DuplicateKeyError
	if errors.As(err, &dup) {
		s.metrics.DuplicateKeysTotal.WithLabelValues(dup.Kind, dup.Field).Inc()
		s.log.Info("duplicate key rejected",
			zap.String("kind", dup.Kind),
			zap.String("field", dup.Field),
		)
	}
}

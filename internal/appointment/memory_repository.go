package appointment

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
)

// MemoryRepository keeps appointments in insertion order for the lifetime of the process.
type MemoryRepository struct {
	mu    sync.RWMutex
	items []clinic.Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Save(_ context.Context, a clinic.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(a.ID) >= 0 {
		return &clinic.DuplicateKeyError{Kind: "appointment", Field: "id", Value: a.ID.String()}
	}
	r.items = append(r.items, a)
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, a clinic.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(a.ID)
	if idx < 0 {
		return notFound(a.ID)
	}
	r.items[idx] = a
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id clinic.AppointmentID) (clinic.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return clinic.Appointment{}, notFound(id)
	}
	removed := r.items[idx]
	r.items = slices.Delete(r.items, idx, idx+1)
	return removed, nil
}

func (r *MemoryRepository) Get(_ context.Context, id clinic.AppointmentID) (clinic.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return clinic.Appointment{}, notFound(id)
	}
	return r.items[idx], nil
}

func (r *MemoryRepository) List(_ context.Context) ([]clinic.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.items), nil
}

func (r *MemoryRepository) ExistsConflict(_ context.Context, doctorID int64, slot clinic.Slot, excludeID clinic.AppointmentID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.items {
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if a.DoctorID == doctorID && a.Slot.Equal(slot) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) ListByDoctor(_ context.Context, doctorID int64) ([]clinic.Appointment, error) {
	return r.filter(func(a clinic.Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID int64) ([]clinic.Appointment, error) {
	return r.filter(func(a clinic.Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *MemoryRepository) filter(keep func(clinic.Appointment) bool) []clinic.Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []clinic.Appointment
	for _, a := range r.items {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (r *MemoryRepository) indexOf(id clinic.AppointmentID) int {
	return slices.IndexFunc(r.items, func(a clinic.Appointment) bool { return a.ID == id })
}

func notFound(id clinic.AppointmentID) error {
	return &clinic.NotFoundError{Kind: "appointment", Key: fmt.Sprintf("%q", id)}
}

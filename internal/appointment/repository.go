package appointment

import (
	"context"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
)

// Repository stores appointments. It does not check slot conflicts on Save or
// Update; the Service runs ExistsConflict and the write inside one slot lock.
type Repository interface {
	Save(ctx context.Context, a clinic.Appointment) error
	Update(ctx context.Context, a clinic.Appointment) error
	Delete(ctx context.Context, id clinic.AppointmentID) (clinic.Appointment, error)
	Get(ctx context.Context, id clinic.AppointmentID) (clinic.Appointment, error)
	List(ctx context.Context) ([]clinic.Appointment, error)

	// For conflict checks. An empty excludeID excludes nothing.
	ExistsConflict(ctx context.Context, doctorID int64, slot clinic.Slot, excludeID clinic.AppointmentID) (bool, error)

	// For reference checks before a doctor or patient is deleted
	ListByDoctor(ctx context.Context, doctorID int64) ([]clinic.Appointment, error)
	ListByPatient(ctx context.Context, patientID int64) ([]clinic.Appointment, error)
}

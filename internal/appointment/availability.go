package appointment

import (
	"context"
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
)

// AvailableDoctors returns the doctors without an appointment at slot, in
// registration order. A zero slot returns every doctor. excludeID lets the
// appointment being edited keep its own doctor in the result.
func (s *Service) AvailableDoctors(ctx context.Context, slot clinic.Slot, excludeID clinic.AppointmentID) ([]clinic.Doctor, error) {
	all := s.doctors.List()
	if slot.IsZero() {
		return all, nil
	}

	available := make([]clinic.Doctor, 0, len(all))
	for _, d := range all {
		conflict, err := s.repo.ExistsConflict(ctx, d.ID, slot, excludeID)
		if err != nil {
			return nil, fmt.Errorf("check availability of doctor %d: %w", d.ID, err)
		}
		if !conflict {
			available = append(available, d)
		}
	}
	return available, nil
}

// AvailableDoctorsAt parses a candidate date and time. An empty or unparseable
// candidate fails open and returns every doctor.
func (s *Service) AvailableDoctorsAt(ctx context.Context, date, clock string, excludeID clinic.AppointmentID) ([]clinic.Doctor, error) {
	slot, err := clinic.ParseSlot(date, clock)
	if err != nil {
		slot = clinic.Slot{}
	}
	return s.AvailableDoctors(ctx, slot, excludeID)
}

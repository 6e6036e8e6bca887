package appointment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
	"github.com/hackgods/clinic-scheduling/internal/lock"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
)

// -- Test doubles --

type recordingSink struct {
	mu     sync.Mutex
	events []EventLog
	err    error
}

func (r *recordingSink) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return lock.ErrLockNotAcquired
}

// -- Fixtures --

type fixture struct {
	svc     *Service
	sink    *recordingSink
	metrics *metrics.Collector
	doctor  clinic.Doctor
	doctor2 clinic.Doctor
	patient clinic.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sink := &recordingSink{}
	m := metrics.NewCollector("test")
	svc := NewService(Deps{Events: sink, Metrics: m})

	ctx := context.Background()
	d1, err := svc.RegisterDoctor(ctx, testDoctor("108654", "carlosr@hospital.com"))
	require.NoError(t, err)
	d2, err := svc.RegisterDoctor(ctx, testDoctor("2023458", "lola@hospital.com"))
	require.NoError(t, err)
	p, err := svc.RegisterPatient(ctx, testPatient("2131231", "julian@gmail.com", "3123120000"))
	require.NoError(t, err)

	return &fixture{svc: svc, sink: sink, metrics: m, doctor: d1, doctor2: d2, patient: p}
}

func testDoctor(doc, email string) clinic.Doctor {
	return clinic.Doctor{
		Person: clinic.Person{
			Name:           "Dr. Carlos Ramírez",
			DocumentType:   clinic.DocNationalID,
			DocumentNumber: doc,
			Phone:          "3101234967",
			Address:        "Armenia",
			Email:          email,
		},
		Specialty:  "Cardiology",
		OfficeRoom: "Office 12",
	}
}

func testPatient(doc, email, phone string) clinic.Patient {
	return clinic.Patient{
		Person: clinic.Person{
			Name:           "Julian Casablancas",
			DocumentType:   clinic.DocNationalID,
			DocumentNumber: doc,
			Phone:          phone,
			Address:        "Armenia",
			Email:          email,
		},
		BirthDate: time.Date(2000, 8, 30, 0, 0, 0, 0, time.UTC),
		Condition: "Headache",
	}
}

func mustSlot(t *testing.T, date, clock string) clinic.Slot {
	t.Helper()
	s, err := clinic.ParseSlot(date, clock)
	require.NoError(t, err)
	return s
}

func (f *fixture) command(t *testing.T, doctorID int64, date, clock string) AppointmentCommand {
	return AppointmentCommand{
		DoctorID:  doctorID,
		PatientID: f.patient.ID,
		Slot:      mustSlot(t, date, clock),
		Price:     decimal.NewFromInt(2000),
		Reason:    "Patient reports a headache",
	}
}

// -- Booking --

func TestBookAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	detail, err := f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-19", "14:05"))
	require.NoError(t, err)

	assert.Regexp(t, `^APT-[0-9a-f-]{36}$`, detail.ID.String())
	assert.Equal(t, f.doctor.ID, detail.DoctorID)
	assert.Equal(t, "Dr. Carlos Ramírez", detail.DoctorName())
	assert.Equal(t, "Julian Casablancas", detail.PatientName())
	assert.False(t, detail.CreatedAt.IsZero())

	list, err := f.svc.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, detail.ID, list[0].ID)
	assert.Contains(t, f.sink.types(), EventAppointmentBooked)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AppointmentsTotal.WithLabelValues("booked")))
}

func TestExistsConflict_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Equal(t, int64(1), f.doctor.ID)
	require.Equal(t, int64(1), f.patient.ID)

	booked, err := f.svc.BookAppointment(ctx, f.command(t, 1, "2025-11-19", "14:05"))
	require.NoError(t, err)

	slot := mustSlot(t, "2025-11-19", "14:05")

	conflict, err := f.svc.ExistsConflict(ctx, 1, slot, "")
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = f.svc.ExistsConflict(ctx, 1, slot, booked.ID)
	require.NoError(t, err)
	assert.False(t, conflict)

	conflict, err = f.svc.ExistsConflict(ctx, f.doctor2.ID, slot, "")
	require.NoError(t, err)
	assert.False(t, conflict, "another doctor at the same slot is not a conflict")
}

func TestBookAppointment_DoubleBookingRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-19", "14:05"))
	require.NoError(t, err)

	_, err = f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-19", "14:05"))
	assert.ErrorIs(t, err, clinic.ErrSlotConflict)

	list, _ := f.svc.ListAppointments(ctx)
	assert.Len(t, list, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SlotConflictsTotal.WithLabelValues("book")))

	// a minute later is a different slot
	_, err = f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-19", "14:06"))
	assert.NoError(t, err)
}

func TestBookAppointment_ConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-20", "09:00"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, clinic.ErrSlotConflict)
	}
	assert.Equal(t, 1, succeeded)

	list, _ := f.svc.ListAppointmentsByDoctor(ctx, f.doctor.ID)
	assert.Len(t, list, 1)
}

func TestBookAppointment_UnknownReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BookAppointment(ctx, f.command(t, 99, "2025-11-19", "14:05"))
	assert.ErrorIs(t, err, clinic.ErrNotFound)

	cmd := f.command(t, f.doctor.ID, "2025-11-19", "14:05")
	cmd.PatientID = 99
	_, err = f.svc.BookAppointment(ctx, cmd)
	assert.ErrorIs(t, err, clinic.ErrNotFound)
}

func TestBookAppointment_InvalidInput(t *testing.T) {
	f := newFixture(t)

	cmd := f.command(t, f.doctor.ID, "2025-11-19", "14:05")
	cmd.Price = decimal.NewFromInt(-5)
	_, err := f.svc.BookAppointment(context.Background(), cmd)
	assert.ErrorIs(t, err, clinic.ErrInvalidInput)

	cmd = f.command(t, f.doctor.ID, "2025-11-19", "14:05")
	cmd.Slot = clinic.Slot{}
	_, err = f.svc.BookAppointment(context.Background(), cmd)
	assert.ErrorIs(t, err, clinic.ErrInvalidInput)
}

func TestBookAppointment_LockContention(t *testing.T) {
	m := metrics.NewCollector("test")
	svc := NewService(Deps{Locker: busyLocker{}, Metrics: m})
	ctx := context.Background()

	d, err := svc.RegisterDoctor(ctx, testDoctor("108654", "carlosr@hospital.com"))
	require.NoError(t, err)
	p, err := svc.RegisterPatient(ctx, testPatient("2131231", "julian@gmail.com", "3123120000"))
	require.NoError(t, err)

	_, err = svc.BookAppointment(ctx, AppointmentCommand{
		DoctorID: d.ID, PatientID: p.ID, Slot: mustSlot(t, "2025-11-19", "14:05"),
		Price: decimal.Zero, Reason: "Checkup",
	})
	assert.ErrorIs(t, err, clinic.ErrSlotBeingBooked)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockContentionTotal))
}

func TestBookAppointment_EventSinkFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("database down")

	_, err := f.svc.BookAppointment(context.Background(), f.command(t, f.doctor.ID, "2025-11-19", "14:05"))
	assert.NoError(t, err)
}

// -- Update and cancel --

func TestUpdateAppointment_SameSlotDoesNotConflictWithItself(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booked, err := f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-19", "14:05"))
	require.NoError(t, err)

	cmd := f.command(t, f.doctor.ID, "2025-11-19", "14:05")
	cmd.Price = decimal.RequireFromString("2500.50")
	cmd.Notes = "bring previous results"

	updated, err := f.svc.UpdateAppointment(ctx, booked.ID, cmd)
	require.NoError(t, err)
	assert.Equal(t, booked.ID, updated.ID)
	assert.Equal(t, booked.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("2500.50")))

	got, err := f.svc.GetAppointment(ctx, booked.ID)
	require.NoError(t, err)
	assert.Equal(t, "bring previous results", got.Notes)
}

func TestUpdateAppointment_IntoConflictRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-19", "14:05"))
	require.NoError(t, err)
	second, err := f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-19", "15:00"))
	require.NoError(t, err)

	_, err = f.svc.UpdateAppointment(ctx, second.ID, f.command(t, f.doctor.ID, "2025-11-19", "14:05"))
	assert.ErrorIs(t, err, clinic.ErrSlotConflict)

	got, _ := f.svc.GetAppointment(ctx, second.ID)
	assert.Equal(t, "15:00", got.Slot.Clock())

	// moving to another doctor at the same time is fine
	_, err = f.svc.UpdateAppointment(ctx, second.ID, f.command(t, f.doctor2.ID, "2025-11-19", "14:05"))
	assert.NoError(t, err)
}

func TestUpdateAppointment_UnknownIDLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-19", "14:05"))
	require.NoError(t, err)
	before, _ := f.svc.ListAppointments(ctx)

	_, err = f.svc.UpdateAppointment(ctx, "APT-missing", f.command(t, f.doctor.ID, "2025-11-21", "08:00"))
	assert.ErrorIs(t, err, clinic.ErrNotFound)

	after, _ := f.svc.ListAppointments(ctx)
	assert.Equal(t, before, after)
}

func TestCancelAppointment_FreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := mustSlot(t, "2025-11-19", "14:05")

	booked, err := f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-19", "14:05"))
	require.NoError(t, err)

	_, err = f.svc.CancelAppointment(ctx, booked.ID)
	require.NoError(t, err)

	conflict, err := f.svc.ExistsConflict(ctx, f.doctor.ID, slot, "")
	require.NoError(t, err)
	assert.False(t, conflict)

	_, err = f.svc.CancelAppointment(ctx, booked.ID)
	assert.ErrorIs(t, err, clinic.ErrNotFound)

	assert.Contains(t, f.sink.types(), EventAppointmentCancelled)
}

// -- Availability --

func TestAvailableDoctors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booked, err := f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-19", "14:05"))
	require.NoError(t, err)
	slot := mustSlot(t, "2025-11-19", "14:05")

	available, err := f.svc.AvailableDoctors(ctx, slot, "")
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, f.doctor2.ID, available[0].ID)

	available, err = f.svc.AvailableDoctors(ctx, slot, booked.ID)
	require.NoError(t, err)
	assert.Len(t, available, 2, "the edited appointment must not hide its own doctor")

	available, err = f.svc.AvailableDoctors(ctx, mustSlot(t, "2025-11-19", "16:00"), "")
	require.NoError(t, err)
	assert.Len(t, available, 2)
}

func TestAvailableDoctors_FailsOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-19", "14:05"))
	require.NoError(t, err)

	cases := []struct{ date, clock string }{
		{"", "14:05"},
		{"2025-11-19", ""},
		{"not-a-date", "14:05"},
		{"2025-11-19", "99:99"},
	}
	for _, c := range cases {
		available, err := f.svc.AvailableDoctorsAt(ctx, c.date, c.clock, "")
		require.NoError(t, err)
		assert.Len(t, available, 2, "%q %q", c.date, c.clock)
	}

	available, err := f.svc.AvailableDoctorsAt(ctx, "2025-11-19", "14:05", "")
	require.NoError(t, err)
	assert.Len(t, available, 1)
}

// -- Doctors and patients --

func TestRegisterDoctor_Duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterDoctor(ctx, testDoctor("108654", "other@hospital.com"))
	assert.ErrorIs(t, err, clinic.ErrDuplicateKey)
	assert.Len(t, f.svc.ListDoctors(), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DuplicateKeysTotal.WithLabelValues("doctor", "document")))

	_, err = f.svc.RegisterDoctor(ctx, testDoctor("555555", "LOLA@hospital.com "))
	assert.ErrorIs(t, err, clinic.ErrDuplicateKey)
}

func TestRegisterDoctor_Invalid(t *testing.T) {
	f := newFixture(t)

	d := testDoctor("12", "nope")
	_, err := f.svc.RegisterDoctor(context.Background(), d)
	assert.ErrorIs(t, err, clinic.ErrInvalidInput)
	assert.Len(t, f.svc.ListDoctors(), 2)
}

func TestUpdateDoctor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.doctor
	d.Specialty = "Neurology"
	updated, err := f.svc.UpdateDoctor(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "Neurology", updated.Specialty)

	d.Email = f.doctor2.Email
	_, err = f.svc.UpdateDoctor(ctx, d)
	assert.ErrorIs(t, err, clinic.ErrDuplicateKey)

	ghost := testDoctor("777777", "ghost@hospital.com")
	ghost.ID = 404
	_, err = f.svc.UpdateDoctor(ctx, ghost)
	assert.ErrorIs(t, err, clinic.ErrNotFound)
}

func TestDeleteDoctor_BlockedWhileReferenced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booked, err := f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-19", "14:05"))
	require.NoError(t, err)

	_, err = f.svc.DeleteDoctor(ctx, f.doctor.Email)
	assert.ErrorIs(t, err, clinic.ErrInUse)
	assert.Len(t, f.svc.ListDoctors(), 2)

	_, err = f.svc.DeletePatient(ctx, f.patient.Email)
	assert.ErrorIs(t, err, clinic.ErrInUse)

	_, err = f.svc.CancelAppointment(ctx, booked.ID)
	require.NoError(t, err)

	removed, err := f.svc.DeleteDoctor(ctx, "CARLOSR@hospital.com")
	require.NoError(t, err)
	assert.Equal(t, f.doctor.ID, removed.ID)
	assert.Len(t, f.svc.ListDoctors(), 1)

	_, err = f.svc.DeleteDoctor(ctx, f.doctor.Email)
	assert.ErrorIs(t, err, clinic.ErrNotFound)
}

func TestPatients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterPatient(ctx, testPatient("213532", "jonathan@gmail.com", "3123120000"))
	assert.ErrorIs(t, err, clinic.ErrDuplicateKey, "phone is unique among patients")
	assert.True(t, f.svc.PatientExistsWith("phone", "3123120000"))

	p, err := f.svc.FindPatientByDocument("2131231")
	require.NoError(t, err)
	assert.Equal(t, f.patient.ID, p.ID)

	_, err = f.svc.FindPatientByDocument("000000")
	assert.ErrorIs(t, err, clinic.ErrNotFound)

	p.Condition = "Migraine"
	updated, err := f.svc.UpdatePatient(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "Migraine", updated.Condition)

	removed, err := f.svc.DeletePatient(ctx, p.Email)
	require.NoError(t, err)
	assert.Equal(t, p.ID, removed.ID)
	assert.Empty(t, f.svc.ListPatients())
}

func TestIDsArePerKind(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, int64(1), f.doctor.ID)
	assert.Equal(t, int64(2), f.doctor2.ID)
	assert.Equal(t, int64(1), f.patient.ID)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BookAppointment(ctx, f.command(t, f.doctor.ID, "2025-11-19", "14:05"))
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Doctors: 2, Patients: 1, Appointments: 1}, stats)
}

// No sequence of accepted bookings and edits may leave one doctor with two
// appointments at the same slot.
func TestNoDoubleBookingUnderMixedLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	clocks := []string{"08:00", "08:30", "09:00"}
	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doctorID := f.doctor.ID
			if i%2 == 0 {
				doctorID = f.doctor2.ID
			}
			clock := clocks[i%len(clocks)]
			booked, err := f.svc.BookAppointment(ctx, f.command(t, doctorID, "2025-12-01", clock))
			if err != nil {
				return
			}
			next := clocks[(i+1)%len(clocks)]
			_, _ = f.svc.UpdateAppointment(ctx, booked.ID, f.command(t, doctorID, "2025-12-01", next))
		}(i)
	}
	wg.Wait()

	list, err := f.svc.ListAppointments(ctx)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, a := range list {
		key := fmt.Sprintf("%d|%s", a.DoctorID, a.Slot.Key())
		assert.False(t, seen[key], "double booking at %s", key)
		seen[key] = true
	}
}

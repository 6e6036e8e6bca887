// Package seed loads the demo data set and generates fake doctors and patients.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/clinic"
)

var Specialties = []string{
	"Cardiology",
	"Pediatrics",
	"Neurology",
	"Dermatology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var conditions = []string{
	"Headache",
	"Knee pain",
	"Back pain",
	"Fever",
	"Allergy",
	"Routine checkup",
}

func demoDoctor(name, doc, phone, email, specialty, office string) clinic.Doctor {
	return clinic.Doctor{
		Person: clinic.Person{
			Name:           name,
			DocumentType:   clinic.DocNationalID,
			DocumentNumber: doc,
			Phone:          phone,
			Address:        "Armenia",
			Email:          email,
		},
		Specialty:  specialty,
		OfficeRoom: office,
	}
}

func demoPatient(name string, docType clinic.DocumentType, doc, phone, email string, birth time.Time, condition string) clinic.Patient {
	return clinic.Patient{
		Person: clinic.Person{
			Name:           name,
			DocumentType:   docType,
			DocumentNumber: doc,
			Phone:          phone,
			Address:        "Armenia",
			Email:          email,
		},
		BirthDate: birth,
		Condition: condition,
	}
}

func DemoDoctors() []clinic.Doctor {
	return []clinic.Doctor{
		demoDoctor("Carlos López", "101234", "3101234567", "carlos@hospital.com", "Cardiology", "Office 12"),
		demoDoctor("María Pérez", "202345", "3119876543", "maria@hospital.com", "Pediatrics", "Office 5"),
		demoDoctor("Juan Gómez", "303456", "3107654321", "juan@hospital.com", "Neurology", "Office 8"),
		demoDoctor("Dr. Carlos Ramírez", "108654", "3101234967", "carlosR@hospital.com", "Cardiology", "Office 12"),
		demoDoctor("Dra. Lola Mento", "2023458", "3111876543", "lola@hospital.com", "Pediatrics", "Office 5"),
	}
}

func DemoPatients() []clinic.Patient {
	return []clinic.Patient{
		demoPatient("Julian Casablancas", clinic.DocNationalID, "2131231", "3123120000", "julian@gmail.com",
			time.Date(2000, 8, 30, 0, 0, 0, 0, time.UTC), "Headache"),
		demoPatient("Jonathan Davis", clinic.DocNationalID, "213532", "3125321200", "jonathan@gmail.com",
			time.Date(2001, 8, 30, 0, 0, 0, 0, time.UTC), "Knee pain"),
		demoPatient("Chino Moreno", clinic.DocNationalID, "42142132", "3124124100", "chino@gmail.com",
			time.Date(2004, 8, 6, 0, 0, 0, 0, time.UTC), "Headache"),
	}
}

// Demo registers the demo doctors and patients and books two appointments on
// 2025-11-19 14:05, one each for Dr. Ramírez and Dra. Mento.
func Demo(ctx context.Context, svc *appointment.Service) error {
	doctors := make(map[string]clinic.Doctor)
	for _, d := range DemoDoctors() {
		saved, err := svc.RegisterDoctor(ctx, d)
		if err != nil {
			return fmt.Errorf("seed doctor %s: %w", d.DocumentNumber, err)
		}
		doctors[saved.DocumentNumber] = saved
	}

	patients := make(map[string]clinic.Patient)
	for _, p := range DemoPatients() {
		saved, err := svc.RegisterPatient(ctx, p)
		if err != nil {
			return fmt.Errorf("seed patient %s: %w", p.DocumentNumber, err)
		}
		patients[saved.DocumentNumber] = saved
	}

	slot := clinic.NewSlot(time.Date(2025, 11, 19, 0, 0, 0, 0, time.UTC), 14, 5)
	bookings := []struct {
		doctor, patient, reason string
	}{
		{"108654", "2131231", "Patient reports a headache"},
		{"2023458", "213532", "Patient reports knee pain"},
	}
	for _, b := range bookings {
		_, err := svc.BookAppointment(ctx, appointment.AppointmentCommand{
			DoctorID:  doctors[b.doctor].ID,
			PatientID: patients[b.patient].ID,
			Slot:      slot,
			Price:     decimal.NewFromInt(2000),
			Reason:    b.reason,
		})
		if err != nil {
			return fmt.Errorf("seed appointment for doctor %s: %w", b.doctor, err)
		}
	}

	return nil
}

// Generator produces valid random doctors and patients. Values are random, so
// callers should expect and skip the occasional duplicate key.
type Generator struct {
	f *gofakeit.Faker
}

// NewGenerator seeds the faker. A zero seed picks a random one.
func NewGenerator(seed uint64) *Generator {
	return &Generator{f: gofakeit.New(seed)}
}

func (g *Generator) person() clinic.Person {
	types := []string{
		string(clinic.DocNationalID),
		string(clinic.DocForeignID),
		string(clinic.DocPassport),
		string(clinic.DocCivilRegistry),
	}
	return clinic.Person{
		Name:           g.f.Name(),
		DocumentType:   clinic.DocumentType(g.f.RandomString(types)),
		DocumentNumber: g.f.Numerify("1#########"),
		Phone:          g.f.Numerify("3#########"),
		Address:        g.f.Street() + ", " + g.f.City(),
		Email:          strings.ToLower(g.f.Email()),
	}
}

func (g *Generator) Doctor() clinic.Doctor {
	return clinic.Doctor{
		Person:     g.person(),
		Specialty:  g.f.RandomString(Specialties),
		OfficeRoom: fmt.Sprintf("Office %d", g.f.Number(1, 40)),
	}
}

func (g *Generator) Patient() clinic.Patient {
	now := time.Now()
	return clinic.Patient{
		Person:    g.person(),
		BirthDate: g.f.DateRange(now.AddDate(-90, 0, 0), now.AddDate(0, 0, -1)).UTC().Truncate(24 * time.Hour),
		Condition: g.f.RandomString(conditions),
	}
}

package registry

import "github.com/hackgods/clinic-scheduling/internal/clinic"

const (
	FieldDocument = "document"
	FieldEmail    = "email"
	FieldPhone    = "phone"
)

type (
	Doctors  = Registry[clinic.Doctor]
	Patients = Registry[clinic.Patient]
)

// NewDoctors returns a registry keeping document number and email unique.
// Doctors are deleted by email.
func NewDoctors() *Doctors {
	return New(Config[clinic.Doctor]{
		Kind:   "doctor",
		ID:     func(d clinic.Doctor) int64 { return d.ID },
		WithID: func(d clinic.Doctor, id int64) clinic.Doctor { d.ID = id; return d },
		Unique: []UniqueField[clinic.Doctor]{
			{Name: FieldDocument, Value: func(d clinic.Doctor) string { return d.DocumentNumber }},
			{Name: FieldEmail, Value: func(d clinic.Doctor) string { return d.Email }},
		},
		NaturalKey: FieldEmail,
	})
}

// NewPatients returns a registry keeping document number, email and phone unique.
// Patients are deleted by email.
func NewPatients() *Patients {
	return New(Config[clinic.Patient]{
		Kind:   "patient",
		ID:     func(p clinic.Patient) int64 { return p.ID },
		WithID: func(p clinic.Patient, id int64) clinic.Patient { p.ID = id; return p },
		Unique: []UniqueField[clinic.Patient]{
			{Name: FieldDocument, Value: func(p clinic.Patient) string { return p.DocumentNumber }},
			{Name: FieldEmail, Value: func(p clinic.Patient) string { return p.Email }},
			{Name: FieldPhone, Value: func(p clinic.Patient) string { return p.Phone }},
		},
		NaturalKey: FieldEmail,
	})
}

package clinic

import (
	"time"

	"github.com/shopspring/decimal"
)

type DocumentType string

const (
	DocNationalID    DocumentType = "national_id"
	DocForeignID     DocumentType = "foreign_id"
	DocPassport      DocumentType = "passport"
	DocCivilRegistry DocumentType = "civil_registry"
)

func (t DocumentType) IsValid() bool {
	switch t {
	case DocNationalID, DocForeignID, DocPassport, DocCivilRegistry:
		return true
	}
	return false
}

// Label is the human readable name shown next to a document number.
func (t DocumentType) Label() string {
	switch t {
	case DocNationalID:
		return "National ID"
	case DocForeignID:
		return "Foreign ID"
	case DocPassport:
		return "Passport"
	case DocCivilRegistry:
		return "Civil Registry"
	}
	return string(t)
}

// Person holds the attributes shared by doctors and patients.
type Person struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name" validate:"required"`
	DocumentType   DocumentType `json:"document_type" validate:"doctype"`
	DocumentNumber string       `json:"document_number" validate:"required,digits,min=5"`
	Phone          string       `json:"phone" validate:"omitempty,digits"`
	Address        string       `json:"address"`
	Email          string       `json:"email" validate:"required,email_loose"`
}

type Doctor struct {
	Person
	Specialty  string `json:"specialty" validate:"required"`
	OfficeRoom string `json:"office_room"`
	// Schedule is informational only; bookings are not checked against it.
	Schedule string `json:"schedule"`
}

type Patient struct {
	Person
	BirthDate time.Time `json:"birth_date"`
	Condition string    `json:"condition"`
}

// AppointmentID is opaque to callers.
type AppointmentID string

func (id AppointmentID) String() string { return string(id) }

type Appointment struct {
	ID        AppointmentID
	DoctorID  int64
	PatientID int64
	Slot      Slot
	Price     decimal.Decimal
	Reason    string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppointmentDetail is an appointment together with the doctor and patient it references.
type AppointmentDetail struct {
	Appointment
	Doctor  *Doctor
	Patient *Patient
}

func (d AppointmentDetail) DoctorName() string {
	if d.Doctor == nil {
		return ""
	}
	return d.Doctor.Name
}

func (d AppointmentDetail) PatientName() string {
	if d.Patient == nil {
		return ""
	}
	return d.Patient.Name
}

package api

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
)

type PersonRequest struct {
	Name           string `json:"name"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	Email          string `json:"email"`
}

func (r PersonRequest) person() clinic.Person {
	return clinic.Person{
		Name:           strings.TrimSpace(r.Name),
		DocumentType:   clinic.DocumentType(strings.TrimSpace(r.DocumentType)),
		DocumentNumber: strings.TrimSpace(r.DocumentNumber),
		Phone:          strings.TrimSpace(r.Phone),
		Address:        strings.TrimSpace(r.Address),
		Email:          strings.TrimSpace(r.Email),
	}
}

type DoctorRequest struct {
	PersonRequest
	Specialty  string `json:"specialty"`
	OfficeRoom string `json:"office_room"`
	Schedule   string `json:"schedule"`
}

func (r DoctorRequest) doctor() clinic.Doctor {
	return clinic.Doctor{
		Person:     r.person(),
		Specialty:  strings.TrimSpace(r.Specialty),
		OfficeRoom: strings.TrimSpace(r.OfficeRoom),
		Schedule:   strings.TrimSpace(r.Schedule),
	}
}

type PatientRequest struct {
	PersonRequest
	BirthDate string `json:"birth_date"` // YYYY-MM-DD
	Condition string `json:"condition"`
}

func (r PatientRequest) patient() (clinic.Patient, error) {
	p := clinic.Patient{
		Person:    r.person(),
		Condition: strings.TrimSpace(r.Condition),
	}
	if raw := strings.TrimSpace(r.BirthDate); raw != "" {
		t, err := time.Parse(clinic.DateLayout, raw)
		if err != nil {
			return clinic.Patient{}, &clinic.ValidationError{Fields: []string{"birth_date: must be YYYY-MM-DD"}}
		}
		p.BirthDate = t
	}
	return p, nil
}

type AppointmentRequest struct {
	DoctorID  int64           `json:"doctor_id"`
	PatientID int64           `json:"patient_id"`
	Date      string          `json:"date"` // YYYY-MM-DD
	Time      string          `json:"time"` // HH:MM
	Price     decimal.Decimal `json:"price"`
	Reason    string          `json:"reason"`
	Notes     string          `json:"notes"`
}

type PersonResponse struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	DocumentType      string `json:"document_type"`
	DocumentTypeLabel string `json:"document_type_label"`
	DocumentNumber    string `json:"document_number"`
	Phone             string `json:"phone,omitempty"`
	Address           string `json:"address,omitempty"`
	Email             string `json:"email"`
}

func toPersonResponse(p clinic.Person) PersonResponse {
	return PersonResponse{
		ID:                p.ID,
		Name:              p.Name,
		DocumentType:      string(p.DocumentType),
		DocumentTypeLabel: p.DocumentType.Label(),
		DocumentNumber:    p.DocumentNumber,
		Phone:             p.Phone,
		Address:           p.Address,
		Email:             p.Email,
	}
}

type DoctorResponse struct {
	PersonResponse
	Specialty  string `json:"specialty"`
	OfficeRoom string `json:"office_room,omitempty"`
	Schedule   string `json:"schedule,omitempty"`
}

func toDoctorResponse(d clinic.Doctor) DoctorResponse {
	return DoctorResponse{
		PersonResponse: toPersonResponse(d.Person),
		Specialty:      d.Specialty,
		OfficeRoom:     d.OfficeRoom,
		Schedule:       d.Schedule,
	}
}

func toDoctorResponses(list []clinic.Doctor) []DoctorResponse {
	out := make([]DoctorResponse, 0, len(list))
	for _, d := range list {
		out = append(out, toDoctorResponse(d))
	}
	return out
}

type PatientResponse struct {
	PersonResponse
	BirthDate string `json:"birth_date"`
	Condition string `json:"condition,omitempty"`
}

func toPatientResponse(p clinic.Patient) PatientResponse {
	return PatientResponse{
		PersonResponse: toPersonResponse(p.Person),
		BirthDate:      p.BirthDate.Format(clinic.DateLayout),
		Condition:      p.Condition,
	}
}

func toPatientResponses(list []clinic.Patient) []PatientResponse {
	out := make([]PatientResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPatientResponse(p))
	}
	return out
}

type AppointmentResponse struct {
	ID          string    `json:"id"`
	DoctorID    int64     `json:"doctor_id"`
	DoctorName  string    `json:"doctor_name,omitempty"`
	PatientID   int64     `json:"patient_id"`
	PatientName string    `json:"patient_name,omitempty"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	DisplayDate string    `json:"display_date"`
	Price       string    `json:"price"`
	Reason      string    `json:"reason"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toAppointmentResponse(d clinic.AppointmentDetail) AppointmentResponse {
	return AppointmentResponse{
		ID:          d.ID.String(),
		DoctorID:    d.DoctorID,
		DoctorName:  d.DoctorName(),
		PatientID:   d.PatientID,
		PatientName: d.PatientName(),
		Date:        d.Slot.Date(),
		Time:        d.Slot.Clock(),
		DisplayDate: d.Slot.DisplayDate(),
		Price:       d.Price.StringFixed(2),
		Reason:      d.Reason,
		Notes:       d.Notes,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func toAppointmentResponses(list []clinic.AppointmentDetail) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for _, d := range list {
		out = append(out, toAppointmentResponse(d))
	}
	return out
}

type ConflictResponse struct {
	Conflict bool `json:"conflict"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

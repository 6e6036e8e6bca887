package clinic

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	digitsRe = regexp.MustCompile(`^\d+$`)
	emailRe  = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)
	phoneRe  = regexp.MustCompile(`^\d{10}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("email_loose", func(fl validator.FieldLevel) bool {
		return emailRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("doctype", func(fl validator.FieldLevel) bool {
		return DocumentType(fl.Field().String()).IsValid()
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		p := sl.Current().Interface().(Patient)
		if !phoneRe.MatchString(p.Phone) {
			sl.ReportError(p.Phone, "phone", "Phone", "phone10", "")
		}
		if p.BirthDate.IsZero() {
			sl.ReportError(p.BirthDate, "birth_date", "BirthDate", "required", "")
		} else if p.BirthDate.After(time.Now()) {
			sl.ReportError(p.BirthDate, "birth_date", "BirthDate", "past", "")
		}
	}, Patient{})

	return v
}

func ValidateDoctor(d Doctor) error {
	return translate(validate.Struct(d))
}

func ValidatePatient(p Patient) error {
	return translate(validate.Struct(p))
}

// ValidateAppointment checks the caller supplied fields of an appointment.
// References to doctor and patient are resolved by the scheduling service.
func ValidateAppointment(a Appointment) error {
	var fields []string
	if a.DoctorID <= 0 {
		fields = append(fields, "doctor_id: is required")
	}
	if a.PatientID <= 0 {
		fields = append(fields, "patient_id: is required")
	}
	if a.Slot.IsZero() {
		fields = append(fields, "date and time are required")
	}
	if a.Price.IsNegative() {
		fields = append(fields, "price: must not be negative")
	} else if !a.Price.Equal(a.Price.Round(2)) {
		fields = append(fields, "price: at most 2 decimal places")
	}
	if strings.TrimSpace(a.Reason) == "" {
		fields = append(fields, "reason: is required")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+": "+message(fe))
	}
	return &ValidationError{Fields: fields}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "digits":
		return "must contain only digits"
	case "min":
		return "must have at least " + fe.Param() + " characters"
	case "email_loose":
		return "must be a valid email"
	case "doctype":
		return "must be one of national_id, foreign_id, passport, civil_registry"
	case "phone10":
		return "must be exactly 10 digits"
	case "past":
		return "cannot be in the future"
	}
	return "failed " + fe.Tag()
}

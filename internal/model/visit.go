package model

import (
	"time"

	"github.com/google/uuid"
)

type Visit struct {
	Base
	ClinicID          uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID     *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	DoctorID          *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	VisitNumber       int        `db:"visit_number" json:"visit_number"`
	VisitDate         time.Time  `db:"visit_date" json:"visit_date"`
	Symptoms          string     `db:"symptoms" json:"symptoms,omitempty"`
	Diagnosis         string     `db:"diagnosis" json:"diagnosis,omitempty"`
	PrescriptionNotes string     `db:"prescription_notes" json:"prescription_notes,omitempty"`
}

type CreateVisitRequest struct {
	PatientID         uuid.UUID  `json:"patient_id" binding:"required"`
	AppointmentID     *uuid.UUID `json:"appointment_id"`
	Symptoms          string     `json:"symptoms" binding:"max=2000"`
	Diagnosis         string     `json:"diagnosis" binding:"max=2000"`
	PrescriptionNotes string     `json:"prescription_notes" binding:"max=4000"`
}

type UpdateVisitRequest struct {
	Symptoms          *string `json:"symptoms" binding:"omitempty,max=2000"`
	Diagnosis         *string `json:"diagnosis" binding:"omitempty,max=2000"`
	PrescriptionNotes *string `json:"prescription_notes" binding:"omitempty,max=4000"`
}

// Apply copies the present notes onto v and reports whether any were.
func (r *UpdateVisitRequest) Apply(v *Visit) bool {
	changed := false
	for _, f := range []struct {
		dst *string
		src *string
	}{
		{&v.Symptoms, r.Symptoms},
		{&v.Diagnosis, r.Diagnosis},
		{&v.PrescriptionNotes, r.PrescriptionNotes},
	} {
		if f.src != nil {
			*f.dst = *f.src
			changed = true
		}
	}
	return changed
}

package model

import (
	"github.com/google/uuid"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   uuid.UUID  `json:"user_id"`
	Email    string     `json:"email"`
	Role     Role       `json:"role"`
	ClinicID *uuid.UUID `json:"clinic_id,omitempty"`
	DoctorID *uuid.UUID `json:"doctor_id,omitempty"`
}

// Clinic returns the caller's clinic, or uuid.Nil for clinic-less admins.
func (p *Principal) Clinic() uuid.UUID {
	if p == nil || p.ClinicID == nil {
		return uuid.Nil
	}
	return *p.ClinicID
}

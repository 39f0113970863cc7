package model

import (
	"github.com/google/uuid"
)

type Patient struct {
	Base
	PatientCode string    `db:"patient_code" json:"patient_code"`
	ClinicID    uuid.UUID `db:"clinic_id" json:"clinic_id"`
	FullName    string    `db:"full_name" json:"full_name"`
	Age         *int      `db:"age" json:"age,omitempty"`
	Gender      string    `db:"gender" json:"gender,omitempty"`
	Phone       string    `db:"phone" json:"phone,omitempty"`
	Address     string    `db:"address" json:"address,omitempty"`
	BloodGroup  string    `db:"blood_group" json:"blood_group,omitempty"`
	CreatedBy   uuid.UUID `db:"created_by" json:"created_by"`
}

type PatientFilter struct {
	Search string `form:"search"`
	Pagination
}

type CreatePatientRequest struct {
	FullName   string `json:"full_name" binding:"required,max=200"`
	Age        *int   `json:"age" binding:"omitempty,min=0,max=150"`
	Gender     string `json:"gender" binding:"omitempty,oneof=MALE FEMALE OTHER"`
	Phone      string `json:"phone" binding:"max=20"`
	Address    string `json:"address" binding:"max=500"`
	BloodGroup string `json:"blood_group" binding:"max=5"`
}

// UpdatePatientRequest changes only the fields that are present.
type UpdatePatientRequest struct {
	FullName   *string `json:"full_name" binding:"omitempty,min=1,max=200"`
	Age        *int    `json:"age" binding:"omitempty,min=0,max=150"`
	Gender     *string `json:"gender" binding:"omitempty,oneof=MALE FEMALE OTHER"`
	Phone      *string `json:"phone" binding:"omitempty,max=20"`
	Address    *string `json:"address" binding:"omitempty,max=500"`
	BloodGroup *string `json:"blood_group" binding:"omitempty,max=5"`
}

// Apply copies the present fields onto p and reports whether any were.
func (r *UpdatePatientRequest) Apply(p *Patient) bool {
	changed := false
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
			changed = true
		}
	}
	set(&p.FullName, r.FullName)
	set(&p.Gender, r.Gender)
	set(&p.Phone, r.Phone)
	set(&p.Address, r.Address)
	set(&p.BloodGroup, r.BloodGroup)
	if r.Age != nil {
		age := *r.Age
		p.Age = &age
		changed = true
	}
	return changed
}

package model

import (
	"github.com/google/uuid"
)

type Clinic struct {
	Base
	ClinicCode    string     `db:"clinic_code" json:"clinic_code"`
	Name          string     `db:"name" json:"name"`
	Address       string     `db:"address" json:"address"`
	Phone         string     `db:"phone" json:"phone"`
	Email         string     `db:"email" json:"email"`
	OPDStartTime  string     `db:"opd_start_time" json:"opd_start_time"`
	OPDEndTime    string     `db:"opd_end_time" json:"opd_end_time"`
	OwnerDoctorID *uuid.UUID `db:"owner_doctor_id" json:"owner_doctor_id,omitempty"`
}

// ClinicAdmin links an ADMIN user to a clinic they manage.
type ClinicAdmin struct {
	AdminID  uuid.UUID `db:"admin_id" json:"admin_id"`
	ClinicID uuid.UUID `db:"clinic_id" json:"clinic_id"`
}

// ClinicView is the clinic as seen by one of its members.
type ClinicView struct {
	*Clinic
	IsOwner bool `json:"is_owner"`
}

type CreateClinicRequest struct {
	Name         string `json:"name" binding:"required,max=200"`
	Address      string `json:"address" binding:"max=500"`
	Phone        string `json:"phone" binding:"max=20"`
	Email        string `json:"email" binding:"omitempty,email"`
	OPDStartTime string `json:"opd_start_time" binding:"omitempty,datetime=15:04"`
	OPDEndTime   string `json:"opd_end_time" binding:"omitempty,datetime=15:04"`
}

type AddDoctorRequest struct {
	Email              string `json:"email" binding:"required,email"`
	Password           string `json:"password" binding:"required,min=8"`
	FullName           string `json:"full_name" binding:"required"`
	Phone              string `json:"phone"`
	Specialization     string `json:"specialization"`
	Qualification      string `json:"qualification"`
	RegistrationNumber string `json:"registration_number"`
}

type AssignOwnerRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" binding:"required"`
}

// DoctorAccount is a doctor added to a clinic by an administrator.
type DoctorAccount struct {
	User    *User   `json:"user"`
	Doctor  *Doctor `json:"doctor"`
	IsOwner bool    `json:"is_owner"`
}

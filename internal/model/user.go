package model

import (
	"github.com/google/uuid"
)

// Role is fixed at user creation.
type Role string

const (
	RoleDoctor    Role = "DOCTOR"
	RoleAssistant Role = "ASSISTANT"
	RoleAdmin     Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RoleAssistant, RoleAdmin:
		return true
	}
	return false
}

// User represents a system user
type User struct {
	Base
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         Role       `db:"role" json:"role"`
	FullName     string     `db:"full_name" json:"full_name"`
	Phone        string     `db:"phone" json:"phone,omitempty"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	ClinicID     *uuid.UUID `db:"clinic_id" json:"clinic_id,omitempty"`
}

// Doctor is the clinical profile of a DOCTOR user.
type Doctor struct {
	Base
	DoctorCode         string    `db:"doctor_code" json:"doctor_code"`
	UserID             uuid.UUID `db:"user_id" json:"user_id"`
	ClinicID           uuid.UUID `db:"clinic_id" json:"clinic_id"`
	Specialization     string    `db:"specialization" json:"specialization,omitempty"`
	Qualification      string    `db:"qualification" json:"qualification,omitempty"`
	RegistrationNumber string    `db:"registration_number" json:"registration_number,omitempty"`
}

// ClinicUser is a staff member listed for the clinic owner.
type ClinicUser struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     Role      `json:"role"`
	IsActive bool      `json:"is_active"`
	IsOwner  bool      `json:"is_owner"`
}

type CreateUserRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	FullName       string `json:"full_name" binding:"required"`
	Phone          string `json:"phone"`
	Role           Role   `json:"role" binding:"required,oneof=DOCTOR ASSISTANT"`
	Specialization string `json:"specialization"`
	Qualification  string `json:"qualification"`
}

// UpdateUserRequest edits a staff member of the owner's clinic. Setting
// is_active to false locks the user out.
type UpdateUserRequest struct {
	FullName *string `json:"full_name" binding:"omitempty,min=1"`
	Phone    *string `json:"phone" binding:"omitempty,max=20"`
	IsActive *bool   `json:"is_active"`
}

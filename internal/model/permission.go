package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Capability names a single permission flag. The set is closed.
type Capability string

const (
	CanViewPatients        Capability = "can_view_patients"
	CanCreatePatients      Capability = "can_create_patients"
	CanEditPatients        Capability = "can_edit_patients"
	CanDeletePatients      Capability = "can_delete_patients"
	CanViewOPD             Capability = "can_view_opd"
	CanManageOPD           Capability = "can_manage_opd"
	CanViewVisits          Capability = "can_view_visits"
	CanCreateVisits        Capability = "can_create_visits"
	CanEditVisits          Capability = "can_edit_visits"
	CanViewInvoices        Capability = "can_view_invoices"
	CanCreateInvoices      Capability = "can_create_invoices"
	CanEditInvoices        Capability = "can_edit_invoices"
	CanViewCollections     Capability = "can_view_collections"
	CanManageClinicOptions Capability = "can_manage_clinic_options"
	CanEditPrintSettings   Capability = "can_edit_print_settings"
)

// AllCapabilities lists every capability in display order.
var AllCapabilities = []Capability{
	CanViewPatients, CanCreatePatients, CanEditPatients, CanDeletePatients,
	CanViewOPD, CanManageOPD,
	CanViewVisits, CanCreateVisits, CanEditVisits,
	CanViewInvoices, CanCreateInvoices, CanEditInvoices, CanViewCollections,
	CanManageClinicOptions, CanEditPrintSettings,
}

var assistantDefaults = []Capability{
	CanViewPatients, CanCreatePatients, CanEditPatients,
	CanViewOPD, CanManageOPD,
	CanViewVisits,
	CanViewInvoices, CanCreateInvoices, CanEditInvoices,
	CanViewCollections,
}

func (c Capability) Valid() bool {
	for _, known := range AllCapabilities {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCapability rejects names outside the closed set.
func ParseCapability(s string) (Capability, error) {
	c := Capability(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown capability %q", s)
	}
	return c, nil
}

// RoleDefault is the value a capability takes for a role when no explicit
// row exists. Doctors get everything, assistants the front-desk set, any
// other role nothing.
func RoleDefault(role Role, c Capability) bool {
	switch role {
	case RoleDoctor:
		return c.Valid()
	case RoleAssistant:
		for _, d := range assistantDefaults {
			if d == c {
				return true
			}
		}
	}
	return false
}

// UserPermission is the explicit per-user capability row. It never exists
// for a clinic owner.
type UserPermission struct {
	ID       uuid.UUID `db:"id" json:"id"`
	UserID   uuid.UUID `db:"user_id" json:"user_id"`
	ClinicID uuid.UUID `db:"clinic_id" json:"clinic_id"`

	CanViewPatients        bool `db:"can_view_patients" json:"can_view_patients"`
	CanCreatePatients      bool `db:"can_create_patients" json:"can_create_patients"`
	CanEditPatients        bool `db:"can_edit_patients" json:"can_edit_patients"`
	CanDeletePatients      bool `db:"can_delete_patients" json:"can_delete_patients"`
	CanViewOPD             bool `db:"can_view_opd" json:"can_view_opd"`
	CanManageOPD           bool `db:"can_manage_opd" json:"can_manage_opd"`
	CanViewVisits          bool `db:"can_view_visits" json:"can_view_visits"`
	CanCreateVisits        bool `db:"can_create_visits" json:"can_create_visits"`
	CanEditVisits          bool `db:"can_edit_visits" json:"can_edit_visits"`
	CanViewInvoices        bool `db:"can_view_invoices" json:"can_view_invoices"`
	CanCreateInvoices      bool `db:"can_create_invoices" json:"can_create_invoices"`
	CanEditInvoices        bool `db:"can_edit_invoices" json:"can_edit_invoices"`
	CanViewCollections     bool `db:"can_view_collections" json:"can_view_collections"`
	CanManageClinicOptions bool `db:"can_manage_clinic_options" json:"can_manage_clinic_options"`
	CanEditPrintSettings   bool `db:"can_edit_print_settings" json:"can_edit_print_settings"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewUserPermission builds a row populated with the role defaults.
func NewUserPermission(userID, clinicID uuid.UUID, role Role, now time.Time) *UserPermission {
	p := &UserPermission{
		ID:        uuid.New(),
		UserID:    userID,
		ClinicID:  clinicID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.ApplyDefaults(role)
	return p
}

func (p *UserPermission) field(c Capability) *bool {
	switch c {
	case CanViewPatients:
		return &p.CanViewPatients
	case CanCreatePatients:
		return &p.CanCreatePatients
	case CanEditPatients:
		return &p.CanEditPatients
	case CanDeletePatients:
		return &p.CanDeletePatients
	case CanViewOPD:
		return &p.CanViewOPD
	case CanManageOPD:
		return &p.CanManageOPD
	case CanViewVisits:
		return &p.CanViewVisits
	case CanCreateVisits:
		return &p.CanCreateVisits
	case CanEditVisits:
		return &p.CanEditVisits
	case CanViewInvoices:
		return &p.CanViewInvoices
	case CanCreateInvoices:
		return &p.CanCreateInvoices
	case CanEditInvoices:
		return &p.CanEditInvoices
	case CanViewCollections:
		return &p.CanViewCollections
	case CanManageClinicOptions:
		return &p.CanManageClinicOptions
	case CanEditPrintSettings:
		return &p.CanEditPrintSettings
	}
	return nil
}

// Allows reports the explicit value for c; unknown capabilities are denied.
func (p *UserPermission) Allows(c Capability) bool {
	if f := p.field(c); f != nil {
		return *f
	}
	return false
}

func (p *UserPermission) Set(c Capability, v bool) error {
	f := p.field(c)
	if f == nil {
		return fmt.Errorf("unknown capability %q", c)
	}
	*f = v
	return nil
}

// ApplyDefaults overwrites every flag with the role default.
func (p *UserPermission) ApplyDefaults(role Role) {
	for _, c := range AllCapabilities {
		*p.field(c) = RoleDefault(role, c)
	}
}

// Capabilities flattens the row into name -> value.
func (p *UserPermission) Capabilities() CapabilitySet {
	set := make(CapabilitySet, len(AllCapabilities))
	for _, c := range AllCapabilities {
		set[c] = p.Allows(c)
	}
	return set
}

// CapabilitySet maps every capability to its resolved value.
type CapabilitySet map[Capability]bool

// DefaultCapabilities is the set a role gets without an explicit row.
func DefaultCapabilities(role Role) CapabilitySet {
	set := make(CapabilitySet, len(AllCapabilities))
	for _, c := range AllCapabilities {
		set[c] = RoleDefault(role, c)
	}
	return set
}

// FullCapabilities is what an owner resolves to.
func FullCapabilities() CapabilitySet {
	set := make(CapabilitySet, len(AllCapabilities))
	for _, c := range AllCapabilities {
		set[c] = true
	}
	return set
}

// PermissionView is the administration view of one user's permissions.
type PermissionView struct {
	UserID       uuid.UUID     `json:"user_id"`
	ClinicID     uuid.UUID     `json:"clinic_id"`
	Role         Role          `json:"role"`
	IsOwner      bool          `json:"is_owner"`
	Explicit     bool          `json:"explicit"`
	Capabilities CapabilitySet `json:"capabilities"`
}

// UpdatePermissionsRequest is a partial update; absent capabilities keep
// their current value.
type UpdatePermissionsRequest struct {
	Capabilities map[string]bool `json:"capabilities" binding:"required,min=1,dive,keys,capability,endkeys"`
}

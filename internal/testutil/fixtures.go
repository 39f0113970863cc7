// Package testutil seeds an in-memory store for service and handler tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
)

// Clinic is a seeded clinic with an owner doctor and an assistant.
type Clinic struct {
	Store     *memory.Store
	Clinic    *model.Clinic
	Owner     *model.User
	OwnerDoc  *model.Doctor
	Assistant *model.User
}

func (c *Clinic) Principal(u *model.User) *model.Principal {
	p := &model.Principal{UserID: u.ID, Email: u.Email, Role: u.Role, ClinicID: u.ClinicID}
	if u.ID == c.Owner.ID {
		p.DoctorID = &c.OwnerDoc.ID
	}
	return p
}

// SeedClinic creates a clinic in store. The owner has no permission row;
// the assistant has one populated with role defaults.
func SeedClinic(t *testing.T, store *memory.Store, name string) *Clinic {
	t.Helper()
	now := time.Now()
	c := &Clinic{Store: store}
	c.Clinic = &model.Clinic{Base: model.NewBase(now), ClinicCode: "CL-T" + uuid.NewString()[:8], Name: name}
	c.Owner = NewUser(c.Clinic.ID, model.RoleDoctor, name+"-owner")
	c.OwnerDoc = &model.Doctor{
		Base:       model.NewBase(now),
		DoctorCode: "DR-T" + uuid.NewString()[:8],
		UserID:     c.Owner.ID,
		ClinicID:   c.Clinic.ID,
	}
	c.Assistant = NewUser(c.Clinic.ID, model.RoleAssistant, name+"-assistant")

	require.NoError(t, store.WithTx(context.Background(), func(tx repository.Tx) error {
		ctx := context.Background()
		if err := tx.Clinics().Create(ctx, c.Clinic); err != nil {
			return err
		}
		if err := tx.Users().Create(ctx, c.Owner); err != nil {
			return err
		}
		if err := tx.Doctors().Create(ctx, c.OwnerDoc); err != nil {
			return err
		}
		if err := tx.Clinics().SetOwner(ctx, c.Clinic.ID, &c.OwnerDoc.ID); err != nil {
			return err
		}
		c.Clinic.OwnerDoctorID = &c.OwnerDoc.ID
		if err := tx.Users().Create(ctx, c.Assistant); err != nil {
			return err
		}
		return tx.Permissions().Upsert(ctx, model.NewUserPermission(c.Assistant.ID, c.Clinic.ID, model.RoleAssistant, now))
	}))
	return c
}

func NewUser(clinicID uuid.UUID, role model.Role, name string) *model.User {
	id := clinicID
	return &model.User{
		Base:     model.NewBase(time.Now()),
		Email:    fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Role:     role,
		FullName: name,
		IsActive: true,
		ClinicID: &id,
	}
}

// AddUser stores an extra member without a permission row.
func (c *Clinic) AddUser(t *testing.T, role model.Role, name string) *model.User {
	t.Helper()
	u := NewUser(c.Clinic.ID, role, name)
	require.NoError(t, c.Store.WithTx(context.Background(), func(tx repository.Tx) error {
		return tx.Users().Create(context.Background(), u)
	}))
	return u
}

// AddPatient stores a patient with the given code.
func (c *Clinic) AddPatient(t *testing.T, code string) *model.Patient {
	t.Helper()
	p := &model.Patient{Base: model.NewBase(time.Now()), PatientCode: code, ClinicID: c.Clinic.ID, FullName: code, CreatedBy: c.Owner.ID}
	require.NoError(t, c.Store.WithTx(context.Background(), func(tx repository.Tx) error {
		return tx.Patients().Create(context.Background(), p)
	}))
	return p
}

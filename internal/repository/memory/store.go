// Package memory is a transactional in-process store. Transactions are
// serialized behind one mutex, run against a copy of the state, and are
// swapped in only after the deferred uniqueness checks pass.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type permKey struct {
	userID   uuid.UUID
	clinicID uuid.UUID
}

type state struct {
	clinics      map[uuid.UUID]model.Clinic
	clinicAdmins map[model.ClinicAdmin]struct{}
	users        map[uuid.UUID]model.User
	doctors      map[uuid.UUID]model.Doctor
	permissions  map[permKey]model.UserPermission
	patients     map[uuid.UUID]model.Patient
	invoices     map[uuid.UUID]model.Invoice
	appointments map[uuid.UUID]model.Appointment
	visits       map[uuid.UUID]model.Visit
	outbox       map[uuid.UUID]model.OutboxEvent
}

func newState() state {
	return state{
		clinics:      map[uuid.UUID]model.Clinic{},
		clinicAdmins: map[model.ClinicAdmin]struct{}{},
		users:        map[uuid.UUID]model.User{},
		doctors:      map[uuid.UUID]model.Doctor{},
		permissions:  map[permKey]model.UserPermission{},
		patients:     map[uuid.UUID]model.Patient{},
		invoices:     map[uuid.UUID]model.Invoice{},
		appointments: map[uuid.UUID]model.Appointment{},
		visits:       map[uuid.UUID]model.Visit{},
		outbox:       map[uuid.UUID]model.OutboxEvent{},
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s state) clone() state {
	return state{
		clinics:      cloneMap(s.clinics),
		clinicAdmins: cloneMap(s.clinicAdmins),
		users:        cloneMap(s.users),
		doctors:      cloneMap(s.doctors),
		permissions:  cloneMap(s.permissions),
		patients:     cloneMap(s.patients),
		invoices:     cloneMap(s.invoices),
		appointments: cloneMap(s.appointments),
		visits:       cloneMap(s.visits),
		outbox:       cloneMap(s.outbox),
	}
}

// Store implements repository.Store.
type Store struct {
	mu    sync.Mutex
	state state
	nowFn func() time.Time
}

func NewStore() *Store {
	return &Store{state: newState(), nowFn: time.Now}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{state: s.state.clone(), now: s.nowFn}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.state.checkConstraints(); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

type memTx struct {
	state state
	now   func() time.Time
}

func (tx *memTx) Clinics() repository.ClinicRepository           { return clinicRepo{tx} }
func (tx *memTx) Users() repository.UserRepository               { return userRepo{tx} }
func (tx *memTx) Doctors() repository.DoctorRepository           { return doctorRepo{tx} }
func (tx *memTx) Permissions() repository.PermissionRepository   { return permissionRepo{tx} }
func (tx *memTx) Patients() repository.PatientRepository         { return patientRepo{tx} }
func (tx *memTx) Invoices() repository.InvoiceRepository         { return invoiceRepo{tx} }
func (tx *memTx) Appointments() repository.AppointmentRepository { return appointmentRepo{tx} }
func (tx *memTx) Visits() repository.VisitRepository             { return visitRepo{tx} }
func (tx *memTx) Outbox() repository.OutboxRepository            { return outboxRepo{tx} }

func conflict(what string, key interface{}) error {
	return fmt.Errorf("duplicate %s %v: %w", what, key, repository.ErrConflict)
}

// checkConstraints enforces the unique indexes at commit time, the way a
// deferred constraint would.
func (s state) checkConstraints() error {
	emails := map[string]bool{}
	for _, u := range s.users {
		if emails[u.Email] {
			return conflict("email", u.Email)
		}
		emails[u.Email] = true
	}

	clinicCodes := map[string]bool{}
	for _, c := range s.clinics {
		if clinicCodes[c.ClinicCode] {
			return conflict("clinic code", c.ClinicCode)
		}
		clinicCodes[c.ClinicCode] = true
	}

	doctorCodes := map[string]bool{}
	doctorUsers := map[uuid.UUID]bool{}
	for _, d := range s.doctors {
		if doctorCodes[d.DoctorCode] {
			return conflict("doctor code", d.DoctorCode)
		}
		if doctorUsers[d.UserID] {
			return conflict("doctor user", d.UserID)
		}
		doctorCodes[d.DoctorCode] = true
		doctorUsers[d.UserID] = true
	}

	type scoped struct {
		clinicID uuid.UUID
		code     string
	}
	patientCodes := map[scoped]bool{}
	for _, p := range s.patients {
		k := scoped{p.ClinicID, p.PatientCode}
		if patientCodes[k] {
			return conflict("patient code", p.PatientCode)
		}
		patientCodes[k] = true
	}

	invoiceNumbers := map[scoped]bool{}
	for _, inv := range s.invoices {
		k := scoped{inv.ClinicID, inv.InvoiceNumber}
		if invoiceNumbers[k] {
			return conflict("invoice number", inv.InvoiceNumber)
		}
		invoiceNumbers[k] = true
	}

	type slot struct {
		key    model.QueueKey
		number int
	}
	slots := map[slot]bool{}
	for _, a := range s.appointments {
		if a.DeletedAt != nil {
			continue
		}
		k := slot{a.QueueKey(), a.QueueNumber}
		if slots[k] {
			return conflict("queue number", a.QueueNumber)
		}
		slots[k] = true
	}

	type visitSeq struct {
		patientID uuid.UUID
		number    int
	}
	visitNumbers := map[visitSeq]bool{}
	visitAppointments := map[uuid.UUID]bool{}
	for _, v := range s.visits {
		k := visitSeq{v.PatientID, v.VisitNumber}
		if visitNumbers[k] {
			return conflict("visit number", v.VisitNumber)
		}
		visitNumbers[k] = true
		if v.AppointmentID != nil {
			if visitAppointments[*v.AppointmentID] {
				return conflict("visit for appointment", *v.AppointmentID)
			}
			visitAppointments[*v.AppointmentID] = true
		}
	}
	return nil
}

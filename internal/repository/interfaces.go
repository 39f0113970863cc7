package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

var (
	// ErrNotFound is returned when a row does not exist, is soft-deleted, or
	// belongs to another clinic.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a uniqueness constraint or serialization
	// check rejects a write. The whole transaction may be retried.
	ErrConflict = errors.New("conflicting write")
)

// Store opens units of work. Every repository reached through a Tx shares
// that transaction: either all writes commit or none do.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Clinics() ClinicRepository
	Users() UserRepository
	Doctors() DoctorRepository
	Permissions() PermissionRepository
	Patients() PatientRepository
	Invoices() InvoiceRepository
	Appointments() AppointmentRepository
	Visits() VisitRepository
	Outbox() OutboxRepository
}

// All repository interfaces in one file
type (
	ClinicRepository interface {
		Create(ctx context.Context, clinic *model.Clinic) error
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
		SetOwner(ctx context.Context, clinicID uuid.UUID, doctorID *uuid.UUID) error
		// ListCodes returns every clinic code; the series is global.
		ListCodes(ctx context.Context) ([]string, error)
		AddAdmin(ctx context.Context, adminID, clinicID uuid.UUID) error
		IsAdmin(ctx context.Context, adminID, clinicID uuid.UUID) (bool, error)
		ListByAdmin(ctx context.Context, adminID uuid.UUID) ([]*model.Clinic, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.User, error)
		// Update writes the editable profile fields and is_active.
		Update(ctx context.Context, user *model.User) error
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByUser(ctx context.Context, userID uuid.UUID) (*model.Doctor, error)
		// ListCodes returns every doctor code; the series is global.
		ListCodes(ctx context.Context) ([]string, error)
	}

	PermissionRepository interface {
		Get(ctx context.Context, userID, clinicID uuid.UUID) (*model.UserPermission, error)
		Upsert(ctx context.Context, perm *model.UserPermission) error
		Delete(ctx context.Context, userID, clinicID uuid.UUID) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Patient, error)
		List(ctx context.Context, clinicID uuid.UUID, filter model.PatientFilter) ([]*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		SoftDelete(ctx context.Context, clinicID, id uuid.UUID, at time.Time) error
		// ListCodes includes soft-deleted patients so codes are never reused.
		ListCodes(ctx context.Context, clinicID uuid.UUID) ([]string, error)
	}

	InvoiceRepository interface {
		Create(ctx context.Context, invoice *model.Invoice) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Invoice, error)
		List(ctx context.Context, clinicID uuid.UUID, filter model.InvoiceFilter) ([]*model.Invoice, error)
		// UpdatePayment writes paid_amount, payment_status and payment_mode.
		UpdatePayment(ctx context.Context, invoice *model.Invoice) error
		ListCodes(ctx context.Context, clinicID uuid.UUID) ([]string, error)
		// SumPaid totals paid_amount of PAID invoices created during the
		// local calendar day of day.
		SumPaid(ctx context.Context, clinicID uuid.UUID, day time.Time) (int64, error)
	}

	AppointmentRepository interface {
		// LockPartition serializes writers of one queue partition until the
		// transaction ends.
		LockPartition(ctx context.Context, key model.QueueKey) error
		MaxQueueNumber(ctx context.Context, key model.QueueKey) (int, error)
		Count(ctx context.Context, key model.QueueKey) (int, error)
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Appointment, error)
		// List returns the live rows of a partition ordered by queue number.
		List(ctx context.Context, key model.QueueKey) ([]*model.Appointment, error)
		// UpdateStatus writes appointment.Status only while the stored status
		// is still from; otherwise it fails with ErrConflict.
		UpdateStatus(ctx context.Context, appointment *model.Appointment, from model.AppointmentStatus) error
		// Move applies a reposition in one statement.
		Move(ctx context.Context, key model.QueueKey, move model.QueueMove) error
		// SoftDelete removes the row from the partition and closes the gap
		// it leaves.
		SoftDelete(ctx context.Context, appointment *model.Appointment, at time.Time) error
		CountByStatus(ctx context.Context, key model.QueueKey) (map[model.AppointmentStatus]int, error)
	}

	VisitRepository interface {
		Create(ctx context.Context, visit *model.Visit) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Visit, error)
		// ListByPatient returns the patient's visits, newest first.
		ListByPatient(ctx context.Context, clinicID, patientID uuid.UUID) ([]*model.Visit, error)
		// UpdateNotes writes the clinical notes of a visit.
		UpdateNotes(ctx context.Context, visit *model.Visit) error
		MaxVisitNumber(ctx context.Context, patientID uuid.UUID) (int, error)
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Visit, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// GetPendingEventsWithLock returns due events, locking the rows so
		// concurrent workers skip them until the transaction ends.
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		// Lease hides the events from GetPendingEventsWithLock until the
		// given time, so a claim survives the end of its transaction.
		Lease(ctx context.Context, ids []uuid.UUID, until time.Time) error
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, retryAt *time.Time) error
	}
)

// RunInTx runs fn in a fresh transaction, retrying on ErrConflict up to
// attempts times. It returns how many attempts were used.
func RunInTx(ctx context.Context, store Store, attempts int, fn func(tx Tx) error) (int, error) {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = store.WithTx(ctx, fn)
		if !errors.Is(err, ErrConflict) {
			return i, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return i, ctxErr
		}
	}
	return attempts, err
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Store implements repository.Store on top of a sqlx connection pool.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// WithTx executes a function within a transaction
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mapError(err, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&pgTx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}

	// deferred constraints are checked here
	if err := tx.Commit(); err != nil {
		return mapError(err, "commit transaction")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) Clinics() repository.ClinicRepository           { return &clinicRepository{tx: t.tx} }
func (t *pgTx) Users() repository.UserRepository               { return &userRepository{tx: t.tx} }
func (t *pgTx) Doctors() repository.DoctorRepository           { return &doctorRepository{tx: t.tx} }
func (t *pgTx) Permissions() repository.PermissionRepository   { return &permissionRepository{tx: t.tx} }
func (t *pgTx) Patients() repository.PatientRepository         { return &patientRepository{tx: t.tx} }
func (t *pgTx) Invoices() repository.InvoiceRepository         { return &invoiceRepository{tx: t.tx} }
func (t *pgTx) Appointments() repository.AppointmentRepository { return &appointmentRepository{tx: t.tx} }
func (t *pgTx) Visits() repository.VisitRepository             { return &visitRepository{tx: t.tx} }
func (t *pgTx) Outbox() repository.OutboxRepository            { return &outboxRepository{tx: t.tx} }

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type appointmentRepository struct {
	tx *sqlx.Tx
}

const appointmentColumns = `id, clinic_id, patient_id, appointment_date, queue_number, status, chief_complaints,
	created_by, created_at, updated_at, deleted_at`

func partitionLockKey(key model.QueueKey) string {
	return fmt.Sprintf("queue:%s:%s", key.ClinicID, key.Date.Format(time.DateOnly))
}

// LockPartition takes a transaction-scoped advisory lock on the partition.
func (r *appointmentRepository) LockPartition(ctx context.Context, key model.QueueKey) error {
	_, err := r.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, partitionLockKey(key))
	return mapError(err, "lock queue partition")
}

func (r *appointmentRepository) MaxQueueNumber(ctx context.Context, key model.QueueKey) (int, error) {
	var max int
	query := `
		SELECT COALESCE(MAX(queue_number), 0)
		FROM appointments
		WHERE clinic_id = $1 AND appointment_date = $2 AND deleted_at IS NULL
	`
	if err := r.tx.GetContext(ctx, &max, query, key.ClinicID, key.Date); err != nil {
		return 0, mapError(err, "get max queue number")
	}
	return max, nil
}

func (r *appointmentRepository) Count(ctx context.Context, key model.QueueKey) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM appointments WHERE clinic_id = $1 AND appointment_date = $2 AND deleted_at IS NULL`
	if err := r.tx.GetContext(ctx, &n, query, key.ClinicID, key.Date); err != nil {
		return 0, mapError(err, "count queue")
	}
	return n, nil
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, clinic_id, patient_id, appointment_date, queue_number, status,
			chief_complaints, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.tx.ExecContext(ctx, query,
		appointment.ID,
		appointment.ClinicID,
		appointment.PatientID,
		appointment.AppointmentDate,
		appointment.QueueNumber,
		appointment.Status,
		appointment.ChiefComplaints,
		appointment.CreatedBy,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	return mapError(err, "create appointment")
}

func (r *appointmentRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Appointment, error) {
	var appointment model.Appointment
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 AND clinic_id = $2 AND deleted_at IS NULL`
	if err := r.tx.GetContext(ctx, &appointment, query, id, clinicID); err != nil {
		return nil, mapError(err, "get appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, key model.QueueKey) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE clinic_id = $1 AND appointment_date = $2 AND deleted_at IS NULL
		ORDER BY queue_number ASC
	`
	appointments := []*model.Appointment{}
	if err := r.tx.SelectContext(ctx, &appointments, query, key.ClinicID, key.Date); err != nil {
		return nil, mapError(err, "list queue")
	}
	return appointments, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, appointment *model.Appointment, from model.AppointmentStatus) error {
	res, err := r.tx.ExecContext(ctx,
		`UPDATE appointments SET status = $1, updated_at = $2
		WHERE id = $3 AND clinic_id = $4 AND status = $5 AND deleted_at IS NULL`,
		appointment.Status, appointment.UpdatedAt, appointment.ID, appointment.ClinicID, from)
	if err != nil {
		return mapError(err, "update appointment status")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to update appointment status: %w", repository.ErrConflict)
	}
	return nil
}

// Move rewrites the moved row and the displaced range in one UPDATE. The
// slot constraint is deferred, so transient duplicates inside the
// statement are fine. A row count other than the expected one means the
// partition changed underneath the caller.
func (r *appointmentRepository) Move(ctx context.Context, key model.QueueKey, move model.QueueMove) error {
	if move.NoOp() {
		return nil
	}
	lo, hi, delta := move.ShiftRange()
	query := `
		UPDATE appointments
		SET queue_number = CASE WHEN id = $3 THEN $4 ELSE queue_number + $5 END,
			updated_at = NOW()
		WHERE clinic_id = $1 AND appointment_date = $2 AND deleted_at IS NULL
		  AND ((id = $3 AND queue_number = $6) OR (id <> $3 AND queue_number BETWEEN $7 AND $8))
	`
	res, err := r.tx.ExecContext(ctx, query,
		key.ClinicID, key.Date, move.AppointmentID, move.To, delta, move.From, lo, hi)
	if err != nil {
		return mapError(err, "reposition appointment")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return mapError(err, "reposition appointment")
	}
	if want := int64(hi-lo+1) + 1; rows != want {
		return fmt.Errorf("failed to reposition appointment: moved %d rows, want %d: %w", rows, want, repository.ErrConflict)
	}
	return nil
}

// SoftDelete expects appointment to have been read under the partition
// lock, so its queue number is current.
func (r *appointmentRepository) SoftDelete(ctx context.Context, appointment *model.Appointment, at time.Time) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE appointments
		SET deleted_at = $1, updated_at = $1, queue_number = NULL
		WHERE id = $2 AND clinic_id = $3 AND deleted_at IS NULL
	`, at, appointment.ID, appointment.ClinicID)
	if err != nil {
		return mapError(err, "delete appointment")
	}
	if err := checkAffected(res, "delete appointment"); err != nil {
		return err
	}

	_, err = r.tx.ExecContext(ctx, `
		UPDATE appointments
		SET queue_number = queue_number - 1, updated_at = $1
		WHERE clinic_id = $2 AND appointment_date = $3 AND deleted_at IS NULL AND queue_number > $4
	`, at, appointment.ClinicID, model.DateOnly(appointment.AppointmentDate), appointment.QueueNumber)
	return mapError(err, "compact queue")
}

func (r *appointmentRepository) CountByStatus(ctx context.Context, key model.QueueKey) (map[model.AppointmentStatus]int, error) {
	var rows []struct {
		Status model.AppointmentStatus `db:"status"`
		Count  int                     `db:"count"`
	}
	query := `
		SELECT status, COUNT(*) AS count
		FROM appointments
		WHERE clinic_id = $1 AND appointment_date = $2 AND deleted_at IS NULL
		GROUP BY status
	`
	if err := r.tx.SelectContext(ctx, &rows, query, key.ClinicID, key.Date); err != nil {
		return nil, mapError(err, "count appointments by status")
	}
	counts := make(map[model.AppointmentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

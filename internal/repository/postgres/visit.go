package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type visitRepository struct {
	tx *sqlx.Tx
}

const visitColumns = `id, clinic_id, patient_id, appointment_id, doctor_id, visit_number, visit_date,
	symptoms, diagnosis, prescription_notes, created_at, updated_at, deleted_at`

func (r *visitRepository) Create(ctx context.Context, visit *model.Visit) error {
	query := `
		INSERT INTO visits (
			id, clinic_id, patient_id, appointment_id, doctor_id, visit_number, visit_date,
			symptoms, diagnosis, prescription_notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.tx.ExecContext(ctx, query,
		visit.ID,
		visit.ClinicID,
		visit.PatientID,
		visit.AppointmentID,
		visit.DoctorID,
		visit.VisitNumber,
		visit.VisitDate,
		visit.Symptoms,
		visit.Diagnosis,
		visit.PrescriptionNotes,
		visit.CreatedAt,
		visit.UpdatedAt,
	)
	return mapError(err, "create visit")
}

func (r *visitRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Visit, error) {
	var visit model.Visit
	query := `SELECT ` + visitColumns + ` FROM visits WHERE id = $1 AND clinic_id = $2 AND deleted_at IS NULL`
	if err := r.tx.GetContext(ctx, &visit, query, id, clinicID); err != nil {
		return nil, mapError(err, "get visit")
	}
	return &visit, nil
}

func (r *visitRepository) ListByPatient(ctx context.Context, clinicID, patientID uuid.UUID) ([]*model.Visit, error) {
	query := `
		SELECT ` + visitColumns + `
		FROM visits
		WHERE clinic_id = $1 AND patient_id = $2 AND deleted_at IS NULL
		ORDER BY visit_date DESC, visit_number DESC
	`
	visits := []*model.Visit{}
	if err := r.tx.SelectContext(ctx, &visits, query, clinicID, patientID); err != nil {
		return nil, mapError(err, "list patient visits")
	}
	return visits, nil
}

func (r *visitRepository) UpdateNotes(ctx context.Context, visit *model.Visit) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE visits SET symptoms = $1, diagnosis = $2, prescription_notes = $3, updated_at = $4
		WHERE id = $5 AND clinic_id = $6 AND deleted_at IS NULL
	`, visit.Symptoms, visit.Diagnosis, visit.PrescriptionNotes, visit.UpdatedAt, visit.ID, visit.ClinicID)
	if err != nil {
		return mapError(err, "update visit")
	}
	return checkAffected(res, "update visit")
}

func (r *visitRepository) MaxVisitNumber(ctx context.Context, patientID uuid.UUID) (int, error) {
	var max int
	if err := r.tx.GetContext(ctx, &max, `SELECT COALESCE(MAX(visit_number), 0) FROM visits WHERE patient_id = $1`, patientID); err != nil {
		return 0, mapError(err, "get max visit number")
	}
	return max, nil
}

func (r *visitRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Visit, error) {
	var visit model.Visit
	query := `SELECT ` + visitColumns + ` FROM visits WHERE appointment_id = $1`
	if err := r.tx.GetContext(ctx, &visit, query, appointmentID); err != nil {
		return nil, mapError(err, "get visit by appointment")
	}
	return &visit, nil
}

package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type patientRepository struct {
	tx *sqlx.Tx
}

const patientColumns = `id, patient_code, clinic_id, full_name, age, gender, phone, address, blood_group,
	created_by, created_at, updated_at, deleted_at`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, patient_code, clinic_id, full_name, age, gender, phone, address,
			blood_group, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.tx.ExecContext(ctx, query,
		patient.ID,
		patient.PatientCode,
		patient.ClinicID,
		patient.FullName,
		patient.Age,
		patient.Gender,
		patient.Phone,
		patient.Address,
		patient.BloodGroup,
		patient.CreatedBy,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	return mapError(err, "create patient")
}

func (r *patientRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1 AND clinic_id = $2 AND deleted_at IS NULL`
	if err := r.tx.GetContext(ctx, &patient, query, id, clinicID); err != nil {
		return nil, mapError(err, "get patient")
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context, clinicID uuid.UUID, filter model.PatientFilter) ([]*model.Patient, error) {
	page := filter.Pagination.Normalize()
	query := `
		SELECT ` + patientColumns + `
		FROM patients
		WHERE clinic_id = $1 AND deleted_at IS NULL
		  AND ($2 = '' OR full_name ILIKE '%' || $2 || '%' OR patient_code ILIKE '%' || $2 || '%' OR phone LIKE '%' || $2 || '%')
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	patients := []*model.Patient{}
	if err := r.tx.SelectContext(ctx, &patients, query, clinicID, filter.Search, page.Limit, page.Offset); err != nil {
		return nil, mapError(err, "list patients")
	}
	return patients, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET full_name = $1, age = $2, gender = $3, phone = $4, address = $5, blood_group = $6, updated_at = $7
		WHERE id = $8 AND clinic_id = $9 AND deleted_at IS NULL
	`
	res, err := r.tx.ExecContext(ctx, query,
		patient.FullName,
		patient.Age,
		patient.Gender,
		patient.Phone,
		patient.Address,
		patient.BloodGroup,
		patient.UpdatedAt,
		patient.ID,
		patient.ClinicID,
	)
	if err != nil {
		return mapError(err, "update patient")
	}
	return checkAffected(res, "update patient")
}

func (r *patientRepository) SoftDelete(ctx context.Context, clinicID, id uuid.UUID, at time.Time) error {
	res, err := r.tx.ExecContext(ctx,
		`UPDATE patients SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND clinic_id = $3 AND deleted_at IS NULL`,
		at, id, clinicID)
	if err != nil {
		return mapError(err, "delete patient")
	}
	return checkAffected(res, "delete patient")
}

func (r *patientRepository) ListCodes(ctx context.Context, clinicID uuid.UUID) ([]string, error) {
	var codes []string
	if err := r.tx.SelectContext(ctx, &codes, `SELECT patient_code FROM patients WHERE clinic_id = $1`, clinicID); err != nil {
		return nil, mapError(err, "list patient codes")
	}
	return codes, nil
}

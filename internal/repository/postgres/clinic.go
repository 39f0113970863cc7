package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type clinicRepository struct {
	tx *sqlx.Tx
}

const clinicColumns = `id, clinic_code, name, address, phone, email, opd_start_time, opd_end_time,
	owner_doctor_id, created_at, updated_at, deleted_at`

func (r *clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	query := `
		INSERT INTO clinics (
			id, clinic_code, name, address, phone, email,
			opd_start_time, opd_end_time, owner_doctor_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.tx.ExecContext(ctx, query,
		clinic.ID,
		clinic.ClinicCode,
		clinic.Name,
		clinic.Address,
		clinic.Phone,
		clinic.Email,
		clinic.OPDStartTime,
		clinic.OPDEndTime,
		clinic.OwnerDoctorID,
		clinic.CreatedAt,
		clinic.UpdatedAt,
	)
	return mapError(err, "create clinic")
}

func (r *clinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	var clinic model.Clinic
	err := r.tx.GetContext(ctx, &clinic, `SELECT `+clinicColumns+` FROM clinics WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, mapError(err, "get clinic")
	}
	return &clinic, nil
}

func (r *clinicRepository) SetOwner(ctx context.Context, clinicID uuid.UUID, doctorID *uuid.UUID) error {
	res, err := r.tx.ExecContext(ctx,
		`UPDATE clinics SET owner_doctor_id = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`,
		doctorID, clinicID)
	if err != nil {
		return mapError(err, "set clinic owner")
	}
	return checkAffected(res, "set clinic owner")
}

func (r *clinicRepository) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.tx.SelectContext(ctx, &codes, `SELECT clinic_code FROM clinics`); err != nil {
		return nil, mapError(err, "list clinic codes")
	}
	return codes, nil
}

func (r *clinicRepository) AddAdmin(ctx context.Context, adminID, clinicID uuid.UUID) error {
	_, err := r.tx.ExecContext(ctx,
		`INSERT INTO clinic_admins (admin_id, clinic_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		adminID, clinicID)
	return mapError(err, "add clinic admin")
}

func (r *clinicRepository) IsAdmin(ctx context.Context, adminID, clinicID uuid.UUID) (bool, error) {
	var exists bool
	err := r.tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM clinic_admins WHERE admin_id = $1 AND clinic_id = $2)`,
		adminID, clinicID)
	if err != nil {
		return false, mapError(err, "check clinic admin")
	}
	return exists, nil
}

func (r *clinicRepository) ListByAdmin(ctx context.Context, adminID uuid.UUID) ([]*model.Clinic, error) {
	query := `
		SELECT c.id, c.clinic_code, c.name, c.address, c.phone, c.email, c.opd_start_time, c.opd_end_time,
			c.owner_doctor_id, c.created_at, c.updated_at, c.deleted_at
		FROM clinics c
		JOIN clinic_admins ca ON ca.clinic_id = c.id
		WHERE ca.admin_id = $1 AND c.deleted_at IS NULL
		ORDER BY c.clinic_code
	`
	var clinics []*model.Clinic
	if err := r.tx.SelectContext(ctx, &clinics, query, adminID); err != nil {
		return nil, mapError(err, "list admin clinics")
	}
	return clinics, nil
}

package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type permissionRepository struct {
	tx *sqlx.Tx
}

const permissionColumns = `id, user_id, clinic_id,
	can_view_patients, can_create_patients, can_edit_patients, can_delete_patients,
	can_view_opd, can_manage_opd,
	can_view_visits, can_create_visits, can_edit_visits,
	can_view_invoices, can_create_invoices, can_edit_invoices, can_view_collections,
	can_manage_clinic_options, can_edit_print_settings,
	created_at, updated_at`

func (r *permissionRepository) Get(ctx context.Context, userID, clinicID uuid.UUID) (*model.UserPermission, error) {
	var perm model.UserPermission
	query := `SELECT ` + permissionColumns + ` FROM user_permissions WHERE user_id = $1 AND clinic_id = $2`
	if err := r.tx.GetContext(ctx, &perm, query, userID, clinicID); err != nil {
		return nil, mapError(err, "get user permissions")
	}
	return &perm, nil
}

// Upsert writes every capability column; the row id and created_at of an
// existing row are kept.
func (r *permissionRepository) Upsert(ctx context.Context, perm *model.UserPermission) error {
	query := `
		INSERT INTO user_permissions (` + permissionColumns + `) VALUES (
			:id, :user_id, :clinic_id,
			:can_view_patients, :can_create_patients, :can_edit_patients, :can_delete_patients,
			:can_view_opd, :can_manage_opd,
			:can_view_visits, :can_create_visits, :can_edit_visits,
			:can_view_invoices, :can_create_invoices, :can_edit_invoices, :can_view_collections,
			:can_manage_clinic_options, :can_edit_print_settings,
			:created_at, :updated_at
		)
		ON CONFLICT (user_id, clinic_id) DO UPDATE SET
			can_view_patients = EXCLUDED.can_view_patients,
			can_create_patients = EXCLUDED.can_create_patients,
			can_edit_patients = EXCLUDED.can_edit_patients,
			can_delete_patients = EXCLUDED.can_delete_patients,
			can_view_opd = EXCLUDED.can_view_opd,
			can_manage_opd = EXCLUDED.can_manage_opd,
			can_view_visits = EXCLUDED.can_view_visits,
			can_create_visits = EXCLUDED.can_create_visits,
			can_edit_visits = EXCLUDED.can_edit_visits,
			can_view_invoices = EXCLUDED.can_view_invoices,
			can_create_invoices = EXCLUDED.can_create_invoices,
			can_edit_invoices = EXCLUDED.can_edit_invoices,
			can_view_collections = EXCLUDED.can_view_collections,
			can_manage_clinic_options = EXCLUDED.can_manage_clinic_options,
			can_edit_print_settings = EXCLUDED.can_edit_print_settings,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	query, args, err := r.tx.BindNamed(query, perm)
	if err != nil {
		return mapError(err, "bind user permissions")
	}
	if err := r.tx.QueryRowxContext(ctx, query, args...).Scan(&perm.ID, &perm.CreatedAt); err != nil {
		return mapError(err, "upsert user permissions")
	}
	return nil
}

func (r *permissionRepository) Delete(ctx context.Context, userID, clinicID uuid.UUID) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM user_permissions WHERE user_id = $1 AND clinic_id = $2`, userID, clinicID)
	return mapError(err, "delete user permissions")
}

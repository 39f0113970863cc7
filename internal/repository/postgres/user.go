package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type userRepository struct {
	tx *sqlx.Tx
}

const userColumns = `id, email, password_hash, role, full_name, phone, is_active, clinic_id,
	created_at, updated_at, deleted_at`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, role, full_name, phone, is_active, clinic_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.tx.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.FullName,
		user.Phone,
		user.IsActive,
		user.ClinicID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return mapError(err, "create user")
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.tx.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return nil, mapError(err, "get user")
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.tx.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email); err != nil {
		return nil, mapError(err, "get user by email")
	}
	return &user, nil
}

func (r *userRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.User, error) {
	var users []*model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE clinic_id = $1 AND deleted_at IS NULL ORDER BY created_at`
	if err := r.tx.SelectContext(ctx, &users, query, clinicID); err != nil {
		return nil, mapError(err, "list clinic users")
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE users SET full_name = $1, phone = $2, is_active = $3, updated_at = $4
		WHERE id = $5 AND deleted_at IS NULL
	`, user.FullName, user.Phone, user.IsActive, user.UpdatedAt, user.ID)
	if err != nil {
		return mapError(err, "update user")
	}
	return checkAffected(res, "update user")
}

type doctorRepository struct {
	tx *sqlx.Tx
}

const doctorColumns = `id, doctor_code, user_id, clinic_id, specialization, qualification, registration_number,
	created_at, updated_at, deleted_at`

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (
			id, doctor_code, user_id, clinic_id, specialization, qualification,
			registration_number, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.tx.ExecContext(ctx, query,
		doctor.ID,
		doctor.DoctorCode,
		doctor.UserID,
		doctor.ClinicID,
		doctor.Specialization,
		doctor.Qualification,
		doctor.RegistrationNumber,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	)
	return mapError(err, "create doctor")
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	var doctor model.Doctor
	if err := r.tx.GetContext(ctx, &doctor, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "get doctor")
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	var doctor model.Doctor
	if err := r.tx.GetContext(ctx, &doctor, `SELECT `+doctorColumns+` FROM doctors WHERE user_id = $1`, userID); err != nil {
		return nil, mapError(err, "get doctor by user")
	}
	return &doctor, nil
}

func (r *doctorRepository) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.tx.SelectContext(ctx, &codes, `SELECT doctor_code FROM doctors`); err != nil {
		return nil, mapError(err, "list doctor codes")
	}
	return codes, nil
}

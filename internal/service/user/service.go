// Package user provisions clinic staff accounts and resolves
// authenticated principals.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/code"
	"github.com/jwalitptl/clinic-api/internal/service/permission"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

// Account is what Provision needs to create a member of a clinic.
type Account struct {
	Email              string
	PasswordHash       string
	FullName           string
	Phone              string
	Role               model.Role
	Specialization     string
	Qualification      string
	RegistrationNumber string
	// Owner marks the new doctor as clinic owner: no permission row is
	// written for owners.
	Owner bool
}

type Service struct {
	store     repository.Store
	allocator *code.Allocator
	hasher    security.PasswordHasher
	mailer    email.Service
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(store repository.Store, allocator *code.Allocator, hasher security.PasswordHasher, mailer email.Service, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		allocator: allocator,
		hasher:    hasher,
		mailer:    mailer,
		logger:    log,
		now:       time.Now,
	}
}

// HashPassword is exposed so callers hash outside of any transaction.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, security.ErrPasswordTooShort) {
		return "", apperrors.InvalidArgument(err.Error())
	}
	return hash, err
}

// Provision creates the user, its doctor record with a DR code when the
// role is DOCTOR, and, for non-owners, the permission row populated from
// role defaults. It runs inside the caller's transaction.
func (s *Service) Provision(ctx context.Context, tx repository.Tx, clinicID uuid.UUID, in Account) (*model.User, *model.Doctor, error) {
	emailAddr := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := tx.Users().GetByEmail(ctx, emailAddr); err == nil {
		return nil, nil, apperrors.Conflict("email already exists", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to check email: %w", err)
	}

	now := s.now()
	cid := clinicID
	user := &model.User{
		Base:         model.NewBase(now),
		Email:        emailAddr,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		FullName:     in.FullName,
		Phone:        in.Phone,
		IsActive:     true,
		ClinicID:     &cid,
	}
	if err := tx.Users().Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	var doctor *model.Doctor
	if in.Role == model.RoleDoctor {
		doctorCode, err := s.allocator.Allocate(ctx, tx, code.Doctor, clinicID)
		if err != nil {
			return nil, nil, err
		}
		doctor = &model.Doctor{
			Base:               model.NewBase(now),
			DoctorCode:         doctorCode,
			UserID:             user.ID,
			ClinicID:           clinicID,
			Specialization:     in.Specialization,
			Qualification:      in.Qualification,
			RegistrationNumber: in.RegistrationNumber,
		}
		if err := tx.Doctors().Create(ctx, doctor); err != nil {
			return nil, nil, fmt.Errorf("failed to create doctor: %w", err)
		}
	}

	if !in.Owner {
		if err := tx.Permissions().Upsert(ctx, model.NewUserPermission(user.ID, clinicID, in.Role, now)); err != nil {
			return nil, nil, fmt.Errorf("failed to create permissions: %w", err)
		}
	}
	return user, doctor, nil
}

// Welcome mails a new member. Failures are logged, never returned.
func (s *Service) Welcome(ctx context.Context, user *model.User, clinicName string) {
	if err := s.mailer.SendWelcome(ctx, user.Email, user.FullName, clinicName); err != nil {
		s.logger.Error(err, "failed to send welcome email", "user_id", user.ID.String())
	}
}

// CreateUser adds a DOCTOR or ASSISTANT to the owner's clinic.
func (s *Service) CreateUser(ctx context.Context, actor *model.Principal, req *model.CreateUserRequest) (*model.User, error) {
	if req.Role != model.RoleDoctor && req.Role != model.RoleAssistant {
		return nil, apperrors.InvalidArgument("role must be DOCTOR or ASSISTANT")
	}
	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	var (
		user   *model.User
		clinic *model.Clinic
	)
	err = s.allocator.InTx(ctx, code.Doctor, func(tx repository.Tx) error {
		if err := permission.CheckOwner(ctx, tx, actor); err != nil {
			return err
		}
		var err error
		if clinic, err = tx.Clinics().Get(ctx, *actor.ClinicID); err != nil {
			return fmt.Errorf("failed to get clinic: %w", err)
		}
		user, _, err = s.Provision(ctx, tx, clinic.ID, Account{
			Email:          req.Email,
			PasswordHash:   hash,
			FullName:       req.FullName,
			Phone:          req.Phone,
			Role:           req.Role,
			Specialization: req.Specialization,
			Qualification:  req.Qualification,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("staff user created", "user_id", user.ID.String(), "clinic_id", clinic.ID.String(), "role", string(user.Role))
	s.Welcome(ctx, user, clinic.Name)
	return user, nil
}

// ListUsers lists the members of the owner's clinic.
func (s *Service) ListUsers(ctx context.Context, actor *model.Principal) ([]*model.User, error) {
	var users []*model.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := permission.CheckOwner(ctx, tx, actor); err != nil {
			return err
		}
		var err error
		users, err = tx.Users().ListByClinic(ctx, *actor.ClinicID)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		return nil
	})
	return users, err
}

// UpdateUser edits a member of the owner's clinic. Users of other clinics
// are not found, and owners cannot deactivate themselves.
func (s *Service) UpdateUser(ctx context.Context, actor *model.Principal, userID uuid.UUID, req *model.UpdateUserRequest) (*model.User, error) {
	if req.FullName == nil && req.Phone == nil && req.IsActive == nil {
		return nil, apperrors.InvalidArgument("no fields to update")
	}
	if req.IsActive != nil && !*req.IsActive && actor != nil && actor.UserID == userID {
		return nil, apperrors.InvalidArgument("cannot deactivate your own account")
	}

	var user *model.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := permission.CheckOwner(ctx, tx, actor); err != nil {
			return err
		}
		var err error
		user, err = tx.Users().Get(ctx, userID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil || user.ClinicID == nil || *user.ClinicID != *actor.ClinicID {
			return apperrors.NotFound("user", repository.ErrNotFound)
		}

		if req.FullName != nil {
			user.FullName = *req.FullName
		}
		if req.Phone != nil {
			user.Phone = *req.Phone
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}
		user.UpdatedAt = s.now()
		if err := tx.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("staff user updated", "user_id", user.ID.String(), "active", user.IsActive)
	return user, nil
}

// DeactivateUser locks a member out of the clinic. The account and its
// history are kept.
func (s *Service) DeactivateUser(ctx context.Context, actor *model.Principal, userID uuid.UUID) (*model.User, error) {
	inactive := false
	return s.UpdateUser(ctx, actor, userID, &model.UpdateUserRequest{IsActive: &inactive})
}

// Principal resolves an authenticated user id. Unknown or inactive users
// are Unauthorized.
func (s *Service) Principal(ctx context.Context, userID uuid.UUID) (*model.Principal, error) {
	var p *model.Principal
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		user, err := tx.Users().Get(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.Unauthorized(err)
		}
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if !user.IsActive {
			return apperrors.Unauthorized(errors.New("user is inactive"))
		}
		p = &model.Principal{UserID: user.ID, Email: user.Email, Role: user.Role, ClinicID: user.ClinicID}
		if user.Role == model.RoleDoctor {
			doctor, err := tx.Doctors().GetByUser(ctx, user.ID)
			switch {
			case err == nil:
				p.DoctorID = &doctor.ID
			case !errors.Is(err, repository.ErrNotFound):
				return fmt.Errorf("failed to get doctor: %w", err)
			}
		}
		return nil
	})
	return p, err
}

// Package clinic manages clinics on behalf of administrators and exposes
// the clinic to its members.
package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/code"
	"github.com/jwalitptl/clinic-api/internal/service/permission"
	"github.com/jwalitptl/clinic-api/internal/service/user"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

type Service struct {
	store     repository.Store
	allocator *code.Allocator
	users     *user.Service
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(store repository.Store, allocator *code.Allocator, users *user.Service, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		allocator: allocator,
		users:     users,
		logger:    log,
		now:       time.Now,
	}
}

func requireAdmin(p *model.Principal) error {
	if p == nil || p.Role != model.RoleAdmin {
		return apperrors.Forbidden("admin access required")
	}
	return nil
}

// managed loads a clinic the admin manages. Other clinics are not found.
func managed(ctx context.Context, tx repository.Tx, admin *model.Principal, clinicID uuid.UUID) (*model.Clinic, error) {
	ok, err := tx.Clinics().IsAdmin(ctx, admin.UserID, clinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to check clinic admin: %w", err)
	}
	if !ok {
		return nil, apperrors.NotFound("clinic", repository.ErrNotFound)
	}
	clinic, err := tx.Clinics().Get(ctx, clinicID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("clinic", err)
		}
		return nil, fmt.Errorf("failed to get clinic: %w", err)
	}
	return clinic, nil
}

// CreateClinic creates a clinic with the next CL code and makes the
// caller its administrator. The clinic has no owner until its first
// doctor is added.
func (s *Service) CreateClinic(ctx context.Context, admin *model.Principal, req *model.CreateClinicRequest) (*model.Clinic, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}

	var clinic *model.Clinic
	err := s.allocator.InTx(ctx, code.Clinic, func(tx repository.Tx) error {
		clinicCode, err := s.allocator.Allocate(ctx, tx, code.Clinic, uuid.Nil)
		if err != nil {
			return err
		}
		clinic = &model.Clinic{
			Base:         model.NewBase(s.now()),
			ClinicCode:   clinicCode,
			Name:         req.Name,
			Address:      req.Address,
			Phone:        req.Phone,
			Email:        req.Email,
			OPDStartTime: req.OPDStartTime,
			OPDEndTime:   req.OPDEndTime,
		}
		if err := tx.Clinics().Create(ctx, clinic); err != nil {
			return fmt.Errorf("failed to create clinic: %w", err)
		}
		if err := tx.Clinics().AddAdmin(ctx, admin.UserID, clinic.ID); err != nil {
			return fmt.Errorf("failed to link clinic admin: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("clinic created", "clinic_id", clinic.ID.String(), "clinic_code", clinic.ClinicCode)
	return clinic, nil
}

func (s *Service) ListClinics(ctx context.Context, admin *model.Principal) ([]*model.Clinic, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	var clinics []*model.Clinic
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		clinics, err = tx.Clinics().ListByAdmin(ctx, admin.UserID)
		if err != nil {
			return fmt.Errorf("failed to list clinics: %w", err)
		}
		return nil
	})
	return clinics, err
}

// AddDoctor creates a doctor account in a managed clinic. The first doctor
// of an ownerless clinic becomes its owner.
func (s *Service) AddDoctor(ctx context.Context, admin *model.Principal, clinicID uuid.UUID, req *model.AddDoctorRequest) (*model.DoctorAccount, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	hash, err := s.users.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	var (
		account *model.DoctorAccount
		clinic  *model.Clinic
	)
	err = s.allocator.InTx(ctx, code.Doctor, func(tx repository.Tx) error {
		var err error
		if clinic, err = managed(ctx, tx, admin, clinicID); err != nil {
			return err
		}
		owner := clinic.OwnerDoctorID == nil
		u, doctor, err := s.users.Provision(ctx, tx, clinic.ID, user.Account{
			Email:              req.Email,
			PasswordHash:       hash,
			FullName:           req.FullName,
			Phone:              req.Phone,
			Role:               model.RoleDoctor,
			Specialization:     req.Specialization,
			Qualification:      req.Qualification,
			RegistrationNumber: req.RegistrationNumber,
			Owner:              owner,
		})
		if err != nil {
			return err
		}
		if owner {
			if err := tx.Clinics().SetOwner(ctx, clinic.ID, &doctor.ID); err != nil {
				return fmt.Errorf("failed to set clinic owner: %w", err)
			}
		}
		account = &model.DoctorAccount{User: u, Doctor: doctor, IsOwner: owner}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("doctor added to clinic",
		"clinic_id", clinic.ID.String(),
		"doctor_code", account.Doctor.DoctorCode,
		"owner", account.IsOwner)
	s.users.Welcome(ctx, account.User, clinic.Name)
	return account, nil
}

// AssignOwner makes doctorID the owner of a managed clinic. The doctor
// must belong to that clinic. The new owner's permission row is removed
// and the previous owner gets one populated from role defaults.
func (s *Service) AssignOwner(ctx context.Context, admin *model.Principal, clinicID, doctorID uuid.UUID) (*model.Clinic, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}

	var clinic *model.Clinic
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		if clinic, err = managed(ctx, tx, admin, clinicID); err != nil {
			return err
		}
		doctor, err := tx.Doctors().Get(ctx, doctorID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("doctor", err)
		}
		if err != nil {
			return fmt.Errorf("failed to get doctor: %w", err)
		}
		if doctor.ClinicID != clinic.ID {
			return apperrors.InvalidArgument("doctor does not belong to this clinic")
		}
		if clinic.OwnerDoctorID != nil && *clinic.OwnerDoctorID == doctor.ID {
			return nil
		}

		now := s.now()
		if clinic.OwnerDoctorID != nil {
			previous, err := tx.Doctors().Get(ctx, *clinic.OwnerDoctorID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("failed to get previous owner: %w", err)
			}
			if previous != nil {
				perm := model.NewUserPermission(previous.UserID, clinic.ID, model.RoleDoctor, now)
				if err := tx.Permissions().Upsert(ctx, perm); err != nil {
					return fmt.Errorf("failed to create permissions: %w", err)
				}
			}
		}
		if err := tx.Permissions().Delete(ctx, doctor.UserID, clinic.ID); err != nil {
			return fmt.Errorf("failed to remove permissions: %w", err)
		}
		if err := tx.Clinics().SetOwner(ctx, clinic.ID, &doctor.ID); err != nil {
			return fmt.Errorf("failed to set clinic owner: %w", err)
		}
		clinic.OwnerDoctorID = &doctor.ID
		clinic.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clinic, nil
}

// GetClinic returns the caller's own clinic.
func (s *Service) GetClinic(ctx context.Context, p *model.Principal) (*model.ClinicView, error) {
	if p == nil || p.ClinicID == nil {
		return nil, apperrors.NotFound("clinic", repository.ErrNotFound)
	}
	var view *model.ClinicView
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		clinic, err := tx.Clinics().Get(ctx, *p.ClinicID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("clinic", err)
		}
		if err != nil {
			return fmt.Errorf("failed to get clinic: %w", err)
		}
		owner, err := permission.IsOwner(ctx, tx, p.UserID, clinic.ID)
		if err != nil {
			return err
		}
		view = &model.ClinicView{Clinic: clinic, IsOwner: owner}
		return nil
	})
	return view, err
}

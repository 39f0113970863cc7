// Package permission decides whether a user may exercise a capability in a
// clinic and administers the per-user override rows.
package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Resolution tiers, also used as metric labels.
const (
	tierOwner    = "owner"
	tierExplicit = "explicit"
	tierDefault  = "role_default"
	tierNone     = "not_member"
)

const ErrMsgInsufficient = "insufficient permission"

type Service struct {
	store   repository.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(store repository.Store, m *metrics.Metrics) *Service {
	return &Service{store: store, metrics: m, now: time.Now}
}

// IsOwner reports whether userID is the owner doctor of clinicID.
func IsOwner(ctx context.Context, tx repository.Tx, userID, clinicID uuid.UUID) (bool, error) {
	clinic, err := tx.Clinics().Get(ctx, clinicID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get clinic: %w", err)
	}
	if clinic.OwnerDoctorID == nil {
		return false, nil
	}
	doctor, err := tx.Doctors().GetByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get doctor: %w", err)
	}
	return doctor.ID == *clinic.OwnerDoctorID && doctor.ClinicID == clinicID, nil
}

// resolve applies owner bypass, then the explicit row, then the role
// default. Users outside the clinic resolve to false.
func resolve(ctx context.Context, tx repository.Tx, userID, clinicID uuid.UUID, c model.Capability) (bool, string, error) {
	user, err := tx.Users().Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, tierNone, nil
	}
	if err != nil {
		return false, "", fmt.Errorf("failed to get user: %w", err)
	}
	if user.ClinicID == nil || *user.ClinicID != clinicID || !user.IsActive {
		return false, tierNone, nil
	}

	if user.Role == model.RoleDoctor {
		owner, err := IsOwner(ctx, tx, userID, clinicID)
		if err != nil {
			return false, "", err
		}
		if owner {
			return true, tierOwner, nil
		}
	}

	perm, err := tx.Permissions().Get(ctx, userID, clinicID)
	switch {
	case err == nil:
		return perm.Allows(c), tierExplicit, nil
	case errors.Is(err, repository.ErrNotFound):
		return model.RoleDefault(user.Role, c), tierDefault, nil
	default:
		return false, "", fmt.Errorf("failed to get permissions: %w", err)
	}
}

// Can reports whether the user may exercise c in the clinic.
func (s *Service) Can(ctx context.Context, userID, clinicID uuid.UUID, c model.Capability) (bool, error) {
	var (
		allowed bool
		tier    string
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		allowed, tier, err = resolve(ctx, tx, userID, clinicID, c)
		return err
	})
	if err != nil {
		return false, err
	}
	result := "deny"
	if allowed {
		result = "allow"
	}
	s.metrics.PermissionChecks.WithLabelValues(tier, result).Inc()
	return allowed, nil
}

// Require is Can for request handling: a denial becomes a Forbidden error.
func (s *Service) Require(ctx context.Context, p *model.Principal, c model.Capability) error {
	if p == nil || p.ClinicID == nil {
		return apperrors.Forbidden(ErrMsgInsufficient)
	}
	ok, err := s.Can(ctx, p.UserID, *p.ClinicID, c)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !ok {
		return apperrors.Forbidden(ErrMsgInsufficient)
	}
	return nil
}

// RequireOwner fails with Forbidden unless p owns its clinic.
func (s *Service) RequireOwner(ctx context.Context, p *model.Principal) error {
	return s.store.WithTx(ctx, func(tx repository.Tx) error {
		return CheckOwner(ctx, tx, p)
	})
}

// CheckOwner is RequireOwner inside an existing transaction.
func CheckOwner(ctx context.Context, tx repository.Tx, p *model.Principal) error {
	if p == nil || p.ClinicID == nil || p.Role != model.RoleDoctor {
		return apperrors.Forbidden("only the clinic owner can do this")
	}
	owner, err := IsOwner(ctx, tx, p.UserID, *p.ClinicID)
	if err != nil {
		return err
	}
	if !owner {
		return apperrors.Forbidden("only the clinic owner can do this")
	}
	return nil
}

// Effective returns the caller's own resolved capability set.
func (s *Service) Effective(ctx context.Context, p *model.Principal) (*model.PermissionView, error) {
	var view *model.PermissionView
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		view, err = viewOf(ctx, tx, p.Clinic(), p.UserID)
		return err
	})
	return view, err
}

// ListClinicUsers lists the staff of the actor's clinic. Owner only.
func (s *Service) ListClinicUsers(ctx context.Context, actor *model.Principal) ([]*model.ClinicUser, error) {
	var out []*model.ClinicUser
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := CheckOwner(ctx, tx, actor); err != nil {
			return err
		}
		users, err := tx.Users().ListByClinic(ctx, *actor.ClinicID)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		for _, u := range users {
			owner := false
			if u.Role == model.RoleDoctor {
				if owner, err = IsOwner(ctx, tx, u.ID, *actor.ClinicID); err != nil {
					return err
				}
			}
			out = append(out, &model.ClinicUser{
				UserID:   u.ID,
				Email:    u.Email,
				FullName: u.FullName,
				Role:     u.Role,
				IsActive: u.IsActive,
				IsOwner:  owner,
			})
		}
		return nil
	})
	return out, err
}

// Get shows the target's permissions. Without an explicit row the role
// defaults are returned with Explicit false.
func (s *Service) Get(ctx context.Context, actor *model.Principal, userID uuid.UUID) (*model.PermissionView, error) {
	var view *model.PermissionView
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := CheckOwner(ctx, tx, actor); err != nil {
			return err
		}
		var err error
		view, err = viewOf(ctx, tx, *actor.ClinicID, userID)
		return err
	})
	return view, err
}

// Update applies a partial set of capability values to the target's row.
func (s *Service) Update(ctx context.Context, actor *model.Principal, userID uuid.UUID, changes map[string]bool) (*model.PermissionView, error) {
	if len(changes) == 0 {
		return nil, apperrors.InvalidArgument("no capabilities given")
	}
	parsed := make(map[model.Capability]bool, len(changes))
	for name, v := range changes {
		c, err := model.ParseCapability(name)
		if err != nil {
			return nil, apperrors.InvalidArgument(err.Error())
		}
		parsed[c] = v
	}

	return s.mutate(ctx, actor, userID, func(perm *model.UserPermission, _ model.Role) error {
		for c, v := range parsed {
			if err := perm.Set(c, v); err != nil {
				return apperrors.InvalidArgument(err.Error())
			}
		}
		return nil
	})
}

// Reset overwrites every field of the target's row with the role defaults.
func (s *Service) Reset(ctx context.Context, actor *model.Principal, userID uuid.UUID) (*model.PermissionView, error) {
	return s.mutate(ctx, actor, userID, func(perm *model.UserPermission, role model.Role) error {
		perm.ApplyDefaults(role)
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, actor *model.Principal, userID uuid.UUID, apply func(*model.UserPermission, model.Role) error) (*model.PermissionView, error) {
	var view *model.PermissionView
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := CheckOwner(ctx, tx, actor); err != nil {
			return err
		}
		clinicID := *actor.ClinicID
		user, err := memberOf(ctx, tx, clinicID, userID)
		if err != nil {
			return err
		}
		if user.Role == model.RoleDoctor {
			owner, err := IsOwner(ctx, tx, user.ID, clinicID)
			if err != nil {
				return err
			}
			if owner {
				return apperrors.Forbidden("cannot modify owner permissions")
			}
		}

		now := s.now()
		perm, err := tx.Permissions().Get(ctx, user.ID, clinicID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			perm = model.NewUserPermission(user.ID, clinicID, user.Role, now)
		case err != nil:
			return fmt.Errorf("failed to get permissions: %w", err)
		}
		if err := apply(perm, user.Role); err != nil {
			return err
		}
		perm.UpdatedAt = now
		if err := tx.Permissions().Upsert(ctx, perm); err != nil {
			return fmt.Errorf("failed to save permissions: %w", err)
		}
		view = &model.PermissionView{
			UserID:       user.ID,
			ClinicID:     clinicID,
			Role:         user.Role,
			Explicit:     true,
			Capabilities: perm.Capabilities(),
		}
		return nil
	})
	return view, err
}

// memberOf loads a user of the clinic; users of other clinics are not found.
func memberOf(ctx context.Context, tx repository.Tx, clinicID, userID uuid.UUID) (*model.User, error) {
	user, err := tx.Users().Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.ClinicID == nil || *user.ClinicID != clinicID {
		return nil, apperrors.NotFound("user", repository.ErrNotFound)
	}
	return user, nil
}

func viewOf(ctx context.Context, tx repository.Tx, clinicID, userID uuid.UUID) (*model.PermissionView, error) {
	user, err := memberOf(ctx, tx, clinicID, userID)
	if err != nil {
		return nil, err
	}
	view := &model.PermissionView{UserID: user.ID, ClinicID: clinicID, Role: user.Role}

	if user.Role == model.RoleDoctor {
		if view.IsOwner, err = IsOwner(ctx, tx, user.ID, clinicID); err != nil {
			return nil, err
		}
	}
	if view.IsOwner {
		view.Capabilities = model.FullCapabilities()
		return view, nil
	}

	perm, err := tx.Permissions().Get(ctx, user.ID, clinicID)
	switch {
	case err == nil:
		view.Explicit = true
		view.Capabilities = perm.Capabilities()
	case errors.Is(err, repository.ErrNotFound):
		view.Capabilities = model.DefaultCapabilities(user.Role)
	default:
		return nil, fmt.Errorf("failed to get permissions: %w", err)
	}
	return view, nil
}

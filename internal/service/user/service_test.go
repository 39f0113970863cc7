package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/code"
	"github.com/jwalitptl/clinic-api/internal/testutil"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

type fakeMailer struct {
	sent []string
}

func (f *fakeMailer) SendWelcome(_ context.Context, to, _, _ string) error {
	f.sent = append(f.sent, to)
	return nil
}

func setup(t *testing.T) (*Service, *testutil.Clinic, *fakeMailer) {
	t.Helper()
	store := memory.NewStore()
	mailer := &fakeMailer{}
	alloc := code.NewAllocator(store, 3, logger.Nop(), metrics.NewNop())
	svc := NewService(store, alloc, security.NewBcryptHasher(bcrypt.MinCost), mailer, logger.Nop())
	return svc, testutil.SeedClinic(t, store, "sunrise"), mailer
}

func newRequest(role model.Role) *model.CreateUserRequest {
	return &model.CreateUserRequest{
		Email:    uuid.NewString()[:8] + "@Clinic.Test",
		Password: "s3cret-pass",
		FullName: "New Member",
		Role:     role,
	}
}

func TestCreateAssistantMaterializesPermissions(t *testing.T) {
	svc, c, mailer := setup(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, c.Principal(c.Owner), newRequest(model.RoleAssistant))
	require.NoError(t, err)
	assert.Equal(t, model.RoleAssistant, u.Role)
	assert.Equal(t, c.Clinic.ID, *u.ClinicID)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
	assert.Equal(t, []string{u.Email}, mailer.sent)

	require.NoError(t, c.Store.WithTx(ctx, func(tx repository.Tx) error {
		perm, err := tx.Permissions().Get(ctx, u.ID, c.Clinic.ID)
		require.NoError(t, err)
		assert.Equal(t, model.DefaultCapabilities(model.RoleAssistant), perm.Capabilities())
		_, err = tx.Doctors().GetByUser(ctx, u.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	}))
}

func TestCreateDoctorAllocatesGlobalCode(t *testing.T) {
	svc, c, _ := setup(t)
	other := testutil.SeedClinic(t, c.Store, "other")
	ctx := context.Background()

	first, err := svc.CreateUser(ctx, c.Principal(c.Owner), newRequest(model.RoleDoctor))
	require.NoError(t, err)
	second, err := svc.CreateUser(ctx, other.Principal(other.Owner), newRequest(model.RoleDoctor))
	require.NoError(t, err)

	require.NoError(t, c.Store.WithTx(ctx, func(tx repository.Tx) error {
		d1, err := tx.Doctors().GetByUser(ctx, first.ID)
		require.NoError(t, err)
		d2, err := tx.Doctors().GetByUser(ctx, second.ID)
		require.NoError(t, err)
		// seeded owners carry non-numeric codes, so the series starts at 1
		assert.Equal(t, "DR-0001", d1.DoctorCode)
		assert.Equal(t, "DR-0002", d2.DoctorCode)
		return nil
	}))
}

func TestCreateUserRules(t *testing.T) {
	svc, c, _ := setup(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, c.Principal(c.Assistant), newRequest(model.RoleAssistant))
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = svc.CreateUser(ctx, c.Principal(c.Owner), newRequest(model.RoleAdmin))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidArgument))

	req := newRequest(model.RoleAssistant)
	_, err = svc.CreateUser(ctx, c.Principal(c.Owner), req)
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, c.Principal(c.Owner), req)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestPrincipal(t *testing.T) {
	svc, c, _ := setup(t)
	ctx := context.Background()

	p, err := svc.Principal(ctx, c.Owner.ID)
	require.NoError(t, err)
	assert.Equal(t, c.OwnerDoc.ID, *p.DoctorID)
	assert.Equal(t, c.Clinic.ID, p.Clinic())

	_, err = svc.Principal(ctx, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestListUsers(t *testing.T) {
	svc, c, _ := setup(t)
	users, err := svc.ListUsers(context.Background(), c.Principal(c.Owner))
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestUpdateAndDeactivateUser(t *testing.T) {
	store := memory.NewStore()
	alloc := code.NewAllocator(store, 3, logger.Nop(), metrics.NewNop())
	svc := NewService(store, alloc, security.NewBcryptHasher(bcrypt.MinCost), &fakeMailer{}, logger.Nop())
	c := testutil.SeedClinic(t, store, "sunrise")
	other := testutil.SeedClinic(t, store, "other")
	ctx := context.Background()
	owner := c.Principal(c.Owner)

	name := "Renamed Assistant"
	u, err := svc.UpdateUser(ctx, owner, c.Assistant.ID, &model.UpdateUserRequest{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Assistant", u.FullName)
	assert.True(t, u.IsActive)

	_, err = svc.UpdateUser(ctx, owner, c.Assistant.ID, &model.UpdateUserRequest{})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidArgument))
	_, err = svc.DeactivateUser(ctx, owner, c.Owner.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidArgument))
	_, err = svc.DeactivateUser(ctx, owner, other.Assistant.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = svc.DeactivateUser(ctx, c.Principal(c.Assistant), c.Owner.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = svc.Principal(ctx, c.Assistant.ID)
	require.NoError(t, err)
	u, err = svc.DeactivateUser(ctx, owner, c.Assistant.ID)
	require.NoError(t, err)
	assert.False(t, u.IsActive)
	_, err = svc.Principal(ctx, c.Assistant.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	users, err := svc.ListUsers(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

package patient

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/code"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func newService() *Service {
	store := memory.NewStore()
	return NewService(store, code.NewAllocator(store, 3, logger.Nop(), metrics.NewNop()))
}

func TestPatientLifecycle(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	clinicID, other := uuid.New(), uuid.New()

	var created []*model.Patient
	for _, name := range []string{"Asha Rao", "Vikram Shah", "Meera Iyer"} {
		p, err := svc.CreatePatient(ctx, clinicID, uuid.New(), &model.CreatePatientRequest{FullName: name, Phone: "98200"})
		require.NoError(t, err)
		created = append(created, p)
	}
	assert.Equal(t, "PT-0001", created[0].PatientCode)
	assert.Equal(t, "PT-0003", created[2].PatientCode)

	got, err := svc.GetPatient(ctx, clinicID, created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Vikram Shah", got.FullName)

	_, err = svc.GetPatient(ctx, other, created[1].ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	list, err := svc.ListPatients(ctx, clinicID, model.PatientFilter{Search: "meera"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created[2].ID, list[0].ID)

	require.NoError(t, svc.DeletePatient(ctx, clinicID, created[2].ID))
	assert.True(t, apperrors.Is(svc.DeletePatient(ctx, clinicID, created[2].ID), apperrors.ErrNotFound))

	next, err := svc.CreatePatient(ctx, clinicID, uuid.New(), &model.CreatePatientRequest{FullName: "Late Arrival"})
	require.NoError(t, err)
	assert.Equal(t, "PT-0004", next.PatientCode)

	list, err = svc.ListPatients(ctx, clinicID, model.PatientFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestUpdatePatient(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	clinicID := uuid.New()
	age := 41

	p, err := svc.CreatePatient(ctx, clinicID, uuid.New(), &model.CreatePatientRequest{FullName: "Asha Rao", Phone: "98200"})
	require.NoError(t, err)

	name, phone := "Asha R. Rao", "98201"
	updated, err := svc.UpdatePatient(ctx, clinicID, p.ID, &model.UpdatePatientRequest{FullName: &name, Phone: &phone, Age: &age})
	require.NoError(t, err)
	assert.Equal(t, "Asha R. Rao", updated.FullName)
	assert.Equal(t, p.PatientCode, updated.PatientCode)

	got, err := svc.GetPatient(ctx, clinicID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "98201", got.Phone)
	require.NotNil(t, got.Age)
	assert.Equal(t, 41, *got.Age)

	_, err = svc.UpdatePatient(ctx, clinicID, p.ID, &model.UpdatePatientRequest{})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidArgument))
	_, err = svc.UpdatePatient(ctx, uuid.New(), p.ID, &model.UpdatePatientRequest{FullName: &name})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

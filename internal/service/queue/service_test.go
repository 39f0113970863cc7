package queue

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/testutil"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

var day = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *testutil.Clinic) {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(store, logger.Nop(), metrics.NewNop())
	svc.now = func() time.Time { return day }
	return svc, testutil.SeedClinic(t, store, "sunrise")
}

func enqueue(t *testing.T, svc *Service, c *testutil.Clinic, n int) []*model.Appointment {
	t.Helper()
	out := make([]*model.Appointment, n)
	for i := range out {
		p := c.AddPatient(t, uuid.NewString()[:6])
		a, err := svc.AddToQueue(context.Background(), c.Clinic.ID, c.Assistant.ID, &model.AddToQueueRequest{PatientID: p.ID})
		require.NoError(t, err)
		out[i] = a
	}
	return out
}

// positions maps appointment id to queue number and checks density.
func positions(t *testing.T, svc *Service, clinicID uuid.UUID) map[uuid.UUID]int {
	t.Helper()
	rows, err := svc.GetQueue(context.Background(), clinicID, day)
	require.NoError(t, err)
	out := make(map[uuid.UUID]int, len(rows))
	for i, r := range rows {
		require.Equal(t, i+1, r.QueueNumber, "queue numbers must be 1..N in order")
		out[r.ID] = r.QueueNumber
	}
	return out
}

// order lists the partition's ids by queue number and checks density.
func order(t *testing.T, svc *Service, clinicID uuid.UUID) []uuid.UUID {
	t.Helper()
	pos := positions(t, svc, clinicID)
	out := make([]uuid.UUID, len(pos))
	for id, n := range pos {
		out[n-1] = id
	}
	return out
}

func TestQueueScenario(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	appts := enqueue(t, svc, c, 3)
	p1, p2, p3 := appts[0], appts[1], appts[2]
	assert.Equal(t, 1, p1.QueueNumber)
	assert.Equal(t, 2, p2.QueueNumber)
	assert.Equal(t, 3, p3.QueueNumber)

	_, err := svc.Reposition(ctx, c.Clinic.ID, p3.ID, 1)
	require.NoError(t, err)
	pos := positions(t, svc, c.Clinic.ID)
	assert.Equal(t, 1, pos[p3.ID])
	assert.Equal(t, 2, pos[p1.ID])
	assert.Equal(t, 3, pos[p2.ID])

	a, err := svc.TransitionStatus(ctx, c.Clinic.ID, p3.ID, model.AppointmentStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusInProgress, a.Status)

	_, err = svc.TransitionStatus(ctx, c.Clinic.ID, p3.ID, model.AppointmentStatusWaiting)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestRepositionKeepsDensityForEveryMove(t *testing.T) {
	const n = 5
	for from := 1; from <= n; from++ {
		for to := int64(-1); to <= n+2; to++ {
			svc, c := setup(t)
			appts := enqueue(t, svc, c, n)
			moved := appts[from-1]

			got, err := svc.Reposition(context.Background(), c.Clinic.ID, moved.ID, to)
			require.NoError(t, err)
			want := model.ClampPosition(to, n)
			assert.Equal(t, want, got.QueueNumber)

			// The others keep their relative order around the moved row.
			expected := make([]uuid.UUID, 0, n)
			for _, a := range appts {
				if a.ID != moved.ID {
					expected = append(expected, a.ID)
				}
			}
			expected = append(expected[:want-1], append([]uuid.UUID{moved.ID}, expected[want-1:]...)...)
			assert.Equal(t, expected, order(t, svc, c.Clinic.ID), "move %d -> %d", from, to)
		}
	}
}

func TestRepositionNoOpAndRoundTrip(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	appts := enqueue(t, svc, c, 4)
	before := positions(t, svc, c.Clinic.ID)

	_, err := svc.Reposition(ctx, c.Clinic.ID, appts[1].ID, 2)
	require.NoError(t, err)
	assert.Equal(t, before, positions(t, svc, c.Clinic.ID))

	_, err = svc.Reposition(ctx, c.Clinic.ID, appts[1].ID, 4)
	require.NoError(t, err)
	_, err = svc.Reposition(ctx, c.Clinic.ID, appts[1].ID, 2)
	require.NoError(t, err)
	assert.Equal(t, before, positions(t, svc, c.Clinic.ID))
}

func TestRepositionRejectsOutOfRangePosition(t *testing.T) {
	svc, c := setup(t)
	appts := enqueue(t, svc, c, 2)

	_, err := svc.Reposition(context.Background(), c.Clinic.ID, appts[0].ID, math.MaxInt32+1)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidArgument))
}

func TestCrossClinicAccessIsNotFound(t *testing.T) {
	svc, c := setup(t)
	other := testutil.SeedClinic(t, c.Store, "other")
	ctx := context.Background()
	appts := enqueue(t, svc, c, 2)

	_, err := svc.Reposition(ctx, other.Clinic.ID, appts[1].ID, 1)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = svc.TransitionStatus(ctx, other.Clinic.ID, appts[0].ID, model.AppointmentStatusCancelled)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.True(t, apperrors.Is(svc.Remove(ctx, other.Clinic.ID, appts[0].ID), apperrors.ErrNotFound))

	foreign := other.AddPatient(t, "PT-0001")
	_, err = svc.AddToQueue(ctx, c.Clinic.ID, c.Owner.ID, &model.AddToQueueRequest{PatientID: foreign.ID})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	// untouched
	pos := positions(t, svc, c.Clinic.ID)
	assert.Equal(t, 1, pos[appts[0].ID])
}

func TestPartitionsAreIndependent(t *testing.T) {
	svc, c := setup(t)
	other := testutil.SeedClinic(t, c.Store, "other")
	enqueue(t, svc, c, 2)

	a := enqueue(t, svc, other, 1)[0]
	assert.Equal(t, 1, a.QueueNumber)

	p := c.AddPatient(t, "PT-9")
	next, err := svc.AddToQueue(context.Background(), c.Clinic.ID, c.Owner.ID, &model.AddToQueueRequest{
		PatientID:       p.ID,
		AppointmentDate: "2026-03-15",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, next.QueueNumber)
}

func TestAddToQueueRejectsBadDate(t *testing.T) {
	svc, c := setup(t)
	p := c.AddPatient(t, "PT-1")
	_, err := svc.AddToQueue(context.Background(), c.Clinic.ID, c.Owner.ID, &model.AddToQueueRequest{
		PatientID:       p.ID,
		AppointmentDate: "14/03/2026",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidArgument))
}

func TestConcurrentEnqueuesStayDense(t *testing.T) {
	svc, c := setup(t)
	const n = 20
	patients := make([]*model.Patient, n)
	for i := range patients {
		patients[i] = c.AddPatient(t, uuid.NewString()[:6])
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, p := range patients {
		wg.Add(1)
		go func(p *model.Patient) {
			defer wg.Done()
			_, err := svc.AddToQueue(context.Background(), c.Clinic.ID, c.Owner.ID, &model.AddToQueueRequest{PatientID: p.ID})
			errs <- err
		}(p)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, positions(t, svc, c.Clinic.ID), n)
}

func TestRemoveClosesGap(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	appts := enqueue(t, svc, c, 4)

	require.NoError(t, svc.Remove(ctx, c.Clinic.ID, appts[1].ID))
	pos := positions(t, svc, c.Clinic.ID)
	assert.Len(t, pos, 3)
	assert.Equal(t, 2, pos[appts[2].ID])
	assert.Equal(t, 3, pos[appts[3].ID])

	next := enqueue(t, svc, c, 1)[0]
	assert.Equal(t, 4, next.QueueNumber)

	assert.True(t, apperrors.Is(svc.Remove(ctx, c.Clinic.ID, appts[1].ID), apperrors.ErrNotFound))
}

func TestTransitionsFromTerminalStatesRejected(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	a := enqueue(t, svc, c, 1)[0]

	_, err := svc.TransitionStatus(ctx, c.Clinic.ID, a.ID, model.AppointmentStatusCancelled)
	require.NoError(t, err)
	for _, next := range []model.AppointmentStatus{
		model.AppointmentStatusWaiting,
		model.AppointmentStatusInProgress,
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
	} {
		_, err := svc.TransitionStatus(ctx, c.Clinic.ID, a.ID, next)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition), next)
	}

	_, err = svc.TransitionStatus(ctx, c.Clinic.ID, a.ID, model.AppointmentStatus("DONE"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidArgument))
}

func TestDailyStats(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	appts := enqueue(t, svc, c, 4)

	_, err := svc.TransitionStatus(ctx, c.Clinic.ID, appts[0].ID, model.AppointmentStatusInProgress)
	require.NoError(t, err)
	_, err = svc.TransitionStatus(ctx, c.Clinic.ID, appts[0].ID, model.AppointmentStatusCompleted)
	require.NoError(t, err)
	_, err = svc.TransitionStatus(ctx, c.Clinic.ID, appts[1].ID, model.AppointmentStatusNoShow)
	require.NoError(t, err)

	// Collections are bucketed by the server's local day.
	paidAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)
	require.NoError(t, c.Store.WithTx(ctx, func(tx repository.Tx) error {
		for i, status := range []model.PaymentStatus{model.PaymentStatusPaid, model.PaymentStatusUnpaid} {
			inv := &model.Invoice{
				Base:          model.NewBase(paidAt),
				InvoiceNumber: []string{"INV-0001", "INV-0002"}[i],
				ClinicID:      c.Clinic.ID,
				PatientID:     appts[0].PatientID,
				TotalAmount:   5000,
				PaidAmount:    5000,
				PaymentStatus: status,
				PaymentMode:   model.PaymentModeCash,
			}
			if err := tx.Invoices().Create(ctx, inv); err != nil {
				return err
			}
		}
		return nil
	}))

	stats, err := svc.DailyStats(ctx, c.Clinic.ID, day)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", stats.Date)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.ByStatus[model.AppointmentStatusNoShow])
	require.NotNil(t, stats.Revenue)
	assert.Equal(t, int64(5000), *stats.Revenue)
}

func TestMutationsWriteOutboxEvents(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	appts := enqueue(t, svc, c, 2)
	_, err := svc.Reposition(ctx, c.Clinic.ID, appts[1].ID, 1)
	require.NoError(t, err)

	var events []*model.OutboxEvent
	require.NoError(t, c.Store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		events, err = tx.Outbox().GetPendingEventsWithLock(ctx, 10)
		return err
	}))
	require.Len(t, events, 3)

	actions := map[string]int{}
	for _, e := range events {
		assert.Equal(t, model.EventQueueUpdated, e.EventType)
		var payload model.QueueUpdatedPayload
		require.NoError(t, json.Unmarshal(e.Payload, &payload))
		assert.Equal(t, c.Clinic.ID, payload.ClinicID)
		assert.Equal(t, "2026-03-14", payload.Date)
		actions[payload.Action]++
	}
	assert.Equal(t, 2, actions[ActionAdded])
	assert.Equal(t, 1, actions[ActionMoved])
}

// Package queue runs the per-clinic daily OPD queue. Every mutation of a
// partition holds the partition lock for the whole transaction, keeping
// live queue numbers dense (1..N).
package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Queue actions carried by queue.updated events.
const (
	ActionAdded   = "added"
	ActionMoved   = "moved"
	ActionStatus  = "status_changed"
	ActionRemoved = "removed"
)

// defaultAttempts bounds retries of a transaction that lost a
// serialization race.
const defaultAttempts = 3

type Service struct {
	store    repository.Store
	logger   *logger.Logger
	metrics  *metrics.Metrics
	attempts int
	now      func() time.Time
}

func NewService(store repository.Store, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		logger:   log,
		metrics:  m,
		attempts: defaultAttempts,
		now:      time.Now,
	}
}

// Today is the current queue date.
func (s *Service) Today() time.Time {
	return model.DateOnly(s.now())
}

func (s *Service) run(ctx context.Context, op string, fn func(tx repository.Tx) error) error {
	timer := prometheus.NewTimer(s.metrics.QueueLatency.WithLabelValues(op))
	defer timer.ObserveDuration()

	attempts, err := repository.RunInTx(ctx, s.store, s.attempts, fn)
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.QueueOperations.WithLabelValues(op, status).Inc()
	if attempts > 1 {
		s.logger.Debug("queue transaction retried", "operation", op, "attempts", attempts)
	}
	return translate(err)
}

func translate(err error) error {
	var appErr *apperrors.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrConflict):
		return apperrors.Conflict("queue changed concurrently, try again", err)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("appointment", err)
	}
	return apperrors.Internal(err)
}

// AddToQueue appends a WAITING appointment at the end of the partition.
func (s *Service) AddToQueue(ctx context.Context, clinicID, createdBy uuid.UUID, req *model.AddToQueueRequest) (*model.Appointment, error) {
	date := s.Today()
	if req.AppointmentDate != "" {
		d, err := model.ParseDate(req.AppointmentDate)
		if err != nil {
			return nil, apperrors.InvalidArgument("appointment_date must be YYYY-MM-DD")
		}
		date = d
	}

	var appointment *model.Appointment
	err := s.run(ctx, "add", func(tx repository.Tx) error {
		if _, err := tx.Patients().Get(ctx, clinicID, req.PatientID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("patient", err)
			}
			return fmt.Errorf("failed to get patient: %w", err)
		}

		key := model.QueueKey{ClinicID: clinicID, Date: date}
		if err := tx.Appointments().LockPartition(ctx, key); err != nil {
			return fmt.Errorf("failed to lock queue: %w", err)
		}
		max, err := tx.Appointments().MaxQueueNumber(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to read queue: %w", err)
		}

		now := s.now()
		appointment = &model.Appointment{
			Base:            model.NewBase(now),
			ClinicID:        clinicID,
			PatientID:       req.PatientID,
			AppointmentDate: date,
			QueueNumber:     max + 1,
			Status:          model.AppointmentStatusWaiting,
			ChiefComplaints: req.ChiefComplaints,
			CreatedBy:       createdBy,
		}
		if err := tx.Appointments().Create(ctx, appointment); err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return emit(ctx, tx, ActionAdded, appointment, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("patient added to queue", "clinic_id", clinicID.String(), "appointment_id", appointment.ID.String(), "queue_number", appointment.QueueNumber)
	return appointment, nil
}

// lockAppointment loads the appointment, locks its partition and reloads
// it so the caller sees the position as of the lock.
func LockAppointment(ctx context.Context, tx repository.Tx, clinicID, id uuid.UUID) (*model.Appointment, error) {
	appointment, err := tx.Appointments().Get(ctx, clinicID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	if err := tx.Appointments().LockPartition(ctx, appointment.QueueKey()); err != nil {
		return nil, fmt.Errorf("failed to lock queue: %w", err)
	}
	appointment, err = tx.Appointments().Get(ctx, clinicID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return appointment, nil
}

// Reposition moves an appointment to newPosition, clamped into [1, N].
// The rows in between shift one place toward the vacated slot.
func (s *Service) Reposition(ctx context.Context, clinicID, id uuid.UUID, newPosition int64) (*model.Appointment, error) {
	if newPosition < math.MinInt32 || newPosition > math.MaxInt32 {
		return nil, apperrors.InvalidArgument("new_position is out of range")
	}

	var appointment *model.Appointment
	err := s.run(ctx, "reposition", func(tx repository.Tx) error {
		var err error
		appointment, err = LockAppointment(ctx, tx, clinicID, id)
		if err != nil {
			return err
		}
		key := appointment.QueueKey()
		n, err := tx.Appointments().Count(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to count queue: %w", err)
		}

		move := model.QueueMove{
			AppointmentID: appointment.ID,
			From:          appointment.QueueNumber,
			To:            model.ClampPosition(newPosition, n),
		}
		if move.NoOp() {
			return nil
		}
		if err := tx.Appointments().Move(ctx, key, move); err != nil {
			return fmt.Errorf("failed to move appointment: %w", err)
		}
		now := s.now()
		appointment.QueueNumber = move.To
		appointment.UpdatedAt = now
		return emit(ctx, tx, ActionMoved, appointment, now)
	})
	if err != nil {
		return nil, err
	}
	return appointment, nil
}

// TransitionStatus moves the appointment along the status machine.
func (s *Service) TransitionStatus(ctx context.Context, clinicID, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	if !status.Valid() {
		return nil, apperrors.InvalidArgument(fmt.Sprintf("unknown status %q", status))
	}

	var appointment *model.Appointment
	err := s.run(ctx, "status", func(tx repository.Tx) error {
		var err error
		appointment, err = LockAppointment(ctx, tx, clinicID, id)
		if err != nil {
			return err
		}
		return Transition(ctx, tx, appointment, status, s.now())
	})
	if err != nil {
		return nil, err
	}
	return appointment, nil
}

// Transition applies one status step inside tx and records the event.
// Callers hold the partition lock.
func Transition(ctx context.Context, tx repository.Tx, appointment *model.Appointment, to model.AppointmentStatus, now time.Time) error {
	if !appointment.Status.CanTransitionTo(to) {
		return apperrors.InvalidTransition(string(appointment.Status), string(to))
	}
	from := appointment.Status
	appointment.Status = to
	appointment.UpdatedAt = now
	if err := tx.Appointments().UpdateStatus(ctx, appointment, from); err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	return emit(ctx, tx, ActionStatus, appointment, now)
}

// Complete walks a WAITING or IN_PROGRESS appointment to COMPLETED. An
// appointment that is already COMPLETED is left as it is.
func Complete(ctx context.Context, tx repository.Tx, appointment *model.Appointment, now time.Time) error {
	switch appointment.Status {
	case model.AppointmentStatusCompleted:
		return nil
	case model.AppointmentStatusWaiting:
		if err := Transition(ctx, tx, appointment, model.AppointmentStatusInProgress, now); err != nil {
			return err
		}
	}
	return Transition(ctx, tx, appointment, model.AppointmentStatusCompleted, now)
}

// GetQueue returns the partition ordered by queue number.
func (s *Service) GetQueue(ctx context.Context, clinicID uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	var rows []*model.Appointment
	err := s.run(ctx, "get", func(tx repository.Tx) error {
		var err error
		rows, err = tx.Appointments().List(ctx, model.QueueKey{ClinicID: clinicID, Date: model.DateOnly(date)})
		return err
	})
	if rows == nil {
		rows = []*model.Appointment{}
	}
	return rows, err
}

// Remove soft-deletes the appointment and closes the gap it leaves.
func (s *Service) Remove(ctx context.Context, clinicID, id uuid.UUID) error {
	return s.run(ctx, "remove", func(tx repository.Tx) error {
		appointment, err := LockAppointment(ctx, tx, clinicID, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := tx.Appointments().SoftDelete(ctx, appointment, now); err != nil {
			return fmt.Errorf("failed to remove appointment: %w", err)
		}
		return emit(ctx, tx, ActionRemoved, appointment, now)
	})
}

// DailyStats summarises one day of the clinic's queue and collections.
func (s *Service) DailyStats(ctx context.Context, clinicID uuid.UUID, date time.Time) (*model.DailyStats, error) {
	day := model.DateOnly(date)
	stats := &model.DailyStats{Date: day.Format(time.DateOnly)}
	err := s.run(ctx, "stats", func(tx repository.Tx) error {
		counts, err := tx.Appointments().CountByStatus(ctx, model.QueueKey{ClinicID: clinicID, Date: day})
		if err != nil {
			return fmt.Errorf("failed to count appointments: %w", err)
		}
		stats.ByStatus = counts
		for status, n := range counts {
			stats.Total += n
			switch status {
			case model.AppointmentStatusCompleted:
				stats.Completed += n
			case model.AppointmentStatusWaiting, model.AppointmentStatusInProgress:
				stats.Pending += n
			}
		}
		revenue, err := tx.Invoices().SumPaid(ctx, clinicID, day)
		if err != nil {
			return fmt.Errorf("failed to sum collections: %w", err)
		}
		stats.Revenue = &revenue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func emit(ctx context.Context, tx repository.Tx, action string, a *model.Appointment, now time.Time) error {
	event, err := model.NewOutboxEvent(model.EventQueueUpdated, model.QueueUpdatedPayload{
		ClinicID:      a.ClinicID,
		Date:          model.DateOnly(a.AppointmentDate).Format(time.DateOnly),
		Action:        action,
		AppointmentID: a.ID,
		QueueNumber:   a.QueueNumber,
		Status:        a.Status,
	}, now)
	if err != nil {
		return fmt.Errorf("failed to build queue event: %w", err)
	}
	if err := tx.Outbox().Create(ctx, event); err != nil {
		return fmt.Errorf("failed to write queue event: %w", err)
	}
	return nil
}

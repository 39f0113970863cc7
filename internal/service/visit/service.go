package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/queue"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const maxAttempts = 3

type Service struct {
	store repository.Store
	now   func() time.Time
}

func NewService(store repository.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// CreateVisit records a consultation. Visit numbers count per patient.
// A linked appointment is completed in the same transaction and may carry
// only one visit.
func (s *Service) CreateVisit(ctx context.Context, p *model.Principal, req *model.CreateVisitRequest) (*model.Visit, error) {
	clinicID := p.Clinic()
	var visit *model.Visit
	_, err := repository.RunInTx(ctx, s.store, maxAttempts, func(tx repository.Tx) error {
		if _, err := tx.Patients().Get(ctx, clinicID, req.PatientID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("patient", err)
			}
			return fmt.Errorf("failed to get patient: %w", err)
		}

		now := s.now()
		if req.AppointmentID != nil {
			if err := s.completeAppointment(ctx, tx, clinicID, req, now); err != nil {
				return err
			}
		}

		last, err := tx.Visits().MaxVisitNumber(ctx, req.PatientID)
		if err != nil {
			return fmt.Errorf("failed to read visit number: %w", err)
		}
		visit = &model.Visit{
			Base:              model.NewBase(now),
			ClinicID:          clinicID,
			PatientID:         req.PatientID,
			AppointmentID:     req.AppointmentID,
			DoctorID:          p.DoctorID,
			VisitNumber:       last + 1,
			VisitDate:         now,
			Symptoms:          req.Symptoms,
			Diagnosis:         req.Diagnosis,
			PrescriptionNotes: req.PrescriptionNotes,
		}
		if err := tx.Visits().Create(ctx, visit); err != nil {
			return fmt.Errorf("failed to create visit: %w", err)
		}
		return nil
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperrors.Conflict("visit was recorded concurrently, try again", err)
	}
	if err != nil {
		return nil, err
	}
	return visit, nil
}

// completeAppointment locks the appointment's partition before judging its
// status, so a concurrent cancellation is seen rather than overwritten.
func (s *Service) completeAppointment(ctx context.Context, tx repository.Tx, clinicID uuid.UUID, req *model.CreateVisitRequest, now time.Time) error {
	appointment, err := queue.LockAppointment(ctx, tx, clinicID, *req.AppointmentID)
	if err != nil {
		return err
	}
	if appointment.PatientID != req.PatientID {
		return apperrors.InvalidArgument("appointment belongs to another patient")
	}
	if _, err := tx.Visits().GetByAppointment(ctx, appointment.ID); err == nil {
		return apperrors.Conflict("appointment already has a visit", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to check appointment visit: %w", err)
	}
	return queue.Complete(ctx, tx, appointment, now)
}

func (s *Service) GetVisit(ctx context.Context, clinicID, id uuid.UUID) (*model.Visit, error) {
	var visit *model.Visit
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		visit, err = tx.Visits().Get(ctx, clinicID, id)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("visit", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return visit, nil
}

// UpdateVisit edits the clinical notes. Numbering and links are fixed.
func (s *Service) UpdateVisit(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateVisitRequest) (*model.Visit, error) {
	var visit *model.Visit
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		visit, err = tx.Visits().Get(ctx, clinicID, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("visit", err)
		}
		if err != nil {
			return fmt.Errorf("failed to get visit: %w", err)
		}
		if !req.Apply(visit) {
			return apperrors.InvalidArgument("no fields to update")
		}
		visit.UpdatedAt = s.now()
		if err := tx.Visits().UpdateNotes(ctx, visit); err != nil {
			return fmt.Errorf("failed to update visit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return visit, nil
}

// ListPatientVisits returns a patient's history, newest first.
func (s *Service) ListPatientVisits(ctx context.Context, clinicID, patientID uuid.UUID) ([]*model.Visit, error) {
	var visits []*model.Visit
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Patients().Get(ctx, clinicID, patientID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("patient", err)
			}
			return fmt.Errorf("failed to get patient: %w", err)
		}
		var err error
		if visits, err = tx.Visits().ListByPatient(ctx, clinicID, patientID); err != nil {
			return fmt.Errorf("failed to list visits: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return visits, nil
}

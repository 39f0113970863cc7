package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/code"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Service struct {
	store     repository.Store
	allocator *code.Allocator
	now       func() time.Time
}

func NewService(store repository.Store, allocator *code.Allocator) *Service {
	return &Service{store: store, allocator: allocator, now: time.Now}
}

// CreatePatient registers a patient under the next PT code of the clinic.
func (s *Service) CreatePatient(ctx context.Context, clinicID, createdBy uuid.UUID, req *model.CreatePatientRequest) (*model.Patient, error) {
	var patient *model.Patient
	err := s.allocator.InTx(ctx, code.Patient, func(tx repository.Tx) error {
		patientCode, err := s.allocator.Allocate(ctx, tx, code.Patient, clinicID)
		if err != nil {
			return err
		}
		patient = &model.Patient{
			Base:        model.NewBase(s.now()),
			PatientCode: patientCode,
			ClinicID:    clinicID,
			FullName:    req.FullName,
			Age:         req.Age,
			Gender:      req.Gender,
			Phone:       req.Phone,
			Address:     req.Address,
			BloodGroup:  req.BloodGroup,
			CreatedBy:   createdBy,
		}
		if err := tx.Patients().Create(ctx, patient); err != nil {
			return fmt.Errorf("failed to create patient: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, clinicID, id uuid.UUID) (*model.Patient, error) {
	var patient *model.Patient
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		patient, err = tx.Patients().Get(ctx, clinicID, id)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return patient, nil
}

func (s *Service) ListPatients(ctx context.Context, clinicID uuid.UUID, filter model.PatientFilter) ([]*model.Patient, error) {
	filter.Pagination = filter.Pagination.Normalize()
	var patients []*model.Patient
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		patients, err = tx.Patients().List(ctx, clinicID, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	if patients == nil {
		patients = []*model.Patient{}
	}
	return patients, nil
}

// UpdatePatient applies the fields present in req. The patient code never
// changes.
func (s *Service) UpdatePatient(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	var patient *model.Patient
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		patient, err = tx.Patients().Get(ctx, clinicID, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("patient", err)
		}
		if err != nil {
			return fmt.Errorf("failed to get patient: %w", err)
		}
		if !req.Apply(patient) {
			return apperrors.InvalidArgument("no fields to update")
		}
		patient.UpdatedAt = s.now()
		if err := tx.Patients().Update(ctx, patient); err != nil {
			return fmt.Errorf("failed to update patient: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return patient, nil
}

// DeletePatient soft-deletes the patient. Its code stays retired.
func (s *Service) DeletePatient(ctx context.Context, clinicID, id uuid.UUID) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.Patients().SoftDelete(ctx, clinicID, id, s.now())
	})
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("patient", err)
	}
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return nil
}

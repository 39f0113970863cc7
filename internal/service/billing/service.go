package billing

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

// paidAmount derives what was collected from the payment status. Only
// PARTIAL takes the amount from the request.
func paidAmount(status model.PaymentStatus, total int64, requested *int64) (int64, error) {
	switch status {
	case model.PaymentStatusPaid:
		return total, nil
	case model.PaymentStatusUnpaid:
		return 0, nil
	case model.PaymentStatusPartial:
		if requested == nil || *requested <= 0 || *requested >= total {
			return 0, apperrors.InvalidArgument("partial payment must be between zero and the invoice total")
		}
		return *requested, nil
	}
	return 0, apperrors.InvalidArgument(fmt.Sprintf("unknown payment status %q", status))
}

// CreateInvoice bills a patient of the clinic under the next INV code.
func (s *Service) CreateInvoice(ctx context.Context, clinicID, createdBy uuid.UUID, req *model.CreateInvoiceRequest) (*model.Invoice, error) {
	items := model.InvoiceItems(req.Items)
	total := items.Total()
	paid, err := paidAmount(req.PaymentStatus, total, req.PaidAmount)
	if err != nil {
		return nil, err
	}

	var invoice *model.Invoice
	err = s.allocator.InTx(ctx, code.Invoice, func(tx repository.Tx) error {
		if _, err := tx.Patients().Get(ctx, clinicID, req.PatientID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("patient", err)
			}
			return fmt.Errorf("failed to get patient: %w", err)
		}
		if req.VisitID != nil {
			visit, err := tx.Visits().Get(ctx, clinicID, *req.VisitID)
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("visit", err)
			}
			if err != nil {
				return fmt.Errorf("failed to get visit: %w", err)
			}
			if visit.PatientID != req.PatientID {
				return apperrors.InvalidArgument("visit belongs to another patient")
			}
		}

		number, err := s.allocator.Allocate(ctx, tx, code.Invoice, clinicID)
		if err != nil {
			return err
		}
		invoice = &model.Invoice{
			Base:          model.NewBase(s.now()),
			InvoiceNumber: number,
			ClinicID:      clinicID,
			PatientID:     req.PatientID,
			VisitID:       req.VisitID,
			Items:         items,
			TotalAmount:   total,
			PaidAmount:    paid,
			PaymentStatus: req.PaymentStatus,
			PaymentMode:   req.PaymentMode,
			CreatedBy:     createdBy,
		}
		if err := tx.Invoices().Create(ctx, invoice); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) GetInvoice(ctx context.Context, clinicID, id uuid.UUID) (*model.Invoice, error) {
	var invoice *model.Invoice
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		invoice, err = tx.Invoices().Get(ctx, clinicID, id)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("invoice", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// UpdatePayment records a payment. The paid amount is derived from the
// status the same way as at creation; a PARTIAL invoice keeps its amount
// unless a new one is given.
func (s *Service) UpdatePayment(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateInvoiceRequest) (*model.Invoice, error) {
	if req.PaidAmount == nil && req.PaymentStatus == nil && req.PaymentMode == nil {
		return nil, apperrors.InvalidArgument("no fields to update")
	}

	var invoice *model.Invoice
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		invoice, err = tx.Invoices().Get(ctx, clinicID, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("invoice", err)
		}
		if err != nil {
			return fmt.Errorf("failed to get invoice: %w", err)
		}

		status := invoice.PaymentStatus
		if req.PaymentStatus != nil {
			status = *req.PaymentStatus
		}
		requested := req.PaidAmount
		if requested == nil && status == invoice.PaymentStatus {
			requested = &invoice.PaidAmount
		}
		paid, err := paidAmount(status, invoice.TotalAmount, requested)
		if err != nil {
			return err
		}
		invoice.PaymentStatus = status
		invoice.PaidAmount = paid
		if req.PaymentMode != nil {
			invoice.PaymentMode = *req.PaymentMode
		}
		invoice.UpdatedAt = s.now()
		if err := tx.Invoices().UpdatePayment(ctx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) ListInvoices(ctx context.Context, clinicID uuid.UUID, filter model.InvoiceFilter) ([]*model.Invoice, error) {
	filter.Pagination = filter.Pagination.Normalize()
	var invoices []*model.Invoice
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		invoices, err = tx.Invoices().List(ctx, clinicID, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	if invoices == nil {
		invoices = []*model.Invoice{}
	}
	return invoices, nil
}

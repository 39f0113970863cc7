package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type invoiceRepository struct {
	tx *sqlx.Tx
}

const invoiceColumns = `id, invoice_number, clinic_id, patient_id, visit_id, items, total_amount, paid_amount,
	payment_status, payment_mode, created_by, created_at, updated_at, deleted_at`

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, invoice_number, clinic_id, patient_id, visit_id, items, total_amount,
			paid_amount, payment_status, payment_mode, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.tx.ExecContext(ctx, query,
		invoice.ID,
		invoice.InvoiceNumber,
		invoice.ClinicID,
		invoice.PatientID,
		invoice.VisitID,
		invoice.Items,
		invoice.TotalAmount,
		invoice.PaidAmount,
		invoice.PaymentStatus,
		invoice.PaymentMode,
		invoice.CreatedBy,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	return mapError(err, "create invoice")
}

func (r *invoiceRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND clinic_id = $2 AND deleted_at IS NULL`
	if err := r.tx.GetContext(ctx, &invoice, query, id, clinicID); err != nil {
		return nil, mapError(err, "get invoice")
	}
	return &invoice, nil
}

func (r *invoiceRepository) List(ctx context.Context, clinicID uuid.UUID, filter model.InvoiceFilter) ([]*model.Invoice, error) {
	page := filter.Pagination.Normalize()
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE clinic_id = $1 AND deleted_at IS NULL AND ($2::uuid IS NULL OR patient_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	invoices := []*model.Invoice{}
	if err := r.tx.SelectContext(ctx, &invoices, query, clinicID, filter.PatientID, page.Limit, page.Offset); err != nil {
		return nil, mapError(err, "list invoices")
	}
	return invoices, nil
}

func (r *invoiceRepository) UpdatePayment(ctx context.Context, invoice *model.Invoice) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE invoices SET paid_amount = $1, payment_status = $2, payment_mode = $3, updated_at = $4
		WHERE id = $5 AND clinic_id = $6 AND deleted_at IS NULL
	`, invoice.PaidAmount, invoice.PaymentStatus, invoice.PaymentMode, invoice.UpdatedAt, invoice.ID, invoice.ClinicID)
	if err != nil {
		return mapError(err, "update invoice payment")
	}
	return checkAffected(res, "update invoice payment")
}

func (r *invoiceRepository) ListCodes(ctx context.Context, clinicID uuid.UUID) ([]string, error) {
	var codes []string
	if err := r.tx.SelectContext(ctx, &codes, `SELECT invoice_number FROM invoices WHERE clinic_id = $1`, clinicID); err != nil {
		return nil, mapError(err, "list invoice numbers")
	}
	return codes, nil
}

func (r *invoiceRepository) SumPaid(ctx context.Context, clinicID uuid.UUID, day time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(paid_amount), 0)
		FROM invoices
		WHERE clinic_id = $1 AND payment_status = 'PAID' AND deleted_at IS NULL
		  AND created_at >= $2 AND created_at < $3
	`
	start, end := model.DayBounds(day, time.Local)
	var total int64
	if err := r.tx.GetContext(ctx, &total, query, clinicID, start, end); err != nil {
		return 0, mapError(err, "sum paid invoices")
	}
	return total, nil
}

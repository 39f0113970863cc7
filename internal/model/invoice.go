package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusUnpaid  PaymentStatus = "UNPAID"
	PaymentStatusPartial PaymentStatus = "PARTIAL"
)

type PaymentMode string

const (
	PaymentModeCash  PaymentMode = "CASH"
	PaymentModeUPI   PaymentMode = "UPI"
	PaymentModeCard  PaymentMode = "CARD"
	PaymentModeOther PaymentMode = "OTHER"
)

// InvoiceItem amounts are in minor currency units.
type InvoiceItem struct {
	Description string `json:"description" binding:"required"`
	Quantity    int64  `json:"quantity" binding:"required,min=1"`
	UnitPrice   int64  `json:"unit_price" binding:"min=0"`
}

// InvoiceItems is stored as a JSONB column.
type InvoiceItems []InvoiceItem

func (items InvoiceItems) Value() (driver.Value, error) {
	if items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(items)
}

func (items *InvoiceItems) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*items = InvoiceItems{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported invoice items type %T", src)
	}
	return json.Unmarshal(raw, items)
}

func (items InvoiceItems) Total() int64 {
	var total int64
	for _, it := range items {
		total += it.Quantity * it.UnitPrice
	}
	return total
}

type Invoice struct {
	Base
	InvoiceNumber string        `db:"invoice_number" json:"invoice_number"`
	ClinicID      uuid.UUID     `db:"clinic_id" json:"clinic_id"`
	PatientID     uuid.UUID     `db:"patient_id" json:"patient_id"`
	VisitID       *uuid.UUID    `db:"visit_id" json:"visit_id,omitempty"`
	Items         InvoiceItems  `db:"items" json:"items"`
	TotalAmount   int64         `db:"total_amount" json:"total_amount"`
	PaidAmount    int64         `db:"paid_amount" json:"paid_amount"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`
	PaymentMode   PaymentMode   `db:"payment_mode" json:"payment_mode"`
	CreatedBy     uuid.UUID     `db:"created_by" json:"created_by"`
}

type CreateInvoiceRequest struct {
	PatientID     uuid.UUID     `json:"patient_id" binding:"required"`
	VisitID       *uuid.UUID    `json:"visit_id"`
	Items         []InvoiceItem `json:"items" binding:"required,min=1,dive"`
	PaidAmount    *int64        `json:"paid_amount" binding:"omitempty,min=0"`
	PaymentStatus PaymentStatus `json:"payment_status" binding:"required,oneof=PAID UNPAID PARTIAL"`
	PaymentMode   PaymentMode   `json:"payment_mode" binding:"required,oneof=CASH UPI CARD OTHER"`
}

// UpdateInvoiceRequest records a payment against an existing invoice.
// Items and totals are fixed once billed.
type UpdateInvoiceRequest struct {
	PaidAmount    *int64         `json:"paid_amount" binding:"omitempty,min=0"`
	PaymentStatus *PaymentStatus `json:"payment_status" binding:"omitempty,oneof=PAID UNPAID PARTIAL"`
	PaymentMode   *PaymentMode   `json:"payment_mode" binding:"omitempty,oneof=CASH UPI CARD OTHER"`
}

type InvoiceFilter struct {
	PatientID *uuid.UUID `form:"patient_id"`
	Pagination
}

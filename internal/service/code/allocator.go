package code

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Series describes one code sequence and where its existing codes live.
type Series struct {
	Prefix string
	// Global series ignore the clinic scope.
	Global bool
	scan   func(ctx context.Context, tx repository.Tx, clinicID uuid.UUID) ([]string, error)
}

var (
	Patient = Series{Prefix: "PT", scan: func(ctx context.Context, tx repository.Tx, clinicID uuid.UUID) ([]string, error) {
		return tx.Patients().ListCodes(ctx, clinicID)
	}}
	Invoice = Series{Prefix: "INV", scan: func(ctx context.Context, tx repository.Tx, clinicID uuid.UUID) ([]string, error) {
		return tx.Invoices().ListCodes(ctx, clinicID)
	}}
	Doctor = Series{Prefix: "DR", Global: true, scan: func(ctx context.Context, tx repository.Tx, _ uuid.UUID) ([]string, error) {
		return tx.Doctors().ListCodes(ctx)
	}}
	Clinic = Series{Prefix: "CL", Global: true, scan: func(ctx context.Context, tx repository.Tx, _ uuid.UUID) ([]string, error) {
		return tx.Clinics().ListCodes(ctx)
	}}
)

// Allocator hands out the next code of a series. Allocation must happen in
// the same transaction as the insert that uses the code; InTx re-runs that
// transaction when the unique index rejects a code taken concurrently.
type Allocator struct {
	store       repository.Store
	maxAttempts int
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewAllocator(store repository.Store, maxAttempts int, log *logger.Logger, m *metrics.Metrics) *Allocator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Allocator{store: store, maxAttempts: maxAttempts, logger: log, metrics: m}
}

// Allocate scans the series scope inside tx and returns the next code.
func (a *Allocator) Allocate(ctx context.Context, tx repository.Tx, s Series, clinicID uuid.UUID) (string, error) {
	codes, err := s.scan(ctx, tx, clinicID)
	if err != nil {
		return "", fmt.Errorf("failed to scan %s codes: %w", s.Prefix, err)
	}
	a.metrics.CodeAllocations.WithLabelValues(s.Prefix).Inc()
	return Format(s.Prefix, Next(s.Prefix, codes)), nil
}

// InTx runs fn in a transaction and retries it on a uniqueness conflict.
// After the last attempt the conflict is reported as a retryable
// Conflict error.
func (a *Allocator) InTx(ctx context.Context, s Series, fn func(tx repository.Tx) error) error {
	attempts, err := repository.RunInTx(ctx, a.store, a.maxAttempts, fn)
	if attempts > 1 {
		a.metrics.CodeRetries.WithLabelValues(s.Prefix).Add(float64(attempts - 1))
	}
	if errors.Is(err, repository.ErrConflict) {
		a.logger.Warn("code allocation exhausted retries", "series", s.Prefix, "attempts", attempts)
		return apperrors.Conflict(fmt.Sprintf("could not allocate %s code, try again", s.Prefix), err)
	}
	return err
}

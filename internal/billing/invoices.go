// Package billing implements the invoicing collaborator consumed by the
// scheduling core: one pending invoice per successful booking.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinic-scheduling/internal/db"
	"github.com/clinicore/clinic-scheduling/internal/scheduling"
)

const invoiceDueIn = 7 * 24 * time.Hour

type PgInvoices struct {
	pool db.Pool
}

func NewPgInvoices(pool db.Pool) *PgInvoices {
	return &PgInvoices{pool: pool}
}

// OpenInvoice creates a pending invoice for an appointment fee, due in seven
// days. Tax and discounts are zero here; adjustments happen downstream in
// the billing system.
func (b *PgInvoices) OpenInvoice(ctx context.Context, req scheduling.OpenInvoiceRequest) (uuid.UUID, error) {
	id := uuid.New()
	zero := decimal.Zero

	_, err := b.pool.Exec(ctx, `
		INSERT INTO invoices (
			id, patient_id, provider_id, appointment_id,
			subtotal, tax_amount, discount_amount, total_amount,
			status, description, due_date, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9, $10, now(), now())
	`, id, req.PatientID, req.ProviderID, req.AppointmentID,
		req.Amount, zero, zero, req.Amount,
		req.Description, time.Now().Add(invoiceDueIn),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert invoice: %w", err)
	}

	return id, nil
}

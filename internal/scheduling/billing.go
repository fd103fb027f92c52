package scheduling

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenInvoiceRequest asks the billing collaborator for a pending invoice
// covering one appointment's fee.
type OpenInvoiceRequest struct {
	PatientID     uuid.UUID
	ProviderID    uuid.UUID
	AppointmentID uuid.UUID
	Amount        decimal.Decimal
	Description   string
}

// Billing is the narrow interface to the invoicing system. A failure here
// never rolls back an already-persisted appointment; the caller reports it
// and leaves reconciliation to billing.
type Billing interface {
	OpenInvoice(ctx context.Context, req OpenInvoiceRequest) (uuid.UUID, error)
}

package conversiontracking

import (
	"context"
	"time"

	"github.com/gasbutano/checkoutbackend/services/checkoutapi"
)

// Reporter guarantees at-most-once delivery of the pending and paid
// conversion events for a checkout. Sent-state and the canonical payload
// are persisted so the guarantee survives process restarts.
//
//go:generate mockgen -source=api.go -package conversiontracking -destination mocks.go Reporter,Deliverer
type Reporter interface {
	// ReportPending announces a freshly created PIX charge. It also resets
	// the sent-state of any earlier report for the same checkout UID.
	ReportPending(c context.Context, req ReportRequest) error

	// ReportPaid announces the payment. The persisted pending payload is
	// reused verbatim with only status and approvedDate overridden; when
	// none was persisted a fallback payload is synthesized.
	ReportPaid(c context.Context, req ReportRequest) error

	// RedeliverParked retries paid reports whose delivery attempts were
	// exhausted. Intended to run once at startup.
	RedeliverParked(c context.Context) error
}

type Deliverer interface {
	Deliver(c context.Context, host string, event OrderEvent) error
}

// ReportRequest carries everything needed to build the conversion payload
// for one checkout.
type ReportRequest struct {
	CheckoutUID   string
	TransactionID string
	AmountCents   int64
	Host          string
	ClientIP      string
	Order         checkoutapi.Order
	PaidAt        *time.Time
}

// ReportState is the persisted at-most-once bookkeeping per checkout.
type ReportState struct {
	CheckoutUID string
	PendingSent bool
	PaidSent    bool
	Payload     OrderEvent `datastore:",noindex"`
	Host        string
}

// ParkedReport is a paid payload whose delivery attempts were exhausted.
// It is retried once on a later startup if younger than 24 hours.
type ParkedReport struct {
	CheckoutUID string
	Host        string
	Payload     OrderEvent `datastore:",noindex"`
	ParkedAt    time.Time
}

package orderarchive

import (
	"time"

	"github.com/gasbutano/checkoutbackend/services/checkoutevents"
)

// OrderRecord is the durable trace of a checkout, kept after the live
// payment session has been removed.
type OrderRecord struct {
	CheckoutUID   string
	ProviderName  string
	TransactionID string
	AmountCents   int64
	CustomerName  string
	CustomerPhone string
	PaymentStatus checkoutevents.PaymentStatus
	StartedAt     time.Time
	CompletedAt   *time.Time
	PaidAt        *time.Time
}

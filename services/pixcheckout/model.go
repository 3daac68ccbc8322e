package pixcheckout

import (
	"time"

	"github.com/gasbutano/checkoutbackend/services/checkoutapi"
	"github.com/gasbutano/checkoutbackend/services/checkoutevents"
)

// PaymentSession is the single source of truth for one checkout while it
// awaits payment. It is removed from the store only when terminal
// reporting has completed, so its presence means "not fully settled yet".
type PaymentSession struct {
	CheckoutUID   string
	ProviderName  string
	TransactionID string
	AmountCents   int64
	Status        checkoutevents.PaymentStatus
	PaymentMethod string
	PixCode       string
	PixExpiration time.Time
	Host          string
	ClientIP      string
	Order         checkoutapi.Order `datastore:",noindex"`
	CreatedAt     time.Time
	PaidAt        *time.Time

	// ConversionReported guards the purchase conversion: at most once
	ConversionReported bool
}

package adstracking

import (
	"context"
)

// ConversionReporter fires the Google Ads conversion events for a checkout:
// "checkout initiated" when the PIX charge is created and "purchase" when
// the payment confirms. The at-most-once guard for purchases lives with the
// payment session, not here.
//
//go:generate mockgen -source=api.go -package adstracking -destination reporter_mock.go ConversionReporter
type ConversionReporter interface {
	ReportCheckoutStarted(c context.Context, host string, checkoutUID string) error
	ReportPurchase(c context.Context, host string, transactionID string, amountCents int64) error
}

package pixgateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gasbutano/checkoutbackend/lib/myerrors"
	"github.com/gasbutano/checkoutbackend/lib/myhttpclient"
	"github.com/gasbutano/checkoutbackend/services/checkoutapi"
	"github.com/gasbutano/checkoutbackend/services/checkoutevents"
)

//go:generate mockgen -source=api.go -package pixgateway -destination payer_mock.go Payer
type Payer interface {
	Name() string
	CreatePixTransaction(c context.Context, req TransactionRequest) (Transaction, error)
	GetTransactionStatus(c context.Context, transactionID string) (StatusUpdate, error)
}

// TransactionRequest is the gateway-neutral payload for creating a PIX charge.
type TransactionRequest struct {
	AmountCents int64
	Customer    checkoutapi.Customer
	Address     checkoutapi.Address
	Items       []checkoutapi.Item
	PostbackURL string
}

type Transaction struct {
	ID          string
	Status      checkoutevents.PaymentStatus
	AmountCents int64
	Pix         PixDetails
}

type PixDetails struct {
	Code           string
	ExpirationDate time.Time
}

type StatusUpdate struct {
	Status checkoutevents.PaymentStatus
	PaidAt *time.Time
}

// Config carries the per-gateway connection settings. Credentials holds
// the Basic-auth pair for blackcat/ezzpag and the api key for umbrella.
type Config struct {
	BaseURL     string
	Credentials string
	Sender      myhttpclient.HTTPSender
}

// New returns the payer configured for this deployment. Each deployment
// talks to exactly one gateway.
func New(providerName string, cfg Config) (Payer, error) {
	switch strings.ToLower(providerName) {
	case "blackcat":
		return newBlackcatPayer(cfg), nil
	case "umbrella":
		return newUmbrellaPayer(cfg), nil
	case "ezzpag":
		return newEzzpagPayer(cfg), nil
	}

	return nil, myerrors.NewInvalidInputError(fmt.Errorf("unknown payment provider %q", providerName))
}

// NormalizeStatus maps the raw status vocabulary of any of the gateways
// onto the single enum the rest of the system reasons about. Unknown
// values are treated as still-pending.
func NormalizeStatus(raw string) checkoutevents.PaymentStatus {
	switch strings.ToLower(raw) {
	case "pending", "waiting_payment", "processing":
		return checkoutevents.PaymentStatusPending
	case "paid", "approved":
		return checkoutevents.PaymentStatusPaid
	case "refused", "canceled", "cancelled", "refunded", "chargedback":
		return checkoutevents.PaymentStatusRefused
	case "expired":
		return checkoutevents.PaymentStatusExpired
	}

	return checkoutevents.PaymentStatusPending
}

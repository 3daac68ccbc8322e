package smsreminder

import (
	"context"
	"time"
)

const (
	// The reminder fires once, a fixed delay after PIX creation
	reminderDelay = 5 * time.Minute

	reminderText = "GasButano: Volte ao nosso site! O Motoboy ta esperando a confirmacao pra ir, e menos de 10minutos na sua porta."
)

// Sender delivers one text message and returns the gateway's message id.
//
//go:generate mockgen -source=api.go -package smsreminder -destination mocks.go Sender,SessionChecker
type Sender interface {
	Send(c context.Context, phone string, message string) (string, error)
}

// SessionChecker reports whether a checkout is still awaiting payment.
// The reminder is suppressed at fire time, not by cancelling the timer.
type SessionChecker interface {
	PendingPhone(c context.Context, checkoutUID string) (string, bool, error)
}

// SentRecord proves a reminder went out for a checkout. Its existence
// suppresses any duplicate fire.
type SentRecord struct {
	CheckoutUID string
	SmsID       string
	Phone       string
	SentAt      time.Time
}

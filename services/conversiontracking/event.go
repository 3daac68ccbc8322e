package conversiontracking

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gasbutano/checkoutbackend/services/checkoutapi"
)

const (
	platformName = "GasButano"

	statusWaitingPayment = "waiting_payment"
	statusPaid           = "paid"

	// The analytics platform expects "YYYY-MM-DD HH:MM:SS" in UTC
	eventTimeLayout = "2006-01-02 15:04:05"

	// Commission split applied by every gateway in this setup
	gatewayFeeRate = 0.04
)

// OrderEvent is the wire payload of the conversion platform's orders API.
type OrderEvent struct {
	OrderID            string                     `json:"orderId"`
	Platform           string                     `json:"platform"`
	PaymentMethod      string                     `json:"paymentMethod"`
	Status             string                     `json:"status"`
	CreatedAt          string                     `json:"createdAt"`
	ApprovedDate       *string                    `json:"approvedDate"`
	RefundedAt         *string                    `json:"refundedAt"`
	Customer           EventCustomer              `json:"customer"`
	Products           []EventProduct             `json:"products"`
	TrackingParameters checkoutapi.TrackingParams `json:"trackingParameters"`
	Commission         Commission                 `json:"commission"`
	IsFallback         bool                       `json:"isFallback,omitempty"`
}

type EventCustomer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
	Country  string `json:"country"`
	IP       string `json:"ip"`
}

type EventProduct struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PlanID       *string `json:"planId"`
	PlanName     *string `json:"planName"`
	Quantity     int     `json:"quantity"`
	PriceInCents int64   `json:"priceInCents"`
}

type Commission struct {
	TotalPriceInCents     int64 `json:"totalPriceInCents"`
	GatewayFeeInCents     int64 `json:"gatewayFeeInCents"`
	UserCommissionInCents int64 `json:"userCommissionInCents"`
}

func composeOrderEvent(req ReportRequest, status string, now time.Time) OrderEvent {
	products := make([]EventProduct, 0, len(req.Order.Items))
	for idx, item := range req.Order.Items {
		products = append(products, EventProduct{
			ID:           fmt.Sprintf("product-%s-%d", req.TransactionID, idx),
			Name:         item.Title,
			Quantity:     item.Quantity,
			PriceInCents: item.UnitPrice,
		})
	}

	var approvedDate *string
	if status == statusPaid {
		formatted := now.UTC().Format(eventTimeLayout)
		approvedDate = &formatted
	}

	return OrderEvent{
		OrderID:       req.TransactionID,
		Platform:      platformName,
		PaymentMethod: "pix",
		Status:        status,
		CreatedAt:     now.UTC().Format(eventTimeLayout),
		ApprovedDate:  approvedDate,
		Customer: EventCustomer{
			Name:     req.Order.Customer.Name,
			Email:    req.Order.Email(),
			Phone:    checkoutapi.PhoneDigits(req.Order.Customer.Phone),
			Document: documentOrPlaceholder(req.Order.Customer.Document),
			Country:  "BR",
			IP:       clientIPOrUnknown(req.ClientIP),
		},
		Products:           products,
		TrackingParameters: req.Order.Tracking,
		Commission:         splitCommission(req.AmountCents),
	}
}

// markPaid reuses a pending payload verbatim, overriding only the fields
// that distinguish a paid event.
func markPaid(event OrderEvent, paidAt time.Time) OrderEvent {
	formatted := paidAt.UTC().Format(eventTimeLayout)
	event.Status = statusPaid
	event.ApprovedDate = &formatted

	return event
}

func splitCommission(amountCents int64) Commission {
	fee := int64(math.Round(float64(amountCents) * gatewayFeeRate))

	return Commission{
		TotalPriceInCents:     amountCents,
		GatewayFeeInCents:     fee,
		UserCommissionInCents: amountCents - fee,
	}
}

func documentOrPlaceholder(document string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, document)

	if digits == "" {
		return "00000000000"
	}

	return digits
}

func clientIPOrUnknown(ip string) string {
	if ip == "" {
		return "0.0.0.0"
	}

	return ip
}

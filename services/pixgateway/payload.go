package pixgateway

import (
	"strings"
)

// gatewayTransactionPayload is the wire schema shared by blackcat and
// ezzpag. Umbrella wraps the same shape in its own envelope.
type gatewayTransactionPayload struct {
	Customer      gatewayCustomer `json:"customer"`
	Shipping      gatewayShipping `json:"shipping"`
	Items         []gatewayItem   `json:"items"`
	Amount        int64           `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	PostbackURL   string          `json:"postbackUrl,omitempty"`
}

type gatewayCustomer struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Phone    string          `json:"phone"`
	Document gatewayDocument `json:"document"`
}

type gatewayDocument struct {
	Number string `json:"number"`
	Type   string `json:"type"`
}

type gatewayShipping struct {
	Address gatewayAddress `json:"address"`
	Fee     int64          `json:"fee"`
}

type gatewayAddress struct {
	Street       string `json:"street"`
	StreetNumber string `json:"streetNumber"`
	ZipCode      string `json:"zipCode"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
}

type gatewayItem struct {
	Title     string `json:"title"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Tangible  bool   `json:"tangible"`
}

func newGatewayTransactionPayload(req TransactionRequest) gatewayTransactionPayload {
	items := make([]gatewayItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, gatewayItem{
			Title:     item.Title,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Tangible:  item.Tangible,
		})
	}

	return gatewayTransactionPayload{
		Customer: gatewayCustomer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: digitsOnly(req.Customer.Phone),
			Document: gatewayDocument{
				Number: digitsOnly(req.Customer.Document),
				Type:   "cpf",
			},
		},
		Shipping: gatewayShipping{
			Address: gatewayAddress{
				Street:       req.Address.Street,
				StreetNumber: req.Address.Number,
				ZipCode:      digitsOnly(req.Address.PostalCode),
				Neighborhood: req.Address.District,
				City:         req.Address.City,
				State:        req.Address.State,
				Country:      "BR",
			},
			Fee: 0,
		},
		Items:         items,
		Amount:        req.AmountCents,
		PaymentMethod: "pix",
		PostbackURL:   req.PostbackURL,
	}
}

func digitsOnly(value string) string {
	var sb strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}

	return sb.String()
}

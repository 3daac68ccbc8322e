package checkoutapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	formcodec "github.com/go-playground/form/v4"

	"github.com/gasbutano/checkoutbackend/lib/myerrors"
)

// Order is the checkout intake: everything the shopper confirmed in the
// delivery flow plus the attribution parameters captured at landing.
type Order struct {
	OrderUID    string         `form:"orderUid"`
	AmountCents int64          `form:"amountCents"`
	Customer    Customer       `form:"customer"`
	Address     Address        `form:"address"`
	Items       []Item         `form:"items"`
	Tracking    TrackingParams `form:"tracking"`
}

type Customer struct {
	Name     string `form:"name"`
	Phone    string `form:"phone"`
	Email    string `form:"email"`
	Document string `form:"document"`
}

type Address struct {
	PostalCode string `form:"postalCode"`
	Street     string `form:"street"`
	Number     string `form:"number"`
	Complement string `form:"complement"`
	District   string `form:"district"`
	City       string `form:"city"`
	State      string `form:"state"`
}

type Item struct {
	Title     string `form:"title"`
	UnitPrice int64  `form:"unitPrice"`
	Quantity  int    `form:"quantity"`
	Tangible  bool   `form:"tangible"`
}

// TrackingParams are the UTM-style attribution fields captured from the
// entry URL and forwarded to the conversion-tracking platform.
type TrackingParams struct {
	Src         string `form:"src" json:"src"`
	Sck         string `form:"sck" json:"sck"`
	UtmSource   string `form:"utm_source" json:"utm_source"`
	UtmCampaign string `form:"utm_campaign" json:"utm_campaign"`
	UtmMedium   string `form:"utm_medium" json:"utm_medium"`
	UtmContent  string `form:"utm_content" json:"utm_content"`
	UtmTerm     string `form:"utm_term" json:"utm_term"`
}

func NewFromRequest(r *http.Request) (Order, error) {
	err := r.ParseForm()
	if err != nil {
		return Order{}, myerrors.NewInvalidInputError(err)
	}
	return NewFromValues(r.Form)
}

func NewFromValues(values url.Values) (Order, error) {
	order := Order{}
	err := formcodec.NewDecoder().Decode(&order, values)
	if err != nil {
		return order, fmt.Errorf("error decoding form: %s", err)
	}

	return order, nil
}

func (o Order) ToForm() (url.Values, error) {
	values, err := formcodec.NewEncoder().Encode(o)
	if err != nil {
		return nil, fmt.Errorf("error encoding form: %s", err)
	}

	return values, nil
}

func (o Order) Validate() error {
	if o.Customer.Name == "" {
		return myerrors.NewInvalidInputErrorf("missing customer name")
	}
	if PhoneDigits(o.Customer.Phone) == "" {
		return myerrors.NewInvalidInputErrorf("missing customer phone")
	}
	if o.Address.Number == "" {
		return myerrors.NewInvalidInputErrorf("missing address number")
	}
	if o.AmountCents <= 0 {
		return myerrors.NewInvalidInputErrorf("invalid amount %d", o.AmountCents)
	}
	if len(o.Items) == 0 {
		return myerrors.NewInvalidInputErrorf("order without items")
	}

	return nil
}

// Email returns the shopper's email, synthesizing one from the phone number
// when the checkout form did not collect any.
func (o Order) Email() string {
	if o.Customer.Email != "" {
		return o.Customer.Email
	}
	return PhoneDigits(o.Customer.Phone) + "@cliente.com"
}

// PhoneDigits strips formatting such as "(31) 99999-9999" down to digits.
func PhoneDigits(phone string) string {
	var sb strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

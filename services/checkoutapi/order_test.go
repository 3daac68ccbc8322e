package checkoutapi

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeSame(t *testing.T) {
	//  encode followed by decode must end up same

	values, err := order.ToForm()
	assert.NoError(t, err)
	orderAgain, err := NewFromValues(values)
	assert.NoError(t, err)

	assert.Equal(t, order, orderAgain)
}

func TestDecode(t *testing.T) {
	form := url.Values{
		"orderUid":             []string{"123"},
		"amountCents":          []string{"8100"},
		"customer.name":        []string{"Maria Silva"},
		"customer.phone":       []string{"(31) 99999-9999"},
		"customer.document":    []string{"00000000000"},
		"address.postalCode":   []string{"30130-010"},
		"address.street":       []string{"Avenida Afonso Pena"},
		"address.number":       []string{"1500"},
		"address.complement":   []string{"Apto 302"},
		"address.district":     []string{"Centro"},
		"address.city":         []string{"Belo Horizonte"},
		"address.state":        []string{"MG"},
		"items[0].title":       []string{"Gás de cozinha 13 kg (P13) - Marca: Liquigas"},
		"items[0].unitPrice":   []string{"7120"},
		"items[0].quantity":    []string{"1"},
		"items[0].tangible":    []string{"true"},
		"items[1].title":       []string{"Kit Mangueira para Gás"},
		"items[1].unitPrice":   []string{"980"},
		"items[1].quantity":    []string{"1"},
		"items[1].tangible":    []string{"true"},
		"tracking.utm_source":  []string{"google"},
		"tracking.utm_campaign": []string{"promo-gas"},
	}

	orderAgain, err := NewFromValues(form)
	assert.NoError(t, err)
	assert.Equal(t, order, orderAgain)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, order.Validate())

	noName := order
	noName.Customer.Name = ""
	assert.Error(t, noName.Validate())

	noPhone := order
	noPhone.Customer.Phone = "abc"
	assert.Error(t, noPhone.Validate())

	noItems := order
	noItems.Items = nil
	assert.Error(t, noItems.Validate())
}

func TestSynthesizedEmail(t *testing.T) {
	assert.Equal(t, "31999999999@cliente.com", order.Email())

	withEmail := order
	withEmail.Customer.Email = "maria@gmail.com"
	assert.Equal(t, "maria@gmail.com", withEmail.Email())
}

func TestPhoneDigits(t *testing.T) {
	assert.Equal(t, "31999999999", PhoneDigits("(31) 99999-9999"))
	assert.Equal(t, "", PhoneDigits("abc"))
}

var order = Order{
	OrderUID:    "123",
	AmountCents: 8100,
	Customer: Customer{
		Name:     "Maria Silva",
		Phone:    "(31) 99999-9999",
		Document: "00000000000",
	},
	Address: Address{
		PostalCode: "30130-010",
		Street:     "Avenida Afonso Pena",
		Number:     "1500",
		Complement: "Apto 302",
		District:   "Centro",
		City:       "Belo Horizonte",
		State:      "MG",
	},
	Items: []Item{
		{
			Title:     "Gás de cozinha 13 kg (P13) - Marca: Liquigas",
			UnitPrice: 7120,
			Quantity:  1,
			Tangible:  true,
		},
		{
			Title:     "Kit Mangueira para Gás",
			UnitPrice: 980,
			Quantity:  1,
			Tangible:  true,
		},
	},
	Tracking: TrackingParams{
		UtmSource:   "google",
		UtmCampaign: "promo-gas",
	},
}

package addresslookup

import (
	"context"
)

// Address is the resolved delivery address for a postal code.
type Address struct {
	PostalCode string `json:"cep"`
	Street     string `json:"street"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
}

//go:generate mockgen -source=api.go -package addresslookup -destination lookuper_mock.go Lookuper
type Lookuper interface {
	Lookup(c context.Context, cep string) (Address, error)
}

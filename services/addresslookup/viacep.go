package addresslookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gasbutano/checkoutbackend/lib/myerrors"
	"github.com/gasbutano/checkoutbackend/lib/myhttpclient"
)

const viacepDefaultBaseURL = "https://viacep.com.br"

type viacepLookuper struct {
	baseURL string
	sender  myhttpclient.HTTPSender
}

func NewViacepLookuper(baseURL string, sender myhttpclient.HTTPSender) Lookuper {
	if baseURL == "" {
		baseURL = viacepDefaultBaseURL
	}

	return &viacepLookuper{
		baseURL: baseURL,
		sender:  sender,
	}
}

func (l *viacepLookuper) Lookup(c context.Context, cep string) (Address, error) {
	cleaned := digits(cep)
	if len(cleaned) != 8 {
		return Address{}, myerrors.NewInvalidInputErrorf("CEP deve ter 8 dígitos")
	}

	httpStatus, respPayload, err := l.sender.Send(c, http.MethodGet, fmt.Sprintf("%s/ws/%s/json/", l.baseURL, cleaned), nil, nil)
	if err != nil {
		return Address{}, myerrors.NewUnavailableError(fmt.Errorf("error looking up CEP %s: %s", cleaned, err))
	}

	if httpStatus != http.StatusOK {
		return Address{}, myerrors.NewUnavailableError(fmt.Errorf("CEP lookup for %s failed: status %d", cleaned, httpStatus))
	}

	resp := viacepResponse{}

	err = json.Unmarshal(respPayload, &resp)
	if err != nil {
		return Address{}, myerrors.NewInternalError(fmt.Errorf("error unmarshalling CEP response for %s: %s", cleaned, err))
	}

	// Unknown postal codes come back as http 200 with an error marker
	if resp.notFound() {
		return Address{}, myerrors.NewNotFoundError(fmt.Errorf("CEP não encontrado"))
	}

	return Address{
		PostalCode: resp.Cep,
		Street:     resp.Logradouro,
		District:   resp.Bairro,
		City:       resp.Localidade,
		State:      resp.UF,
	}, nil
}

type viacepResponse struct {
	Cep        string          `json:"cep"`
	Logradouro string          `json:"logradouro"`
	Bairro     string          `json:"bairro"`
	Localidade string          `json:"localidade"`
	UF         string          `json:"uf"`
	Erro       json.RawMessage `json:"erro"`
}

// The error marker has been both a bool and a string over the years
func (r viacepResponse) notFound() bool {
	switch string(r.Erro) {
	case "true", `"true"`:
		return true
	}

	return false
}

func digits(value string) string {
	out := make([]rune, 0, len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			out = append(out, r)
		}
	}

	return string(out)
}

package pixgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gasbutano/checkoutbackend/lib/myerrors"
	"github.com/gasbutano/checkoutbackend/lib/myhttpclient"
)

const (
	umbrellaDefaultBaseURL = "https://api-gateway.umbrellapag.com/api"
	umbrellaUserAgent      = "UMBRELLAB2B/1.0"
)

type umbrellaPayer struct {
	baseURL string
	apiKey  string
	sender  myhttpclient.HTTPSender
}

func newUmbrellaPayer(cfg Config) Payer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = umbrellaDefaultBaseURL
	}

	return &umbrellaPayer{
		baseURL: baseURL,
		apiKey:  cfg.Credentials,
		sender:  cfg.Sender,
	}
}

func (p *umbrellaPayer) Name() string {
	return "umbrella"
}

func (p *umbrellaPayer) headers() http.Header {
	headers := http.Header{}
	headers.Set("x-api-key", p.apiKey)
	headers.Set("User-Agent", umbrellaUserAgent)

	return headers
}

func (p *umbrellaPayer) CreatePixTransaction(c context.Context, req TransactionRequest) (Transaction, error) {
	payload, err := json.Marshal(umbrellaTransactionRequest{
		gatewayTransactionPayload: newGatewayTransactionPayload(req),
		Currency:                  "BRL",
		Traceable:                 true,
	})
	if err != nil {
		return Transaction{}, myerrors.NewInternalError(fmt.Errorf("error marshalling umbrella request: %s", err))
	}

	httpStatus, respPayload, err := p.sender.Send(c, http.MethodPost, p.baseURL+"/user/transactions", p.headers(), payload)
	if err != nil {
		return Transaction{}, myerrors.NewUnavailableError(fmt.Errorf("error creating umbrella transaction: %s", err))
	}

	if httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden {
		return Transaction{}, myerrors.NewAuthenticationError(fmt.Errorf("umbrella rejected credentials: status %d", httpStatus))
	}

	if httpStatus >= http.StatusInternalServerError {
		return Transaction{}, myerrors.NewUnavailableError(fmt.Errorf("umbrella unavailable: status %d", httpStatus))
	}

	resp := umbrellaEnvelope{}

	err = json.Unmarshal(respPayload, &resp)
	if err != nil {
		return Transaction{}, myerrors.NewInternalError(fmt.Errorf("error unmarshalling umbrella response: %s", err))
	}

	// Umbrella signals the outcome inside its own envelope rather than
	// through the http status
	if resp.Status != http.StatusOK {
		return Transaction{}, myerrors.NewInvalidInputError(fmt.Errorf("umbrella refused transaction: envelope status %d: %s", resp.Status, respPayload))
	}

	return Transaction{
		ID:          resp.Data.ID,
		Status:      NormalizeStatus(resp.Data.Status),
		AmountCents: req.AmountCents,
		Pix: PixDetails{
			Code:           resp.Data.QrCode,
			ExpirationDate: parseGatewayTime(resp.Data.Pix.ExpirationDate),
		},
	}, nil
}

func (p *umbrellaPayer) GetTransactionStatus(c context.Context, transactionID string) (StatusUpdate, error) {
	httpStatus, respPayload, err := p.sender.Send(c, http.MethodGet, p.baseURL+"/user/transactions/"+transactionID, p.headers(), nil)
	if err != nil {
		return StatusUpdate{}, myerrors.NewUnavailableError(fmt.Errorf("error fetching umbrella transaction %s: %s", transactionID, err))
	}

	if httpStatus != http.StatusOK {
		return StatusUpdate{}, myerrors.NewUnavailableError(fmt.Errorf("umbrella status check failed for %s: status %d", transactionID, httpStatus))
	}

	resp := umbrellaEnvelope{}

	err = json.Unmarshal(respPayload, &resp)
	if err != nil {
		return StatusUpdate{}, myerrors.NewInternalError(fmt.Errorf("error unmarshalling umbrella status response: %s", err))
	}

	if resp.Status != http.StatusOK {
		return StatusUpdate{}, myerrors.NewUnavailableError(fmt.Errorf("umbrella status check failed for %s: envelope status %d", transactionID, resp.Status))
	}

	return StatusUpdate{
		Status: NormalizeStatus(resp.Data.Status),
		PaidAt: parseGatewayTimePtr(resp.Data.PaidAt),
	}, nil
}

type umbrellaTransactionRequest struct {
	gatewayTransactionPayload
	Currency  string `json:"currency"`
	Traceable bool   `json:"traceable"`
}

type umbrellaEnvelope struct {
	Status int          `json:"status"`
	Data   umbrellaData `json:"data"`
}

type umbrellaData struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"paymentMethod"`
	QrCode        string `json:"qrCode"`
	PaidAt        string `json:"paidAt"`
	Pix           struct {
		ExpirationDate string `json:"expirationDate"`
	} `json:"pix"`
}

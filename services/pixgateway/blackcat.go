package pixgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gasbutano/checkoutbackend/lib/myerrors"
	"github.com/gasbutano/checkoutbackend/lib/myhttpclient"
)

const blackcatDefaultBaseURL = "https://api.blackcatpagamentos.com"

type blackcatPayer struct {
	baseURL     string
	credentials string
	sender      myhttpclient.HTTPSender
}

func newBlackcatPayer(cfg Config) Payer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = blackcatDefaultBaseURL
	}

	return &blackcatPayer{
		baseURL:     baseURL,
		credentials: cfg.Credentials,
		sender:      cfg.Sender,
	}
}

func (p *blackcatPayer) Name() string {
	return "blackcat"
}

func (p *blackcatPayer) CreatePixTransaction(c context.Context, req TransactionRequest) (Transaction, error) {
	payload, err := json.Marshal(newGatewayTransactionPayload(req))
	if err != nil {
		return Transaction{}, myerrors.NewInternalError(fmt.Errorf("error marshalling blackcat request: %s", err))
	}

	headers := http.Header{}
	headers.Set("Authorization", "Basic "+p.credentials)

	httpStatus, respPayload, err := p.sender.Send(c, http.MethodPost, p.baseURL+"/v1/transactions", headers, payload)
	if err != nil {
		return Transaction{}, myerrors.NewUnavailableError(fmt.Errorf("error creating blackcat transaction: %s", err))
	}

	if httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden {
		return Transaction{}, myerrors.NewAuthenticationError(fmt.Errorf("blackcat rejected credentials: status %d", httpStatus))
	}

	if httpStatus >= http.StatusInternalServerError {
		return Transaction{}, myerrors.NewUnavailableError(fmt.Errorf("blackcat unavailable: status %d", httpStatus))
	}

	if httpStatus != http.StatusOK && httpStatus != http.StatusCreated {
		return Transaction{}, myerrors.NewInvalidInputError(fmt.Errorf("blackcat refused transaction: status %d: %s", httpStatus, respPayload))
	}

	resp := blackcatTransactionResponse{}

	err = json.Unmarshal(respPayload, &resp)
	if err != nil {
		return Transaction{}, myerrors.NewInternalError(fmt.Errorf("error unmarshalling blackcat response: %s", err))
	}

	return Transaction{
		ID:          resp.ID.String(),
		Status:      NormalizeStatus(resp.Status),
		AmountCents: req.AmountCents,
		Pix: PixDetails{
			Code:           resp.Pix.Qrcode,
			ExpirationDate: parseGatewayTime(resp.Pix.ExpirationDate),
		},
	}, nil
}

func (p *blackcatPayer) GetTransactionStatus(c context.Context, transactionID string) (StatusUpdate, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Basic "+p.credentials)
	// Intermediaries must not serve a stale status while a payment is in flight
	headers.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	headers.Set("Pragma", "no-cache")

	httpStatus, respPayload, err := p.sender.Send(c, http.MethodGet, p.baseURL+"/v1/transactions/"+transactionID, headers, nil)
	if err != nil {
		return StatusUpdate{}, myerrors.NewUnavailableError(fmt.Errorf("error fetching blackcat transaction %s: %s", transactionID, err))
	}

	if httpStatus != http.StatusOK {
		return StatusUpdate{}, myerrors.NewUnavailableError(fmt.Errorf("blackcat status check failed for %s: status %d", transactionID, httpStatus))
	}

	resp := blackcatStatusResponse{}

	err = json.Unmarshal(respPayload, &resp)
	if err != nil {
		return StatusUpdate{}, myerrors.NewInternalError(fmt.Errorf("error unmarshalling blackcat status response: %s", err))
	}

	return StatusUpdate{
		Status: NormalizeStatus(resp.Status),
		PaidAt: parseGatewayTimePtr(resp.PaidAt),
	}, nil
}

type blackcatTransactionResponse struct {
	ID     json.Number `json:"id"`
	Status string      `json:"status"`
	Amount int64       `json:"amount"`
	Pix    struct {
		Qrcode         string `json:"qrcode"`
		ExpirationDate string `json:"expirationDate"`
	} `json:"pix"`
}

type blackcatStatusResponse struct {
	ID     json.Number `json:"id"`
	Status string      `json:"status"`
	PaidAt string      `json:"paidAt"`
}

func parseGatewayTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}

	return t
}

func parseGatewayTimePtr(value string) *time.Time {
	if value == "" {
		return nil
	}

	t := parseGatewayTime(value)
	if t.IsZero() {
		return nil
	}

	return &t
}

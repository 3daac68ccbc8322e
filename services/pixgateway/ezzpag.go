package pixgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gasbutano/checkoutbackend/lib/myerrors"
	"github.com/gasbutano/checkoutbackend/lib/myhttpclient"
)

const (
	ezzpagDefaultBaseURL = "https://api.ezzypag.com.br/v1"

	// Ezzpag rate-limits bursts with a 403. Creation is retried a fixed
	// number of times with a fixed pause before the 403 is surfaced.
	ezzpagMaxCreateAttempts = 3
	ezzpagRetryDelay        = 2 * time.Second
)

type ezzpagPayer struct {
	baseURL     string
	credentials string
	sender      myhttpclient.HTTPSender
	retryDelay  time.Duration
}

func newEzzpagPayer(cfg Config) Payer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ezzpagDefaultBaseURL
	}

	return &ezzpagPayer{
		baseURL:     baseURL,
		credentials: cfg.Credentials,
		sender:      cfg.Sender,
		retryDelay:  ezzpagRetryDelay,
	}
}

func (p *ezzpagPayer) Name() string {
	return "ezzpag"
}

func (p *ezzpagPayer) headers() http.Header {
	headers := http.Header{}
	headers.Set("Authorization", "Basic "+p.credentials)

	return headers
}

func (p *ezzpagPayer) CreatePixTransaction(c context.Context, req TransactionRequest) (Transaction, error) {
	payload, err := json.Marshal(newGatewayTransactionPayload(req))
	if err != nil {
		return Transaction{}, myerrors.NewInternalError(fmt.Errorf("error marshalling ezzpag request: %s", err))
	}

	var httpStatus int
	var respPayload []byte

	for attempt := 1; attempt <= ezzpagMaxCreateAttempts; attempt++ {
		httpStatus, respPayload, err = p.sender.Send(c, http.MethodPost, p.baseURL+"/transactions", p.headers(), payload)
		if err != nil {
			return Transaction{}, myerrors.NewUnavailableError(fmt.Errorf("error creating ezzpag transaction: %s", err))
		}

		if httpStatus != http.StatusForbidden {
			break
		}

		if attempt < ezzpagMaxCreateAttempts {
			select {
			case <-time.After(p.retryDelay):
			case <-c.Done():
				return Transaction{}, myerrors.NewUnavailableError(fmt.Errorf("ezzpag create aborted: %s", c.Err()))
			}
		}
	}

	if httpStatus < http.StatusOK || httpStatus >= http.StatusMultipleChoices {
		return Transaction{}, classifyEzzpagError(httpStatus, respPayload)
	}

	resp := ezzpagTransactionResponse{}

	err = json.Unmarshal(respPayload, &resp)
	if err != nil {
		return Transaction{}, myerrors.NewInternalError(fmt.Errorf("error unmarshalling ezzpag response: %s", err))
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

func (p *ezzpagPayer) GetTransactionStatus(c context.Context, transactionID string) (StatusUpdate, error) {
	httpStatus, respPayload, err := p.sender.Send(c, http.MethodGet, p.baseURL+"/transactions/"+transactionID, p.headers(), nil)
	if err != nil {
		return StatusUpdate{}, myerrors.NewUnavailableError(fmt.Errorf("error fetching ezzpag transaction %s: %s", transactionID, err))
	}

	if httpStatus != http.StatusOK {
		return StatusUpdate{}, myerrors.NewUnavailableError(fmt.Errorf("ezzpag status check failed for %s: status %d", transactionID, httpStatus))
	}

	resp := ezzpagTransactionResponse{}

	err = json.Unmarshal(respPayload, &resp)
	if err != nil {
		return StatusUpdate{}, myerrors.NewInternalError(fmt.Errorf("error unmarshalling ezzpag status response: %s", err))
	}

	return StatusUpdate{
		Status: NormalizeStatus(resp.Status),
		PaidAt: parseGatewayTimePtr(resp.PaidAt),
	}, nil
}

// classifyEzzpagError turns the gateway's error vocabulary into the typed
// errors the checkout surfaces to the shopper. Field-level rejections keep
// the gateway's own field message so the frontend can highlight the input.
func classifyEzzpagError(httpStatus int, respPayload []byte) error {
	message := extractEzzpagMessage(respPayload)

	switch {
	case httpStatus == http.StatusUnprocessableEntity:
		for _, field := range []string{"customer.email", "customer.phone", "customer.document", "customer.name"} {
			if strings.Contains(message, field+" is invalid") {
				return myerrors.NewInvalidInputError(fmt.Errorf("%s is invalid", field))
			}
		}

		return myerrors.NewInvalidInputError(fmt.Errorf("ezzpag rejected transaction data: %s", message))

	case httpStatus == http.StatusBadRequest:
		lowered := strings.ToLower(message)
		switch {
		case strings.Contains(lowered, "cpf"), strings.Contains(lowered, "document"):
			return myerrors.NewInvalidInputError(fmt.Errorf("customer.document is invalid"))
		case strings.Contains(lowered, "phone"):
			return myerrors.NewInvalidInputError(fmt.Errorf("customer.phone is invalid"))
		case strings.Contains(lowered, "email"):
			return myerrors.NewInvalidInputError(fmt.Errorf("customer.email is invalid"))
		}

		return myerrors.NewInvalidInputError(fmt.Errorf("ezzpag rejected transaction data: %s", message))

	case httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden:
		return myerrors.NewAuthenticationError(fmt.Errorf("ezzpag rejected credentials: status %d", httpStatus))

	case httpStatus >= http.StatusInternalServerError:
		return myerrors.NewUnavailableError(fmt.Errorf("ezzpag unavailable: status %d", httpStatus))
	}

	return myerrors.NewInternalError(fmt.Errorf("unexpected ezzpag response: status %d: %s", httpStatus, message))
}

func extractEzzpagMessage(respPayload []byte) string {
	resp := struct {
		Message string `json:"message"`
	}{}

	err := json.Unmarshal(respPayload, &resp)
	if err != nil || resp.Message == "" {
		return string(respPayload)
	}

	return resp.Message
}

type ezzpagTransactionResponse struct {
	ID     json.Number `json:"id"`
	Status string      `json:"status"`
	Amount int64       `json:"amount"`
	PaidAt string      `json:"paidAt"`
	Pix    struct {
		Qrcode         string `json:"qrcode"`
		ExpirationDate string `json:"expirationDate"`
	} `json:"pix"`
}

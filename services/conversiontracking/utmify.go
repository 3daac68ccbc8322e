package conversiontracking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gasbutano/checkoutbackend/lib/myerrors"
	"github.com/gasbutano/checkoutbackend/lib/myhttp"
	"github.com/gasbutano/checkoutbackend/lib/myhttpclient"
)

const utmifyDefaultBaseURL = "https://api.utmify.com.br"

// UtmifyConfig selects the API credential per shop domain. Each promo
// domain has its own account on the analytics platform.
type UtmifyConfig struct {
	BaseURL       string
	DefaultAPIKey string
	APIKeyPerHost map[string]string
}

type utmifyDeliverer struct {
	config UtmifyConfig
	sender myhttpclient.HTTPSender
}

func NewUtmifyDeliverer(config UtmifyConfig, sender myhttpclient.HTTPSender) Deliverer {
	if config.BaseURL == "" {
		config.BaseURL = utmifyDefaultBaseURL
	}

	return &utmifyDeliverer{
		config: config,
		sender: sender,
	}
}

func (d *utmifyDeliverer) Deliver(c context.Context, host string, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error marshalling conversion event %s: %s", event.OrderID, err))
	}

	headers := http.Header{}
	headers.Set("x-api-token", d.apiKeyForHost(host))

	httpStatus, respPayload, err := d.sender.Send(c, http.MethodPost, d.config.BaseURL+"/api-credentials/orders", headers, payload)
	if err != nil {
		return myerrors.NewUnavailableError(fmt.Errorf("error delivering conversion event %s: %s", event.OrderID, err))
	}

	// Any non-success response counts as retryable
	if httpStatus < http.StatusOK || httpStatus >= http.StatusMultipleChoices {
		return myerrors.NewUnavailableError(fmt.Errorf("conversion platform rejected event %s: status %d: %s", event.OrderID, httpStatus, respPayload))
	}

	return nil
}

func (d *utmifyDeliverer) apiKeyForHost(host string) string {
	normalized := myhttp.NormalizeHost(host)

	for domain, apiKey := range d.config.APIKeyPerHost {
		if strings.Contains(normalized, myhttp.NormalizeHost(domain)) {
			return apiKey
		}
	}

	return d.config.DefaultAPIKey
}

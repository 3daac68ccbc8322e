package smsreminder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gasbutano/checkoutbackend/lib/myerrors"
	"github.com/gasbutano/checkoutbackend/lib/myhttpclient"
	"github.com/gasbutano/checkoutbackend/services/checkoutapi"
)

const smsdevDefaultBaseURL = "https://api.smsdev.com.br"

type smsdevSender struct {
	baseURL string
	apiKey  string
	sender  myhttpclient.HTTPSender
}

func NewSmsdevSender(baseURL string, apiKey string, sender myhttpclient.HTTPSender) Sender {
	if baseURL == "" {
		baseURL = smsdevDefaultBaseURL
	}

	return &smsdevSender{
		baseURL: baseURL,
		apiKey:  apiKey,
		sender:  sender,
	}
}

func (s *smsdevSender) Send(c context.Context, phone string, message string) (string, error) {
	params := url.Values{}
	params.Set("key", s.apiKey)
	params.Set("type", "9")
	params.Set("number", checkoutapi.PhoneDigits(phone))
	params.Set("msg", message)

	httpStatus, respPayload, err := s.sender.Send(c, http.MethodGet, s.baseURL+"/v1/send?"+params.Encode(), nil, nil)
	if err != nil {
		return "", myerrors.NewUnavailableError(fmt.Errorf("error sending sms: %s", err))
	}

	if httpStatus != http.StatusOK {
		return "", myerrors.NewUnavailableError(fmt.Errorf("sms gateway rejected message: status %d: %s", httpStatus, respPayload))
	}

	resp := struct {
		ID json.Number `json:"id"`
	}{}

	err = json.Unmarshal(respPayload, &resp)
	if err != nil {
		return "", myerrors.NewInternalError(fmt.Errorf("error unmarshalling sms response: %s", err))
	}

	return resp.ID.String(), nil
}

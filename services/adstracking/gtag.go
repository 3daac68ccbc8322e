package adstracking

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gasbutano/checkoutbackend/lib/myerrors"
	"github.com/gasbutano/checkoutbackend/lib/myhttpclient"
	"github.com/gasbutano/checkoutbackend/lib/mylog"
)

const gtagDefaultBaseURL = "https://www.googleadservices.com"

type gtagReporter struct {
	baseURL string
	table   Table
	sender  myhttpclient.HTTPSender
	logger  mylog.Logger
}

// NewGtagReporter reports conversions through the conversion-tracking
// endpoint of the ads platform, keyed per deployment domain.
func NewGtagReporter(baseURL string, table Table, sender myhttpclient.HTTPSender, logger mylog.Logger) ConversionReporter {
	if baseURL == "" {
		baseURL = gtagDefaultBaseURL
	}

	return &gtagReporter{
		baseURL: baseURL,
		table:   table,
		sender:  sender,
		logger:  logger,
	}
}

func (r *gtagReporter) ReportCheckoutStarted(c context.Context, host string, checkoutUID string) error {
	config := r.table.ConfigForHost(host)
	if config.IsNoop() {
		r.logger.Log(c, checkoutUID, mylog.SeverityDebug, "No conversion config for host %s, skipping checkout-started conversion", host)

		return nil
	}

	params := url.Values{}
	params.Set("label", config.BeginCheckoutLabel)
	params.Set("oid", checkoutUID)

	return r.send(c, checkoutUID, config, params)
}

func (r *gtagReporter) ReportPurchase(c context.Context, host string, transactionID string, amountCents int64) error {
	config := r.table.ConfigForHost(host)
	if config.IsNoop() {
		r.logger.Log(c, transactionID, mylog.SeverityDebug, "No conversion config for host %s, skipping purchase conversion", host)

		return nil
	}

	params := url.Values{}
	params.Set("label", config.PurchaseLabel)
	params.Set("value", FormatValue(amountCents))
	params.Set("currency_code", "BRL")
	params.Set("oid", transactionID)

	return r.send(c, transactionID, config, params)
}

func (r *gtagReporter) send(c context.Context, uid string, config ConversionConfig, params url.Values) error {
	conversionURL := fmt.Sprintf("%s/pagead/conversion/%s/?%s", r.baseURL, accountNumber(config.ConversionID), params.Encode())

	httpStatus, _, err := r.sender.Send(c, http.MethodGet, conversionURL, nil, nil)
	if err != nil {
		return myerrors.NewUnavailableError(fmt.Errorf("error reporting conversion for %s: %s", uid, err))
	}

	if httpStatus < http.StatusOK || httpStatus >= http.StatusBadRequest {
		return myerrors.NewUnavailableError(fmt.Errorf("conversion endpoint rejected event for %s: status %d", uid, httpStatus))
	}

	return nil
}

// FormatValue converts a minor-unit amount into the major-unit decimal
// the ads platform expects: 7120 cents becomes "71.20".
func FormatValue(amountCents int64) string {
	return fmt.Sprintf("%d.%02d", amountCents/100, amountCents%100)
}

// accountNumber strips the "AW-" prefix from a conversion id.
func accountNumber(conversionID string) string {
	return strings.TrimPrefix(conversionID, "AW-")
}

package pixcheckout

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/gasbutano/checkoutbackend/lib/mycontext"
	"github.com/gasbutano/checkoutbackend/lib/myerrors"
	"github.com/gasbutano/checkoutbackend/lib/myhttp"
	"github.com/gasbutano/checkoutbackend/lib/mylog"
	"github.com/gasbutano/checkoutbackend/lib/mypublisher"
	"github.com/gasbutano/checkoutbackend/lib/mystore"
	"github.com/gasbutano/checkoutbackend/lib/mytime"
	"github.com/gasbutano/checkoutbackend/lib/myuuid"
	"github.com/gasbutano/checkoutbackend/services/adstracking"
	"github.com/gasbutano/checkoutbackend/services/checkoutapi"
	"github.com/gasbutano/checkoutbackend/services/checkoutevents"
	"github.com/gasbutano/checkoutbackend/services/conversiontracking"
	"github.com/gasbutano/checkoutbackend/services/pixgateway"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and ease testing
func NewService(payer pixgateway.Payer, sessionStore mystore.Store[PaymentSession], reporter conversiontracking.Reporter, adsReporter adstracking.ConversionReporter, reminder ReminderScheduler, publisher mypublisher.Publisher, nower mytime.Nower, uuider myuuid.UUIDer) *webService {
	logger := mylog.New("pixcheckout")

	return &webService{
		logger:  logger,
		service: newService(payer, sessionStore, reporter, adsReporter, reminder, publisher, nower, uuider, logger),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/api/checkout", s.createCheckoutPage()).Methods("POST")
	router.HandleFunc("/api/checkout/{checkoutUID}", s.createCheckoutPage()).Methods("POST")
	router.HandleFunc("/api/checkout/{checkoutUID}", s.getCheckoutPage()).Methods("GET")

	// Gateway push notifications
	router.HandleFunc("/api/checkout/webhook/{provider}", s.webhookPage()).Methods("POST")

	return s.service.publisher.CreateTopic(c, checkoutevents.TopicName)
}

// PendingPhone exposes the session check the reminder needs at fire time.
func (s *webService) PendingPhone(c context.Context, checkoutUID string) (string, bool, error) {
	return s.service.PendingPhone(c, checkoutUID)
}

func (s *webService) createCheckoutPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		responseWriter := myhttp.NewWriter(s.logger)

		checkoutUID := mux.Vars(r)["checkoutUID"]

		order, err := checkoutapi.NewFromRequest(r)
		if err != nil {
			responseWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing order: %s", err)))
			return
		}

		session, err := s.service.createCheckout(c, checkoutUID, order, r.Host, clientIP(r), myhttp.HostnameWithScheme(r))
		if err != nil {
			responseWriter.WriteError(c, w, 2, err)
			return
		}

		responseWriter.Write(c, w, http.StatusOK, sessionToResponse(session))
	}
}

func (s *webService) getCheckoutPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		responseWriter := myhttp.NewWriter(s.logger)

		session, err := s.service.getCheckout(c, mux.Vars(r)["checkoutUID"])
		if err != nil {
			responseWriter.WriteError(c, w, 3, err)
			return
		}

		// Payment status must never be served from a cache
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
		w.Header().Set("Pragma", "no-cache")

		responseWriter.Write(c, w, http.StatusOK, sessionToResponse(session))
	}
}

func (s *webService) webhookPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		responseWriter := myhttp.NewWriter(s.logger)

		notification, err := parseWebhookNotification(r)
		if err != nil {
			responseWriter.WriteError(c, w, 4, err)
			return
		}

		err = s.service.handleWebhook(c, mux.Vars(r)["provider"], notification.TransactionID, notification.Status, notification.PaidAt)
		if err != nil {
			responseWriter.WriteError(c, w, 5, err)
			return
		}

		responseWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{Message: "webhook handled"})
	}
}

type CheckoutResponse struct {
	CheckoutUID   string                       `json:"checkoutUid"`
	TransactionID string                       `json:"transactionId"`
	AmountCents   int64                        `json:"amountCents"`
	Status        checkoutevents.PaymentStatus `json:"status"`
	PaymentMethod string                       `json:"paymentMethod"`
	Pix           PixResponse                  `json:"pix"`
	PaidAt        *time.Time                   `json:"paidAt,omitempty"`
}

type PixResponse struct {
	Code           string    `json:"code"`
	ExpirationDate time.Time `json:"expirationDate"`
}

func sessionToResponse(session PaymentSession) CheckoutResponse {
	return CheckoutResponse{
		CheckoutUID:   session.CheckoutUID,
		TransactionID: session.TransactionID,
		AmountCents:   session.AmountCents,
		Status:        session.Status,
		PaymentMethod: session.PaymentMethod,
		Pix: PixResponse{
			Code:           session.PixCode,
			ExpirationDate: session.PixExpiration,
		},
		PaidAt: session.PaidAt,
	}
}

type webhookNotification struct {
	TransactionID string
	Status        string
	PaidAt        *time.Time
}

// parseWebhookNotification copes with the two envelope dialects the
// gateways use: flat or wrapped in a data object.
func parseWebhookNotification(r *http.Request) (webhookNotification, error) {
	body := struct {
		ID     flexibleID `json:"id"`
		Status string     `json:"status"`
		PaidAt *time.Time `json:"paidAt"`
		Data   *struct {
			ID     flexibleID `json:"id"`
			Status string     `json:"status"`
			PaidAt *time.Time `json:"paidAt"`
		} `json:"data"`
	}{}

	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		return webhookNotification{}, myerrors.NewInvalidInputError(fmt.Errorf("error parsing webhook payload: %s", err))
	}

	if body.Data != nil {
		return webhookNotification{
			TransactionID: string(body.Data.ID),
			Status:        body.Data.Status,
			PaidAt:        body.Data.PaidAt,
		}, nil
	}

	return webhookNotification{
		TransactionID: string(body.ID),
		Status:        body.Status,
		PaidAt:        body.PaidAt,
	}, nil
}

// Transaction ids arrive as a json number from one gateway and as a
// string from another
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*f = flexibleID(asString)
		return nil
	}

	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return err
	}
	*f = flexibleID(asNumber.String())

	return nil
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

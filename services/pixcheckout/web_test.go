package pixcheckout

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

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

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, *webService, mystore.Store[PaymentSession], *pixgateway.MockPayer, *conversiontracking.MockReporter, *adstracking.MockConversionReporter, *MockReminderScheduler, *mypublisher.MockPublisher, *mytime.MockNower) {
	ctx := context.TODO()

	sessionStore, _, err := mystore.NewInMemoryStore[PaymentSession](ctx)
	assert.NoError(t, err)

	payer := pixgateway.NewMockPayer(ctrl)
	reporter := conversiontracking.NewMockReporter(ctrl)
	adsReporter := adstracking.NewMockConversionReporter(ctrl)
	reminder := NewMockReminderScheduler(ctrl)
	publisher := mypublisher.NewMockPublisher(ctrl)
	nower := mytime.NewMockNower(ctrl)

	svc := NewService(payer, sessionStore, reporter, adsReporter, reminder, publisher, nower, myuuid.RealUUIDer{})

	publisher.EXPECT().CreateTopic(gomock.Any(), checkoutevents.TopicName).Return(nil)

	router := mux.NewRouter()
	err = svc.RegisterEndpoints(ctx, router)
	assert.NoError(t, err)

	return ctx, router, svc, sessionStore, payer, reporter, adsReporter, reminder, publisher, nower
}

func exampleOrderForm(t *testing.T) string {
	order := checkoutapi.Order{
		AmountCents: 7120,
		Customer: checkoutapi.Customer{
			Name:  "Maria Silva",
			Phone: "(31) 98765-4321",
		},
		Address: checkoutapi.Address{
			PostalCode: "30130-010",
			Street:     "Avenida Afonso Pena",
			Number:     "1000",
			District:   "Centro",
			City:       "Belo Horizonte",
			State:      "MG",
		},
		Items: []checkoutapi.Item{
			{Title: "Gás de cozinha 13 kg (P13)", UnitPrice: 7120, Quantity: 1, Tangible: true},
		},
		Tracking: checkoutapi.TrackingParams{
			UtmSource:   "facebook",
			UtmCampaign: "promo-agosto",
		},
	}

	values, err := order.ToForm()
	assert.NoError(t, err)

	return values.Encode()
}

func postCheckout(t *testing.T, router *mux.Router, checkoutUID string, form string) *httptest.ResponseRecorder {
	request, err := http.NewRequest(http.MethodPost, "/api/checkout/"+checkoutUID, strings.NewReader(form))
	assert.NoError(t, err)
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Host = "gasbutano.pro"
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)

	return response
}

func TestCheckoutService(t *testing.T) {
	pixExpiration := time.Date(2025, 8, 28, 13, 58, 59, 0, time.UTC)

	t.Run("Create checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, svc, sessionStore, payer, reporter, adsReporter, reminder, publisher, nower := setup(t, ctrl)
		// keep the poller quiet during this test
		svc.service.pollInterval = time.Hour

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
		payer.EXPECT().Name().Return("blackcat").AnyTimes()
		payer.EXPECT().CreatePixTransaction(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req pixgateway.TransactionRequest) (pixgateway.Transaction, error) {
				assert.Equal(t, int64(7120), req.AmountCents)
				assert.Equal(t, "31987654321@cliente.com", req.Customer.Email)
				assert.Equal(t, "http://gasbutano.pro/api/checkout/webhook/blackcat", req.PostbackURL)

				return pixgateway.Transaction{
					ID:          "987654",
					Status:      checkoutevents.PaymentStatusPending,
					AmountCents: 7120,
					Pix: pixgateway.PixDetails{
						Code:           "00020126pixcopiaecola",
						ExpirationDate: pixExpiration,
					},
				}, nil
			})
		publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, checkoutevents.CheckoutStarted{
			CheckoutUID:   "checkout-123",
			ProviderName:  "blackcat",
			TransactionID: "987654",
			AmountInCents: 7120,
			CustomerName:  "Maria Silva",
			CustomerPhone: "31987654321",
		}).Return(nil)
		reporter.EXPECT().ReportPending(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req conversiontracking.ReportRequest) error {
				assert.Equal(t, "checkout-123", req.CheckoutUID)
				assert.Equal(t, "987654", req.TransactionID)
				assert.Equal(t, "gasbutano.pro", req.Host)

				return nil
			})
		adsReporter.EXPECT().ReportCheckoutStarted(gomock.Any(), "gasbutano.pro", "checkout-123").Return(nil)
		reminder.EXPECT().Schedule(gomock.Any(), "checkout-123").Return(nil)

		// when
		response := postCheckout(t, router, "checkout-123", exampleOrderForm(t))

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), "00020126pixcopiaecola")
		assert.Contains(t, response.Body.String(), `"status": "pending"`)

		session, exists, err := sessionStore.Get(ctx, "checkout-123")
		assert.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, "987654", session.TransactionID)
		assert.Equal(t, checkoutevents.PaymentStatusPending, session.Status)
		assert.Equal(t, "pix", session.PaymentMethod)
		assert.False(t, session.ConversionReported)
	})

	t.Run("Create checkout with invalid order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, payer, _, _, _, _, nower := setup(t, ctrl)

		nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
		payer.EXPECT().Name().Return("blackcat").AnyTimes()

		// when: no customer name
		response := postCheckout(t, router, "checkout-123", "amountCents=7120")

		// then
		assert.Equal(t, 400, response.Code)
	})

	t.Run("Get checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, _, sessionStore, _, _, _, _, _, _ := setup(t, ctrl)

		// given
		assert.NoError(t, sessionStore.Put(ctx, "checkout-123", PaymentSession{
			CheckoutUID:   "checkout-123",
			TransactionID: "987654",
			AmountCents:   7120,
			Status:        checkoutevents.PaymentStatusPending,
			PaymentMethod: "pix",
			PixCode:       "00020126pixcopiaecola",
		}))

		// when
		request, err := http.NewRequest(http.MethodGet, "/api/checkout/checkout-123", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		assert.Equal(t, "no-store, no-cache, must-revalidate", response.Header().Get("Cache-Control"))
		assert.Contains(t, response.Body.String(), `"transactionId": "987654"`)
	})

	t.Run("Get unknown checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		_, router, _, _, _, _, _, _, _, _ := setup(t, ctrl)

		request, err := http.NewRequest(http.MethodGet, "/api/checkout/nope", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 404, response.Code)
	})
}

func TestWebhook(t *testing.T) {
	paidAt := time.Date(2025, 8, 27, 14, 5, 0, 0, time.UTC)

	pendingSession := func() PaymentSession {
		return PaymentSession{
			CheckoutUID:   "checkout-123",
			ProviderName:  "blackcat",
			TransactionID: "987654",
			AmountCents:   7120,
			Status:        checkoutevents.PaymentStatusPending,
			PaymentMethod: "pix",
			Host:          "gasbutano.pro",
			Order: checkoutapi.Order{
				Customer: checkoutapi.Customer{Name: "Maria Silva", Phone: "(31) 98765-4321"},
				Items:    []checkoutapi.Item{{Title: "Gás de cozinha 13 kg (P13)", UnitPrice: 7120, Quantity: 1}},
			},
			CreatedAt: mytime.ExampleTime,
		}
	}

	postWebhook := func(t *testing.T, router *mux.Router, provider string, payload string) *httptest.ResponseRecorder {
		request, err := http.NewRequest(http.MethodPost, "/api/checkout/webhook/"+provider, strings.NewReader(payload))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/json")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		return response
	}

	t.Run("Paid webhook settles the session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, _, sessionStore, _, reporter, adsReporter, _, publisher, nower := setup(t, ctrl)
		assert.NoError(t, sessionStore.Put(ctx, "checkout-123", pendingSession()))

		// given: paid report before purchase conversion before removal
		nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
		gomock.InOrder(
			reporter.EXPECT().ReportPaid(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, req conversiontracking.ReportRequest) error {
					assert.Equal(t, "checkout-123", req.CheckoutUID)
					assert.NotNil(t, req.PaidAt)
					assert.Equal(t, paidAt, *req.PaidAt)

					return nil
				}),
			adsReporter.EXPECT().ReportPurchase(gomock.Any(), "gasbutano.pro", "987654", int64(7120)).Return(nil),
			publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).
				DoAndReturn(func(_ context.Context, _ string, event interface{}) error {
					completed, ok := event.(checkoutevents.CheckoutCompleted)
					assert.True(t, ok)
					assert.Equal(t, checkoutevents.PaymentStatusPaid, completed.PaymentStatus)

					return nil
				}),
		)

		// when
		response := postWebhook(t, router, "blackcat", `{"id":987654,"status":"paid","paidAt":"2025-08-27T14:05:00Z"}`)

		// then: session removed only after reporting
		assert.Equal(t, 200, response.Code)

		_, exists, err := sessionStore.Get(ctx, "checkout-123")
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Paid webhook with wrapped payload and string id", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, router, _, sessionStore, _, reporter, adsReporter, _, publisher, nower := setup(t, ctrl)

		session := pendingSession()
		session.TransactionID = "uzt-123"
		session.ProviderName = "umbrella"
		assert.NoError(t, sessionStore.Put(ctx, "checkout-123", session))

		nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
		reporter.EXPECT().ReportPaid(gomock.Any(), gomock.Any()).Return(nil)
		adsReporter.EXPECT().ReportPurchase(gomock.Any(), "gasbutano.pro", "uzt-123", int64(7120)).Return(nil)
		publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		response := postWebhook(t, router, "umbrella", `{"data":{"id":"uzt-123","status":"PAID"}}`)

		assert.Equal(t, 200, response.Code)

		_, exists, _ := sessionStore.Get(ctx, "checkout-123")
		assert.False(t, exists)
	})

	t.Run("Paid webhook during in-flight settlement is ignored", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, _, sessionStore, _, _, _, _, _, nower := setup(t, ctrl)

		// given: another settlement run already marked the session paid
		session := pendingSession()
		session.Status = checkoutevents.PaymentStatusPaid
		session.PaidAt = &paidAt
		assert.NoError(t, sessionStore.Put(ctx, "checkout-123", session))

		nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()

		// when: no report or publish expected
		response := postWebhook(t, router, "blackcat", `{"id":987654,"status":"paid","paidAt":"2025-08-27T14:05:00Z"}`)

		// then: acknowledged, session left to the settler that owns it
		assert.Equal(t, 200, response.Code)

		_, exists, err := sessionStore.Get(ctx, "checkout-123")
		assert.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Refused webhook closes without settlement", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx, router, _, sessionStore, _, _, _, _, publisher, nower := setup(t, ctrl)
		assert.NoError(t, sessionStore.Put(ctx, "checkout-123", pendingSession()))

		nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
		publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, event interface{}) error {
				completed, ok := event.(checkoutevents.CheckoutCompleted)
				assert.True(t, ok)
				assert.Equal(t, checkoutevents.PaymentStatusRefused, completed.PaymentStatus)

				return nil
			})

		response := postWebhook(t, router, "blackcat", `{"id":987654,"status":"refused"}`)

		assert.Equal(t, 200, response.Code)

		session, exists, _ := sessionStore.Get(ctx, "checkout-123")
		assert.True(t, exists)
		assert.Equal(t, checkoutevents.PaymentStatusRefused, session.Status)
	})

	t.Run("Webhook for unknown transaction is acknowledged", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		_, router, _, _, _, _, _, _, _, _ := setup(t, ctrl)

		response := postWebhook(t, router, "blackcat", `{"id":42,"status":"paid"}`)

		assert.Equal(t, 200, response.Code)
	})
}

func TestPollingLoop(t *testing.T) {
	paidAt := time.Date(2025, 8, 27, 14, 5, 0, 0, time.UTC)

	t.Run("Detects payment and settles", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, _, svc, sessionStore, payer, reporter, adsReporter, _, publisher, nower := setup(t, ctrl)
		svc.service.pollInterval = 5 * time.Millisecond
		svc.service.pollWindow = time.Second

		assert.NoError(t, sessionStore.Put(ctx, "checkout-123", PaymentSession{
			CheckoutUID:   "checkout-123",
			ProviderName:  "blackcat",
			TransactionID: "987654",
			AmountCents:   7120,
			Status:        checkoutevents.PaymentStatusPending,
			Host:          "gasbutano.pro",
			Order: checkoutapi.Order{
				Customer: checkoutapi.Customer{Name: "Maria Silva", Phone: "(31) 98765-4321"},
				Items:    []checkoutapi.Item{{Title: "Gás de cozinha 13 kg (P13)", UnitPrice: 7120, Quantity: 1}},
			},
		}))

		// given: two pending polls, one failing poll, then paid
		nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
		gomock.InOrder(
			payer.EXPECT().GetTransactionStatus(gomock.Any(), "987654").
				Return(pixgateway.StatusUpdate{Status: checkoutevents.PaymentStatusPending}, nil).
				Times(2),
			payer.EXPECT().GetTransactionStatus(gomock.Any(), "987654").
				Return(pixgateway.StatusUpdate{}, assert.AnError),
			payer.EXPECT().GetTransactionStatus(gomock.Any(), "987654").
				Return(pixgateway.StatusUpdate{Status: checkoutevents.PaymentStatusPaid, PaidAt: &paidAt}, nil),
		)
		reporter.EXPECT().ReportPaid(gomock.Any(), gomock.Any()).Return(nil)
		adsReporter.EXPECT().ReportPurchase(gomock.Any(), "gasbutano.pro", "987654", int64(7120)).Return(nil)
		publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		// when
		svc.service.startPolling(ctx, "checkout-123", "987654")

		// then: session removed exactly once, loop stopped
		assert.Eventually(t, func() bool {
			_, exists, err := sessionStore.Get(ctx, "checkout-123")
			return err == nil && !exists
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("Survives a transient session fetch failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx := context.TODO()
		inmem, _, err := mystore.NewInMemoryStore[PaymentSession](ctx)
		assert.NoError(t, err)
		sessionStore := &flakySessionStore{Store: inmem, failures: 1}

		payer := pixgateway.NewMockPayer(ctrl)
		reporter := conversiontracking.NewMockReporter(ctrl)
		adsReporter := adstracking.NewMockConversionReporter(ctrl)
		reminder := NewMockReminderScheduler(ctrl)
		publisher := mypublisher.NewMockPublisher(ctrl)
		nower := mytime.NewMockNower(ctrl)

		svc := NewService(payer, sessionStore, reporter, adsReporter, reminder, publisher, nower, myuuid.RealUUIDer{})
		svc.service.pollInterval = 5 * time.Millisecond
		svc.service.pollWindow = time.Second

		assert.NoError(t, inmem.Put(ctx, "checkout-123", PaymentSession{
			CheckoutUID:   "checkout-123",
			ProviderName:  "blackcat",
			TransactionID: "987654",
			AmountCents:   7120,
			Status:        checkoutevents.PaymentStatusPending,
			Host:          "gasbutano.pro",
		}))

		// given: the first session fetch fails, the next poll finds the payment
		nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
		gomock.InOrder(
			payer.EXPECT().GetTransactionStatus(gomock.Any(), "987654").
				Return(pixgateway.StatusUpdate{Status: checkoutevents.PaymentStatusPending}, nil),
			payer.EXPECT().GetTransactionStatus(gomock.Any(), "987654").
				Return(pixgateway.StatusUpdate{Status: checkoutevents.PaymentStatusPaid, PaidAt: &paidAt}, nil),
		)
		reporter.EXPECT().ReportPaid(gomock.Any(), gomock.Any()).Return(nil)
		adsReporter.EXPECT().ReportPurchase(gomock.Any(), "gasbutano.pro", "987654", int64(7120)).Return(nil)
		publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		// when
		svc.service.startPolling(ctx, "checkout-123", "987654")

		// then: the loop outlived the store hiccup and still settled
		assert.Eventually(t, func() bool {
			_, exists, err := inmem.Get(ctx, "checkout-123")
			return err == nil && !exists
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("Times out silently without settlement", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, _, svc, sessionStore, payer, _, _, _, _, _ := setup(t, ctrl)
		svc.service.pollInterval = 5 * time.Millisecond
		svc.service.pollWindow = 30 * time.Millisecond

		assert.NoError(t, sessionStore.Put(ctx, "checkout-123", PaymentSession{
			CheckoutUID:   "checkout-123",
			TransactionID: "987654",
			Status:        checkoutevents.PaymentStatusPending,
		}))

		// given: the gateway never reports paid, no reporting expected
		payer.EXPECT().GetTransactionStatus(gomock.Any(), "987654").
			Return(pixgateway.StatusUpdate{Status: checkoutevents.PaymentStatusPending}, nil).
			AnyTimes()

		// when
		svc.service.startPolling(ctx, "checkout-123", "987654")

		// then: the session survives the timeout as unpaid
		time.Sleep(100 * time.Millisecond)

		session, exists, err := sessionStore.Get(ctx, "checkout-123")
		assert.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, checkoutevents.PaymentStatusPending, session.Status)
	})
}

// flakySessionStore fails the first Get calls to mimic a transient store
// outage.
type flakySessionStore struct {
	mystore.Store[PaymentSession]
	failures int
}

func (s *flakySessionStore) Get(c context.Context, uid string) (PaymentSession, bool, error) {
	if s.failures > 0 {
		s.failures--
		return PaymentSession{}, false, fmt.Errorf("store unavailable")
	}

	return s.Store.Get(c, uid)
}

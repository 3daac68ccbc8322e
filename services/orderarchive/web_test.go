package orderarchive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/gasbutano/checkoutbackend/lib/myevents"
	"github.com/gasbutano/checkoutbackend/lib/mypublisher"
	"github.com/gasbutano/checkoutbackend/lib/mypubsub"
	"github.com/gasbutano/checkoutbackend/lib/mystore"
	"github.com/gasbutano/checkoutbackend/lib/mytime"
	"github.com/gasbutano/checkoutbackend/services/checkoutevents"
)

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[OrderRecord], *mypubsub.MockPubSub, *mytime.MockNower) {
	ctx := context.TODO()

	orderStore, _, err := mystore.NewInMemoryStore[OrderRecord](ctx)
	assert.NoError(t, err)

	subscriber := mypubsub.NewMockPubSub(ctrl)
	nower := mytime.NewMockNower(ctrl)

	svc := NewService(orderStore, subscriber, nower)

	subscriber.EXPECT().CreateTopic(gomock.Any(), checkoutevents.TopicName).Return(nil)
	subscriber.EXPECT().Subscribe(gomock.Any(), checkoutevents.TopicName, "http://localhost:8080/api/orderarchive/event").Return(nil)

	router := mux.NewRouter()
	err = svc.RegisterEndpoints(ctx, router)
	assert.NoError(t, err)

	return ctx, router, orderStore, subscriber, nower
}

func postEvent(t *testing.T, router *mux.Router, payload string) *httptest.ResponseRecorder {
	request, err := http.NewRequest(http.MethodPost, "/api/orderarchive/event", strings.NewReader(payload))
	assert.NoError(t, err)
	request.Header.Set("Content-Type", "application/json")
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)

	return response
}

func createPubsubMessage(t *testing.T, eventTypeName string, event interface{}) string {
	eventBytes, err := json.Marshal(event)
	assert.NoError(t, err)

	envelope := myevents.EventEnvelope{
		UID:           "event-1",
		CreatedAt:     mytime.ExampleTime,
		Topic:         checkoutevents.TopicName,
		AggregateUID:  "checkout-123",
		EventTypeName: eventTypeName,
		EventPayload:  string(eventBytes),
	}
	envelopeBytes, err := json.Marshal(envelope)
	assert.NoError(t, err)

	req := mypublisher.PushRequest{
		Message: mypublisher.PushMessage{
			Data: envelopeBytes,
		},
		Subscription: checkoutevents.TopicName,
	}
	reqBytes, err := json.Marshal(req)
	assert.NoError(t, err)

	return string(reqBytes)
}

func startedEvent() checkoutevents.CheckoutStarted {
	return checkoutevents.CheckoutStarted{
		CheckoutUID:   "checkout-123",
		ProviderName:  "blackcat",
		TransactionID: "987654",
		AmountInCents: 7120,
		CustomerName:  "Maria Silva",
		CustomerPhone: "31987654321",
	}
}

func TestOrderArchive(t *testing.T) {
	paidAt := time.Date(2025, 8, 27, 14, 5, 0, 0, time.UTC)

	t.Run("Checkout started creates a record", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, orderStore, _, nower := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		response := postEvent(t, router, createPubsubMessage(t, "checkout.started", startedEvent()))

		// then
		assert.Equal(t, 200, response.Code)

		record, exists, err := orderStore.Get(ctx, "checkout-123")
		assert.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, "987654", record.TransactionID)
		assert.Equal(t, "Maria Silva", record.CustomerName)
		assert.Equal(t, checkoutevents.PaymentStatusPending, record.PaymentStatus)
		assert.Equal(t, mytime.ExampleTime, record.StartedAt)
		assert.Nil(t, record.CompletedAt)
	})

	t.Run("Checkout completed marks the record paid", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, orderStore, _, nower := setup(t, ctrl)

		// given
		assert.NoError(t, orderStore.Put(ctx, "checkout-123", OrderRecord{
			CheckoutUID:   "checkout-123",
			ProviderName:  "blackcat",
			TransactionID: "987654",
			AmountCents:   7120,
			CustomerName:  "Maria Silva",
			PaymentStatus: checkoutevents.PaymentStatusPending,
			StartedAt:     mytime.ExampleTime,
		}))
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		response := postEvent(t, router, createPubsubMessage(t, "checkout.completed", checkoutevents.CheckoutCompleted{
			CheckoutUID:   "checkout-123",
			ProviderName:  "blackcat",
			TransactionID: "987654",
			AmountInCents: 7120,
			PaymentStatus: checkoutevents.PaymentStatusPaid,
			PaidAt:        &paidAt,
		}))

		// then
		assert.Equal(t, 200, response.Code)

		record, exists, err := orderStore.Get(ctx, "checkout-123")
		assert.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, checkoutevents.PaymentStatusPaid, record.PaymentStatus)
		assert.Equal(t, "Maria Silva", record.CustomerName)
		assert.NotNil(t, record.CompletedAt)
		assert.Equal(t, paidAt, *record.PaidAt)
	})

	t.Run("Checkout completed without prior start still archives", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, orderStore, _, nower := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		response := postEvent(t, router, createPubsubMessage(t, "checkout.completed", checkoutevents.CheckoutCompleted{
			CheckoutUID:   "checkout-123",
			ProviderName:  "umbrella",
			TransactionID: "uzt-123",
			AmountInCents: 7120,
			PaymentStatus: checkoutevents.PaymentStatusRefused,
		}))

		// then
		assert.Equal(t, 200, response.Code)

		record, exists, err := orderStore.Get(ctx, "checkout-123")
		assert.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, "uzt-123", record.TransactionID)
		assert.Equal(t, checkoutevents.PaymentStatusRefused, record.PaymentStatus)
	})

	t.Run("Late start does not wind back a settled record", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, orderStore, _, nower := setup(t, ctrl)

		// given
		assert.NoError(t, orderStore.Put(ctx, "checkout-123", OrderRecord{
			CheckoutUID:   "checkout-123",
			TransactionID: "987654",
			PaymentStatus: checkoutevents.PaymentStatusPaid,
			StartedAt:     mytime.ExampleTime,
			PaidAt:        &paidAt,
		}))
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		response := postEvent(t, router, createPubsubMessage(t, "checkout.started", startedEvent()))

		// then
		assert.Equal(t, 200, response.Code)

		record, _, err := orderStore.Get(ctx, "checkout-123")
		assert.NoError(t, err)
		assert.Equal(t, checkoutevents.PaymentStatusPaid, record.PaymentStatus)
	})

	t.Run("Event with unknown type is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _ := setup(t, ctrl)

		// when
		response := postEvent(t, router, createPubsubMessage(t, "checkout.exploded", startedEvent()))

		// then
		assert.Equal(t, 501, response.Code)
	})

	t.Run("Get archived order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, orderStore, _, _ := setup(t, ctrl)

		// given
		assert.NoError(t, orderStore.Put(ctx, "checkout-123", OrderRecord{
			CheckoutUID:   "checkout-123",
			TransactionID: "987654",
			PaymentStatus: checkoutevents.PaymentStatusPaid,
		}))

		// when
		request, err := http.NewRequest(http.MethodGet, "/api/orderarchive/checkout-123", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), `"TransactionID": "987654"`)
	})

	t.Run("Get unknown order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		_, router, _, _, _ := setup(t, ctrl)

		request, err := http.NewRequest(http.MethodGet, "/api/orderarchive/nope", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		assert.Equal(t, 404, response.Code)
	})

	t.Run("List archived orders", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, orderStore, _, _ := setup(t, ctrl)

		// given
		assert.NoError(t, orderStore.Put(ctx, "checkout-123", OrderRecord{CheckoutUID: "checkout-123"}))
		assert.NoError(t, orderStore.Put(ctx, "checkout-456", OrderRecord{CheckoutUID: "checkout-456"}))

		// when
		request, err := http.NewRequest(http.MethodGet, "/api/orderarchive", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), "checkout-123")
		assert.Contains(t, response.Body.String(), "checkout-456")
	})
}

package orderarchive

import (
	"context"
	"fmt"

	"github.com/gasbutano/checkoutbackend/lib/myerrors"
	"github.com/gasbutano/checkoutbackend/lib/myhttp"
	"github.com/gasbutano/checkoutbackend/lib/mylog"
	"github.com/gasbutano/checkoutbackend/lib/mypubsub"
	"github.com/gasbutano/checkoutbackend/lib/mystore"
	"github.com/gasbutano/checkoutbackend/lib/mytime"
	"github.com/gasbutano/checkoutbackend/services/checkoutevents"
)

type service struct {
	orderStore mystore.Store[OrderRecord]
	subscriber mypubsub.PubSub
	nower      mytime.Nower
	logger     mylog.Logger
}

// Use dependency injection to isolate the infrastructure and ease testing
func newService(orderStore mystore.Store[OrderRecord], subscriber mypubsub.PubSub, nower mytime.Nower, logger mylog.Logger) *service {
	return &service{
		orderStore: orderStore,
		subscriber: subscriber,
		nower:      nower,
		logger:     logger,
	}
}

func (s *service) Subscribe(c context.Context) error {
	err := s.subscriber.CreateTopic(c, checkoutevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", checkoutevents.TopicName, err)
	}

	err = s.subscriber.Subscribe(c, checkoutevents.TopicName, myhttp.GuessHostnameWithScheme()+"/api/orderarchive/event")
	if err != nil {
		return fmt.Errorf("error subscribing to topic %s: %s", checkoutevents.TopicName, err)
	}

	return nil
}

func (s *service) OnCheckoutStarted(c context.Context, topic string, event checkoutevents.CheckoutStarted) error {
	s.logger.Log(c, event.CheckoutUID, mylog.SeverityInfo, "Archiving start of checkout %s (transaction %s)", event.CheckoutUID, event.TransactionID)

	now := s.nower.Now()

	return s.orderStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent
		record, found, err := s.orderStore.Get(c, event.CheckoutUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if found && record.PaymentStatus.IsTerminal() {
			// A completion has already been archived, the late start
			// notification must not wind it back
			return nil
		}

		err = s.orderStore.Put(c, event.CheckoutUID, OrderRecord{
			CheckoutUID:   event.CheckoutUID,
			ProviderName:  event.ProviderName,
			TransactionID: event.TransactionID,
			AmountCents:   event.AmountInCents,
			CustomerName:  event.CustomerName,
			CustomerPhone: event.CustomerPhone,
			PaymentStatus: checkoutevents.PaymentStatusPending,
			StartedAt:     now,
		})
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
}

func (s *service) OnCheckoutCompleted(c context.Context, topic string, event checkoutevents.CheckoutCompleted) error {
	s.logger.Log(c, event.CheckoutUID, mylog.SeverityInfo, "Archiving completion of checkout %s: %s", event.CheckoutUID, event.PaymentStatus)

	now := s.nower.Now()

	return s.orderStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent
		record, found, err := s.orderStore.Get(c, event.CheckoutUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			// The start notification got lost, archive what the
			// completion carries
			record = OrderRecord{
				CheckoutUID:   event.CheckoutUID,
				ProviderName:  event.ProviderName,
				TransactionID: event.TransactionID,
				AmountCents:   event.AmountInCents,
				StartedAt:     now,
			}
		}
		if record.PaymentStatus.IsTerminal() {
			return nil
		}

		record.PaymentStatus = event.PaymentStatus
		record.CompletedAt = &now
		record.PaidAt = event.PaidAt

		err = s.orderStore.Put(c, event.CheckoutUID, record)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
}

func (s *service) listOrders(c context.Context) ([]OrderRecord, error) {
	records, err := s.orderStore.List(c)
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error listing orders: %s", err))
	}

	return records, nil
}

func (s *service) getOrder(c context.Context, checkoutUID string) (OrderRecord, error) {
	record, found, err := s.orderStore.Get(c, checkoutUID)
	if err != nil {
		return OrderRecord{}, myerrors.NewInternalError(fmt.Errorf("error fetching order %s: %s", checkoutUID, err))
	}
	if !found {
		return OrderRecord{}, myerrors.NewNotFoundError(fmt.Errorf("order %s not found", checkoutUID))
	}

	return record, nil
}

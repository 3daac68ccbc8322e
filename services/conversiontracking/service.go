package conversiontracking

import (
	"context"
	"fmt"
	"time"

	"github.com/gasbutano/checkoutbackend/lib/myerrors"
	"github.com/gasbutano/checkoutbackend/lib/mylog"
	"github.com/gasbutano/checkoutbackend/lib/mystore"
	"github.com/gasbutano/checkoutbackend/lib/mytime"
)

const (
	// Paid events drive revenue attribution, so they get more attempts
	pendingMaxAttempts = 2
	paidMaxAttempts    = 5
	deliveryRetryDelay = 2 * time.Second

	// Parked paid reports older than this are discarded on redelivery
	parkedMaxAge = 24 * time.Hour
)

type service struct {
	stateStore  mystore.Store[ReportState]
	parkedStore mystore.Store[ParkedReport]
	deliverer   Deliverer
	nower       mytime.Nower
	logger      mylog.Logger
	retryDelay  time.Duration
}

// NewService constructs the conversion reporter with its persistent
// at-most-once bookkeeping.
func NewService(stateStore mystore.Store[ReportState], parkedStore mystore.Store[ParkedReport], deliverer Deliverer, nower mytime.Nower, logger mylog.Logger) Reporter {
	return &service{
		stateStore:  stateStore,
		parkedStore: parkedStore,
		deliverer:   deliverer,
		nower:       nower,
		logger:      logger,
		retryDelay:  deliveryRetryDelay,
	}
}

func (s *service) ReportPending(c context.Context, req ReportRequest) error {
	now := s.nower.Now()

	state, exists, err := s.stateStore.Get(c, req.CheckoutUID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error fetching report state for %s: %s", req.CheckoutUID, err))
	}

	if exists && state.PendingSent && state.Payload.OrderID == req.TransactionID {
		s.logger.Log(c, req.CheckoutUID, mylog.SeverityInfo, "Pending conversion for checkout %s already reported", req.CheckoutUID)

		return nil
	}

	if exists && state.Payload.OrderID != "" && state.Payload.OrderID != req.TransactionID {
		// A restarted checkout carries a new gateway transaction: the old
		// bookkeeping must not suppress reports for the new one
		s.logger.Log(c, req.CheckoutUID, mylog.SeverityInfo, "Checkout %s restarted with transaction %s, resetting report state", req.CheckoutUID, req.TransactionID)
	}

	event := composeOrderEvent(req, statusWaitingPayment, now)

	err = s.deliverWithRetry(c, req.Host, event, pendingMaxAttempts)
	if err != nil {
		// The canonical payload is kept even when delivery failed so a
		// later paid report does not have to fall back to synthesis
		storeErr := s.stateStore.Put(c, req.CheckoutUID, ReportState{
			CheckoutUID: req.CheckoutUID,
			Payload:     event,
			Host:        req.Host,
		})
		if storeErr != nil {
			s.logger.Log(c, req.CheckoutUID, mylog.SeverityWarn, "Error storing report state for %s: %s", req.CheckoutUID, storeErr)
		}

		return myerrors.NewUnavailableError(fmt.Errorf("error delivering pending conversion for checkout %s: %s", req.CheckoutUID, err))
	}

	err = s.stateStore.Put(c, req.CheckoutUID, ReportState{
		CheckoutUID: req.CheckoutUID,
		PendingSent: true,
		Payload:     event,
		Host:        req.Host,
	})
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error storing report state for %s: %s", req.CheckoutUID, err))
	}

	s.logger.Log(c, req.CheckoutUID, mylog.SeverityInfo, "Reported pending conversion for checkout %s (order %s)", req.CheckoutUID, req.TransactionID)

	return nil
}

func (s *service) ReportPaid(c context.Context, req ReportRequest) error {
	now := s.nower.Now()

	paidAt := now
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	state, exists, err := s.stateStore.Get(c, req.CheckoutUID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error fetching report state for %s: %s", req.CheckoutUID, err))
	}

	if exists && state.PaidSent && state.Payload.OrderID == req.TransactionID {
		s.logger.Log(c, req.CheckoutUID, mylog.SeverityInfo, "Paid conversion for checkout %s already reported", req.CheckoutUID)

		return nil
	}

	var event OrderEvent
	if exists && state.Payload.OrderID == req.TransactionID {
		event = markPaid(state.Payload, paidAt)
	} else {
		// No base payload survived: synthesize one with the same rules
		event = composeOrderEvent(req, statusPaid, now)
		event.ApprovedDate = func() *string {
			formatted := paidAt.UTC().Format(eventTimeLayout)
			return &formatted
		}()
		event.IsFallback = true
	}

	err = s.deliverWithRetry(c, req.Host, event, paidMaxAttempts)
	if err != nil {
		parkErr := s.parkedStore.Put(c, req.CheckoutUID, ParkedReport{
			CheckoutUID: req.CheckoutUID,
			Host:        req.Host,
			Payload:     event,
			ParkedAt:    now,
		})
		if parkErr != nil {
			s.logger.Log(c, req.CheckoutUID, mylog.SeverityError, "Error parking paid conversion for %s: %s", req.CheckoutUID, parkErr)
		}

		return myerrors.NewUnavailableError(fmt.Errorf("error delivering paid conversion for checkout %s (parked for redelivery): %s", req.CheckoutUID, err))
	}

	state.CheckoutUID = req.CheckoutUID
	state.PaidSent = true
	state.Host = req.Host
	state.Payload = event

	err = s.stateStore.Put(c, req.CheckoutUID, state)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error storing report state for %s: %s", req.CheckoutUID, err))
	}

	s.logger.Log(c, req.CheckoutUID, mylog.SeverityInfo, "Reported paid conversion for checkout %s (order %s)", req.CheckoutUID, req.TransactionID)

	return nil
}

func (s *service) RedeliverParked(c context.Context) error {
	now := s.nower.Now()

	parked, err := s.parkedStore.List(c)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error listing parked conversions: %s", err))
	}

	for _, report := range parked {
		if now.Sub(report.ParkedAt) > parkedMaxAge {
			s.logger.Log(c, report.CheckoutUID, mylog.SeverityWarn, "Discarding parked conversion for checkout %s: older than %s", report.CheckoutUID, parkedMaxAge)

			err = s.parkedStore.Delete(c, report.CheckoutUID)
			if err != nil {
				s.logger.Log(c, report.CheckoutUID, mylog.SeverityError, "Error discarding parked conversion for %s: %s", report.CheckoutUID, err)
			}

			continue
		}

		// One attempt per startup, no retry loop here
		err = s.deliverer.Deliver(c, report.Host, report.Payload)
		if err != nil {
			s.logger.Log(c, report.CheckoutUID, mylog.SeverityWarn, "Redelivery of parked conversion for %s failed, keeping slot: %s", report.CheckoutUID, err)

			continue
		}

		err = s.parkedStore.Delete(c, report.CheckoutUID)
		if err != nil {
			s.logger.Log(c, report.CheckoutUID, mylog.SeverityError, "Error clearing parked conversion for %s: %s", report.CheckoutUID, err)

			continue
		}

		state, exists, err := s.stateStore.Get(c, report.CheckoutUID)
		if err == nil {
			if !exists {
				state = ReportState{CheckoutUID: report.CheckoutUID, Host: report.Host, Payload: report.Payload}
			}
			state.PaidSent = true

			err = s.stateStore.Put(c, report.CheckoutUID, state)
		}
		if err != nil {
			s.logger.Log(c, report.CheckoutUID, mylog.SeverityWarn, "Error updating report state after redelivery for %s: %s", report.CheckoutUID, err)
		}

		s.logger.Log(c, report.CheckoutUID, mylog.SeverityInfo, "Redelivered parked paid conversion for checkout %s", report.CheckoutUID)
	}

	return nil
}

func (s *service) deliverWithRetry(c context.Context, host string, event OrderEvent, maxAttempts int) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = s.deliverer.Deliver(c, host, event)
		if lastErr == nil {
			return nil
		}

		s.logger.Log(c, event.OrderID, mylog.SeverityWarn, "Conversion delivery attempt %d/%d for order %s failed: %s", attempt, maxAttempts, event.OrderID, lastErr)

		if attempt < maxAttempts {
			select {
			case <-time.After(s.retryDelay):
			case <-c.Done():
				return c.Err()
			}
		}
	}

	return lastErr
}

package pixcheckout

import (
	"context"
	"fmt"
	"time"

	"github.com/gasbutano/checkoutbackend/lib/myerrors"
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

// ReminderScheduler schedules the one-shot payment reminder.
//
//go:generate mockgen -source=service.go -package pixcheckout -destination reminder_mock.go ReminderScheduler
type ReminderScheduler interface {
	Schedule(c context.Context, checkoutUID string) error
}

type service struct {
	payer        pixgateway.Payer
	sessionStore mystore.Store[PaymentSession]
	reporter     conversiontracking.Reporter
	adsReporter  adstracking.ConversionReporter
	reminder     ReminderScheduler
	publisher    mypublisher.Publisher
	nower        mytime.Nower
	uuider       myuuid.UUIDer
	logger       mylog.Logger

	pollInterval time.Duration
	pollWindow   time.Duration
}

// Use dependency injection to isolate the infrastructure and ease testing
func newService(payer pixgateway.Payer, sessionStore mystore.Store[PaymentSession], reporter conversiontracking.Reporter, adsReporter adstracking.ConversionReporter, reminder ReminderScheduler, publisher mypublisher.Publisher, nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) *service {
	return &service{
		payer:        payer,
		sessionStore: sessionStore,
		reporter:     reporter,
		adsReporter:  adsReporter,
		reminder:     reminder,
		publisher:    publisher,
		nower:        nower,
		uuider:       uuider,
		logger:       logger,
		pollInterval: defaultPollInterval,
		pollWindow:   defaultPollWindow,
	}
}

// createCheckout runs the whole start-of-checkout sequence: create the PIX
// charge, persist the session, announce it, report the pending conversion,
// schedule the reminder and start polling for the payment.
func (s *service) createCheckout(c context.Context, checkoutUID string, order checkoutapi.Order, host string, clientIP string, baseURL string) (PaymentSession, error) {
	now := s.nower.Now()

	if checkoutUID == "" {
		checkoutUID = s.uuider.Create()
	}

	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Start checkout %s for %s (%d cents)", checkoutUID, order.Customer.Name, order.AmountCents)

	err := order.Validate()
	if err != nil {
		return PaymentSession{}, err
	}

	customer := order.Customer
	customer.Email = order.Email()

	transaction, err := s.payer.CreatePixTransaction(c, pixgateway.TransactionRequest{
		AmountCents: order.AmountCents,
		Customer:    customer,
		Address:     order.Address,
		Items:       order.Items,
		PostbackURL: baseURL + "/api/checkout/webhook/" + s.payer.Name(),
	})
	if err != nil {
		return PaymentSession{}, err
	}

	session := PaymentSession{
		CheckoutUID:   checkoutUID,
		ProviderName:  s.payer.Name(),
		TransactionID: transaction.ID,
		AmountCents:   transaction.AmountCents,
		Status:        transaction.Status,
		PaymentMethod: "pix",
		PixCode:       transaction.Pix.Code,
		PixExpiration: transaction.Pix.ExpirationDate,
		Host:          host,
		ClientIP:      clientIP,
		Order:         order,
		CreatedAt:     now,
	}

	err = s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		// Overwrites any prior unpaid session for this checkout
		err = s.sessionStore.Put(c, checkoutUID, session)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing session: %s", err))
		}

		err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.CheckoutStarted{
			CheckoutUID:   checkoutUID,
			ProviderName:  s.payer.Name(),
			TransactionID: transaction.ID,
			AmountInCents: transaction.AmountCents,
			CustomerName:  order.Customer.Name,
			CustomerPhone: checkoutapi.PhoneDigits(order.Customer.Phone),
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		return PaymentSession{}, err
	}

	// Tracking and the reminder are best-effort: a failure there must not
	// lose a checkout that already has a live PIX charge
	err = s.reporter.ReportPending(c, s.reportRequest(session))
	if err != nil {
		s.logger.Log(c, checkoutUID, mylog.SeverityWarn, "Error reporting pending conversion for checkout %s: %s", checkoutUID, err)
	}

	err = s.adsReporter.ReportCheckoutStarted(c, host, checkoutUID)
	if err != nil {
		s.logger.Log(c, checkoutUID, mylog.SeverityWarn, "Error reporting checkout-started conversion for checkout %s: %s", checkoutUID, err)
	}

	err = s.reminder.Schedule(c, checkoutUID)
	if err != nil {
		s.logger.Log(c, checkoutUID, mylog.SeverityWarn, "Error scheduling reminder for checkout %s: %s", checkoutUID, err)
	}

	s.startPolling(c, checkoutUID, transaction.ID)

	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Checkout %s started: transaction %s at %s", checkoutUID, transaction.ID, s.payer.Name())

	return session, nil
}

func (s *service) getCheckout(c context.Context, checkoutUID string) (PaymentSession, error) {
	session, exists, err := s.sessionStore.Get(c, checkoutUID)
	if err != nil {
		return PaymentSession{}, myerrors.NewInternalError(fmt.Errorf("error fetching session %s: %s", checkoutUID, err))
	}
	if !exists {
		return PaymentSession{}, myerrors.NewNotFoundError(fmt.Errorf("checkout %s not found", checkoutUID))
	}

	return session, nil
}

// PendingPhone reports whether a checkout still awaits payment, and on
// which phone number the shopper can be reached.
func (s *service) PendingPhone(c context.Context, checkoutUID string) (string, bool, error) {
	session, exists, err := s.sessionStore.Get(c, checkoutUID)
	if err != nil {
		return "", false, err
	}
	if !exists || session.Status != checkoutevents.PaymentStatusPending {
		return "", false, nil
	}

	return session.Order.Customer.Phone, true, nil
}

// startPolling spawns the polling loop for one checkout. The loop gets its
// own context: it must outlive the http request that started the checkout.
func (s *service) startPolling(c context.Context, checkoutUID string, transactionID string) {
	phase, _ := nextPollState(PollerIdle, checkoutevents.PaymentStatusPending, pollEvent{kind: eventStart})

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c), s.pollWindow)

	go func() {
		defer cancel()
		s.runPollingLoop(ctx, phase, checkoutUID, transactionID)
	}()
}

func (s *service) runPollingLoop(ctx context.Context, phase PollerPhase, checkoutUID string, transactionID string) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	currentStatus := checkoutevents.PaymentStatusPending

	for {
		var event pollEvent

		select {
		case <-ticker.C:
			update, err := s.payer.GetTransactionStatus(ctx, transactionID)
			if err != nil {
				// A single failed poll is logged and absorbed
				s.logger.Log(ctx, checkoutUID, mylog.SeverityWarn, "Poll for checkout %s failed: %s", checkoutUID, err)
				event = pollEvent{kind: eventPollFailure}
			} else {
				event = pollEvent{kind: eventStatus, status: update.Status, paidAt: update.PaidAt}
			}

		case <-ctx.Done():
			event = pollEvent{kind: eventDeadline}
		}

		session, exists, err := s.sessionStore.Get(ctx, checkoutUID)
		switch {
		case err != nil:
			// A transient store failure must not kill the loop, the last
			// known status carries the tick
			s.logger.Log(ctx, checkoutUID, mylog.SeverityWarn, "Error fetching session %s, polling continues: %s", checkoutUID, err)
		case !exists:
			// Session settled through the webhook path
			s.logger.Log(ctx, checkoutUID, mylog.SeverityInfo, "Session %s is gone, stopping poller", checkoutUID)

			return
		default:
			currentStatus = session.Status
		}

		var effect pollEffect
		phase, effect = nextPollState(phase, currentStatus, event)

		s.applyPollEffect(ctx, effect, checkoutUID, event)

		if phase == PollerStopped {
			return
		}
	}
}

func (s *service) applyPollEffect(c context.Context, effect pollEffect, checkoutUID string, event pollEvent) {
	var err error

	switch effect {
	case effectUpdateStatus:
		err = s.updateSessionStatus(c, checkoutUID, event.status)
	case effectSettlePayment:
		err = s.settlePayment(c, checkoutUID, event.paidAt)
	case effectCloseUnpaid:
		err = s.closeUnpaid(c, checkoutUID, event.status)
	}

	if err != nil {
		s.logger.Log(c, checkoutUID, mylog.SeverityError, "Error applying poll result for checkout %s: %s", checkoutUID, err)
	}
}

func (s *service) updateSessionStatus(c context.Context, checkoutUID string, status checkoutevents.PaymentStatus) error {
	return s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		session, exists, err := s.sessionStore.Get(c, checkoutUID)
		if err != nil || !exists {
			return err
		}

		session.Status = status

		return s.sessionStore.Put(c, checkoutUID, session)
	})
}

// settlePayment runs the terminal sequence for a confirmed payment: durably
// mark the session paid, report the paid conversion, fire the purchase
// conversion, publish completion, and only then remove the session.
// Removal last is what keeps a crash in the middle recoverable.
func (s *service) settlePayment(c context.Context, checkoutUID string, paidAt *time.Time) error {
	now := s.nower.Now()

	var session PaymentSession
	claimed := false

	// The poller and a gateway webhook can race here: marking the session
	// paid inside the transaction makes exactly one caller the settler
	err := s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		var exists bool
		var err error

		session, exists, err = s.sessionStore.Get(c, checkoutUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching session %s: %s", checkoutUID, err))
		}
		if !exists {
			// Already settled via another path
			return nil
		}
		if session.Status == checkoutevents.PaymentStatusPaid {
			// Another settlement run owns this session
			return nil
		}

		if paidAt == nil {
			paidAt = &now
		}

		session.Status = checkoutevents.PaymentStatusPaid
		session.PaidAt = paidAt
		claimed = true

		err = s.sessionStore.Put(c, checkoutUID, session)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing paid session %s: %s", checkoutUID, err))
		}

		return nil
	})
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Checkout %s paid at %s, running settlement", checkoutUID, paidAt)

	// Exhausted delivery attempts park the payload, so settlement can
	// continue either way
	err = s.reporter.ReportPaid(c, s.reportRequest(session))
	if err != nil {
		s.logger.Log(c, checkoutUID, mylog.SeverityWarn, "Error reporting paid conversion for checkout %s: %s", checkoutUID, err)
	}

	if !session.ConversionReported {
		err = s.adsReporter.ReportPurchase(c, session.Host, session.TransactionID, session.AmountCents)
		if err != nil {
			s.logger.Log(c, checkoutUID, mylog.SeverityWarn, "Error reporting purchase conversion for checkout %s: %s", checkoutUID, err)
		} else {
			session.ConversionReported = true

			err = s.sessionStore.Put(c, checkoutUID, session)
			if err != nil {
				s.logger.Log(c, checkoutUID, mylog.SeverityWarn, "Error storing session %s: %s", checkoutUID, err)
			}
		}
	}

	err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.CheckoutCompleted{
		CheckoutUID:   checkoutUID,
		ProviderName:  session.ProviderName,
		TransactionID: session.TransactionID,
		AmountInCents: session.AmountCents,
		PaymentStatus: checkoutevents.PaymentStatusPaid,
		PaidAt:        paidAt,
	})
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error publishing completion of checkout %s: %s", checkoutUID, err))
	}

	// Removal signals "fully settled"
	err = s.sessionStore.Delete(c, checkoutUID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error removing settled session %s: %s", checkoutUID, err))
	}

	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Checkout %s fully settled", checkoutUID)

	return nil
}

func (s *service) closeUnpaid(c context.Context, checkoutUID string, status checkoutevents.PaymentStatus) error {
	var session PaymentSession

	err := s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		var exists bool
		var err error

		session, exists, err = s.sessionStore.Get(c, checkoutUID)
		if err != nil || !exists {
			return err
		}

		session.Status = status

		return s.sessionStore.Put(c, checkoutUID, session)
	})
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error closing checkout %s: %s", checkoutUID, err))
	}

	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Checkout %s closed without payment: %s", checkoutUID, status)

	return s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.CheckoutCompleted{
		CheckoutUID:   checkoutUID,
		ProviderName:  session.ProviderName,
		TransactionID: session.TransactionID,
		AmountInCents: session.AmountCents,
		PaymentStatus: status,
	})
}

// handleWebhook feeds a gateway push notification into the same
// settlement path the poller uses.
func (s *service) handleWebhook(c context.Context, providerName string, transactionID string, rawStatus string, paidAt *time.Time) error {
	if transactionID == "" {
		return myerrors.NewInvalidInputErrorf("webhook without transaction id")
	}

	session, found, err := s.findSessionByTransactionID(c, transactionID)
	if err != nil {
		return err
	}
	if !found {
		// Settled or never ours: acknowledge so the gateway stops resending
		s.logger.Log(c, transactionID, mylog.SeverityInfo, "Webhook from %s for unknown transaction %s", providerName, transactionID)

		return nil
	}

	status := pixgateway.NormalizeStatus(rawStatus)

	s.logger.Log(c, session.CheckoutUID, mylog.SeverityInfo, "Webhook from %s: transaction %s is %s", providerName, transactionID, status)

	switch status {
	case checkoutevents.PaymentStatusPaid:
		return s.settlePayment(c, session.CheckoutUID, paidAt)
	case checkoutevents.PaymentStatusRefused, checkoutevents.PaymentStatusExpired:
		return s.closeUnpaid(c, session.CheckoutUID, status)
	default:
		return s.updateSessionStatus(c, session.CheckoutUID, status)
	}
}

func (s *service) findSessionByTransactionID(c context.Context, transactionID string) (PaymentSession, bool, error) {
	sessions, err := s.sessionStore.List(c)
	if err != nil {
		return PaymentSession{}, false, myerrors.NewInternalError(fmt.Errorf("error listing sessions: %s", err))
	}

	for _, session := range sessions {
		if session.TransactionID == transactionID {
			return session, true, nil
		}
	}

	return PaymentSession{}, false, nil
}

func (s *service) reportRequest(session PaymentSession) conversiontracking.ReportRequest {
	return conversiontracking.ReportRequest{
		CheckoutUID:   session.CheckoutUID,
		TransactionID: session.TransactionID,
		AmountCents:   session.AmountCents,
		Host:          session.Host,
		ClientIP:      session.ClientIP,
		Order:         session.Order,
		PaidAt:        session.PaidAt,
	}
}

package smsreminder

import (
	"context"
	"fmt"

	"github.com/gasbutano/checkoutbackend/lib/myerrors"
	"github.com/gasbutano/checkoutbackend/lib/mylog"
	"github.com/gasbutano/checkoutbackend/lib/myqueue"
	"github.com/gasbutano/checkoutbackend/lib/mystore"
	"github.com/gasbutano/checkoutbackend/lib/mytime"
)

type service struct {
	sentStore      mystore.Store[SentRecord]
	queuer         myqueue.TaskQueuer
	sender         Sender
	sessionChecker SessionChecker
	nower          mytime.Nower
	logger         mylog.Logger
}

func newService(sentStore mystore.Store[SentRecord], queuer myqueue.TaskQueuer, sender Sender, sessionChecker SessionChecker, nower mytime.Nower, logger mylog.Logger) *service {
	return &service{
		sentStore:      sentStore,
		queuer:         queuer,
		sender:         sender,
		sessionChecker: sessionChecker,
		nower:          nower,
		logger:         logger,
	}
}

// Schedule enqueues the one-shot reminder task. Whether the reminder is
// actually sent is decided when the task fires.
func (s *service) Schedule(c context.Context, checkoutUID string) error {
	err := s.queuer.Enqueue(c, myqueue.Task{
		UID:            "reminder-" + checkoutUID,
		WebhookURLPath: "/tasks/reminder/" + checkoutUID,
		Delay:          reminderDelay,
	})
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error scheduling reminder for checkout %s: %s", checkoutUID, err))
	}

	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Scheduled payment reminder for checkout %s in %s", checkoutUID, reminderDelay)

	return nil
}

// fire re-checks the session at delivery time. Paid or vanished sessions
// and already-sent reminders all suppress the send.
func (s *service) fire(c context.Context, checkoutUID string) error {
	_, alreadySent, err := s.sentStore.Get(c, checkoutUID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error fetching reminder record for %s: %s", checkoutUID, err))
	}
	if alreadySent {
		s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Reminder for checkout %s was already sent", checkoutUID)

		return nil
	}

	phone, stillPending, err := s.sessionChecker.PendingPhone(c, checkoutUID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error checking session %s: %s", checkoutUID, err))
	}
	if !stillPending {
		s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Checkout %s is no longer pending, suppressing reminder", checkoutUID)

		return nil
	}

	smsID, err := s.sender.Send(c, phone, reminderText)
	if err != nil {
		return myerrors.NewUnavailableError(fmt.Errorf("error sending reminder for checkout %s: %s", checkoutUID, err))
	}

	err = s.sentStore.Put(c, checkoutUID, SentRecord{
		CheckoutUID: checkoutUID,
		SmsID:       smsID,
		Phone:       phone,
		SentAt:      s.nower.Now(),
	})
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error storing reminder record for %s: %s", checkoutUID, err))
	}

	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Sent payment reminder for checkout %s (sms %s)", checkoutUID, smsID)

	return nil
}

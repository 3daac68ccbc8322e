package pixcheckout

import (
	"time"

	"github.com/gasbutano/checkoutbackend/services/checkoutevents"
)

const (
	defaultPollInterval = 7 * time.Second
	defaultPollWindow   = 30 * time.Minute
)

// PollerPhase is the lifecycle of one polling loop.
type PollerPhase string

const (
	PollerIdle    PollerPhase = "IDLE"
	PollerPolling PollerPhase = "POLLING"
	PollerStopped PollerPhase = "STOPPED"
)

type pollEventKind int

const (
	eventStart pollEventKind = iota
	eventStatus
	eventPollFailure
	eventDeadline
)

type pollEvent struct {
	kind   pollEventKind
	status checkoutevents.PaymentStatus
	paidAt *time.Time
}

type pollEffect int

const (
	effectNone pollEffect = iota
	// Persist the new non-terminal status on the session
	effectUpdateStatus
	// Paid: report conversions, publish completion, remove the session
	effectSettlePayment
	// Refused or expired: record the terminal status, no paid reporting
	effectCloseUnpaid
)

// nextPollState is the pure transition function of the poller. The runner
// owns the clock and the side effects; this function only decides. A
// STOPPED phase absorbs every further event, which is what makes the
// paid settlement fire exactly once per polling loop.
func nextPollState(phase PollerPhase, currentStatus checkoutevents.PaymentStatus, event pollEvent) (PollerPhase, pollEffect) {
	switch phase {
	case PollerIdle:
		if event.kind == eventStart {
			return PollerPolling, effectNone
		}

		return PollerIdle, effectNone

	case PollerPolling:
		switch event.kind {
		case eventStatus:
			switch event.status {
			case checkoutevents.PaymentStatusPaid:
				return PollerStopped, effectSettlePayment
			case checkoutevents.PaymentStatusRefused, checkoutevents.PaymentStatusExpired:
				return PollerStopped, effectCloseUnpaid
			default:
				if event.status != currentStatus {
					return PollerPolling, effectUpdateStatus
				}

				return PollerPolling, effectNone
			}

		case eventPollFailure:
			// The fixed interval is the retry mechanism
			return PollerPolling, effectNone

		case eventDeadline:
			// Timeout stops silently, the session stays unpaid
			return PollerStopped, effectNone
		}

		return PollerPolling, effectNone
	}

	return PollerStopped, effectNone
}

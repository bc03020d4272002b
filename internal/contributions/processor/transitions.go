package processor

import (
	"errors"

	"crowdfund-server/internal/money"
	"crowdfund-server/internal/store"
)

var (
	ErrInvalidTransition                 = errors.New("invalid contribution state transition")
	ErrCampaignNotAcceptingContributions = errors.New("campaign is not accepting contributions")
	ErrRefundExceedsAmount               = errors.New("refund exceeds refundable amount")
	ErrNotTrashed                        = errors.New("contribution is not trashed")
)

// Change is the outcome of a lifecycle rule: the status pair to write, the
// activity to derive, and whether campaign aggregates need a recount.
// NoChange marks an event that duplicates already-applied state and must be
// dropped without side effects.
type Change struct {
	Status         string
	PaymentStatus  string
	RefundedAmount int64
	ActivityType   string
	Recount        bool
	NoChange       bool
}

// settledStatus is the terminal success state for a contribution kind.
// Donations settle immediately; pledges settle to backed and complete later
// when the reward is delivered.
func settledStatus(kind string) string {
	if kind == store.ContributionKindPledge {
		return store.ContributionStatusBacked
	}
	return store.ContributionStatusCompleted
}

// OnPaymentSuccess settles a pending or in-progress contribution
func OnPaymentSuccess(c store.Contribution) (Change, error) {
	target := settledStatus(c.Kind)
	if c.Status == target {
		return Change{NoChange: true}, nil
	}
	switch c.Status {
	case store.ContributionStatusPending, store.ContributionStatusInProgress:
		return Change{
			Status:         target,
			PaymentStatus:  store.PaymentStatusPaid,
			RefundedAmount: c.RefundedAmount,
			ActivityType:   activityForStatus(c.Kind, target),
			Recount:        true,
		}, nil
	}
	return Change{}, ErrInvalidTransition
}

// OnPaymentPending records that the gateway has the payment in flight
func OnPaymentPending(c store.Contribution) (Change, error) {
	switch c.Status {
	case store.ContributionStatusPending, store.ContributionStatusInProgress:
		if c.PaymentStatus == store.PaymentStatusPending {
			return Change{NoChange: true}, nil
		}
		return Change{
			Status:         c.Status,
			PaymentStatus:  store.PaymentStatusPending,
			RefundedAmount: c.RefundedAmount,
		}, nil
	}
	// A pending event arriving after settlement is stale gateway noise
	return Change{NoChange: true}, nil
}

// OnPaymentFailed fails a contribution that never settled
func OnPaymentFailed(c store.Contribution) (Change, error) {
	switch c.Status {
	case store.ContributionStatusFailed:
		return Change{NoChange: true}, nil
	case store.ContributionStatusPending, store.ContributionStatusInProgress:
		return Change{
			Status:         store.ContributionStatusFailed,
			PaymentStatus:  store.PaymentStatusUnpaid,
			RefundedAmount: c.RefundedAmount,
			ActivityType:   activityForStatus(c.Kind, store.ContributionStatusFailed),
		}, nil
	}
	return Change{}, ErrInvalidTransition
}

// OnPaymentCancelled cancels a contribution that never settled
func OnPaymentCancelled(c store.Contribution) (Change, error) {
	switch c.Status {
	case store.ContributionStatusCancelled:
		return Change{NoChange: true}, nil
	case store.ContributionStatusPending, store.ContributionStatusInProgress:
		return Change{
			Status:         store.ContributionStatusCancelled,
			PaymentStatus:  store.PaymentStatusUnpaid,
			RefundedAmount: c.RefundedAmount,
			ActivityType:   activityForStatus(c.Kind, store.ContributionStatusCancelled),
		}, nil
	}
	return Change{}, ErrInvalidTransition
}

// OnCancelAfterCapture settles a queued cancel whose charge won the race.
// The money was captured, so the payment status records paid and the caller
// must enqueue a compensating refund; the refund webhook then moves the
// payment status on to refunded.
func OnCancelAfterCapture(c store.Contribution) (Change, error) {
	switch c.Status {
	case store.ContributionStatusCancelled:
		return Change{NoChange: true}, nil
	case store.ContributionStatusPending, store.ContributionStatusInProgress:
		return Change{
			Status:         store.ContributionStatusCancelled,
			PaymentStatus:  store.PaymentStatusPaid,
			RefundedAmount: c.RefundedAmount,
			ActivityType:   activityForStatus(c.Kind, store.ContributionStatusCancelled),
		}, nil
	}
	return Change{}, ErrInvalidTransition
}

// OnSetupSuccess moves a pledge into in-progress once its payment method is
// stored. Donations have no setup phase.
func OnSetupSuccess(c store.Contribution) (Change, error) {
	if c.Kind != store.ContributionKindPledge {
		return Change{}, ErrInvalidTransition
	}
	switch c.Status {
	case store.ContributionStatusInProgress:
		return Change{NoChange: true}, nil
	case store.ContributionStatusPending:
		return Change{
			Status:         store.ContributionStatusInProgress,
			PaymentStatus:  c.PaymentStatus,
			RefundedAmount: c.RefundedAmount,
			ActivityType:   store.ActivityPledgeInProgress,
		}, nil
	}
	return Change{}, ErrInvalidTransition
}

// OnRefund applies refund bookkeeping for a refund of refundAmount on top of
// what was already refunded. Refunds never change the lifecycle status, only
// the payment status and refunded amount. A full refund leaves the counted
// set, so it triggers an aggregate recount; partial refunds keep the
// contribution counted at its full gross amount.
func OnRefund(c store.Contribution, refundAmount int64) (Change, error) {
	if c.PaymentStatus != store.PaymentStatusPaid &&
		c.PaymentStatus != store.PaymentStatusPartiallyRefunded {
		return Change{}, ErrInvalidTransition
	}

	newTotal := c.RefundedAmount + refundAmount
	if refundAmount <= 0 || newTotal > c.GrossAmount() {
		return Change{}, ErrRefundExceedsAmount
	}

	refundStatus := money.RefundStatusPartial
	if newTotal == c.GrossAmount() {
		refundStatus = money.RefundStatusFull
	}

	return Change{
		Status:         c.Status,
		PaymentStatus:  string(refundStatus),
		RefundedAmount: newTotal,
		ActivityType:   activityForRefund(c.Kind, refundStatus),
		Recount:        refundStatus == money.RefundStatusFull,
	}, nil
}

// OnRefundTotal applies refund bookkeeping from a gateway notification, whose
// amount is the cumulative refunded total rather than a delta. Redelivery of
// a notification, or one that arrives after a later refund already landed,
// carries a total at or below what is recorded and drops as a no-op.
func OnRefundTotal(c store.Contribution, refundedTotal int64) (Change, error) {
	if refundedTotal <= c.RefundedAmount {
		return Change{NoChange: true}, nil
	}
	return OnRefund(c, refundedTotal-c.RefundedAmount)
}

// OnMarkDelivered completes a backed pledge
func OnMarkDelivered(c store.Contribution) (Change, error) {
	if c.Kind != store.ContributionKindPledge || c.Status != store.ContributionStatusBacked {
		return Change{}, ErrInvalidTransition
	}
	return Change{
		Status:         store.ContributionStatusCompleted,
		PaymentStatus:  c.PaymentStatus,
		RefundedAmount: c.RefundedAmount,
		ActivityType:   store.ActivityPledgeCompleted,
	}, nil
}

// OnRetryPayment returns a failed contribution to pending so its order id
// can be charged again.
func OnRetryPayment(c store.Contribution) (Change, error) {
	if c.Status != store.ContributionStatusFailed {
		return Change{}, ErrInvalidTransition
	}
	return Change{
		Status:         store.ContributionStatusPending,
		PaymentStatus:  store.PaymentStatusUnpaid,
		RefundedAmount: c.RefundedAmount,
		ActivityType:   store.ActivityPledgePaymentRetried,
	}, nil
}

// OnAdminCancel cancels an unsettled contribution on operator request
func OnAdminCancel(c store.Contribution) (Change, error) {
	return OnPaymentCancelled(c)
}

func activityForStatus(kind, status string) string {
	if kind == store.ContributionKindPledge {
		switch status {
		case store.ContributionStatusInProgress:
			return store.ActivityPledgeInProgress
		case store.ContributionStatusBacked:
			return store.ActivityPledgeBacked
		case store.ContributionStatusCompleted:
			return store.ActivityPledgeCompleted
		case store.ContributionStatusFailed:
			return store.ActivityPledgeFailed
		case store.ContributionStatusCancelled:
			return store.ActivityPledgeCancelled
		}
		return ""
	}
	switch status {
	case store.ContributionStatusCompleted:
		return store.ActivityDonationCompleted
	case store.ContributionStatusFailed:
		return store.ActivityDonationFailed
	case store.ContributionStatusCancelled:
		return store.ActivityDonationCancelled
	}
	return ""
}

func activityForRefund(kind string, status money.RefundStatus) string {
	if kind == store.ContributionKindPledge {
		if status == money.RefundStatusFull {
			return store.ActivityPledgeRefunded
		}
		return store.ActivityPledgePartiallyRefunded
	}
	if status == money.RefundStatusFull {
		return store.ActivityDonationRefunded
	}
	return store.ActivityDonationPartiallyRefunded
}

package processor

import (
	"errors"
	"testing"

	"crowdfund-server/internal/store"
)

func donation(status, paymentStatus string) store.Contribution {
	return store.Contribution{
		Kind:          store.ContributionKindDonation,
		Status:        status,
		PaymentStatus: paymentStatus,
		Amount:        10000,
	}
}

func pledge(status, paymentStatus string) store.Contribution {
	return store.Contribution{
		Kind:          store.ContributionKindPledge,
		Status:        status,
		PaymentStatus: paymentStatus,
		Amount:        10000,
		BonusAmount:   500,
	}
}

func TestOnPaymentSuccessDonation(t *testing.T) {
	change, err := OnPaymentSuccess(donation(store.ContributionStatusPending, store.PaymentStatusPending))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.Status != store.ContributionStatusCompleted {
		t.Errorf("expected completed, got %s", change.Status)
	}
	if change.PaymentStatus != store.PaymentStatusPaid {
		t.Errorf("expected paid, got %s", change.PaymentStatus)
	}
	if !change.Recount {
		t.Error("settling must trigger an aggregate recount")
	}
	if change.ActivityType != store.ActivityDonationCompleted {
		t.Errorf("expected donation.completed activity, got %s", change.ActivityType)
	}
}

func TestOnPaymentSuccessPledge(t *testing.T) {
	change, err := OnPaymentSuccess(pledge(store.ContributionStatusInProgress, store.PaymentStatusPending))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.Status != store.ContributionStatusBacked {
		t.Errorf("expected backed, got %s", change.Status)
	}
	if change.ActivityType != store.ActivityPledgeBacked {
		t.Errorf("expected pledge.backed activity, got %s", change.ActivityType)
	}
}

func TestOnPaymentSuccessIdempotent(t *testing.T) {
	change, err := OnPaymentSuccess(donation(store.ContributionStatusCompleted, store.PaymentStatusPaid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !change.NoChange {
		t.Error("success on an already settled contribution must be a no-op")
	}
}

func TestOnPaymentSuccessFromTerminalState(t *testing.T) {
	_, err := OnPaymentSuccess(donation(store.ContributionStatusCancelled, store.PaymentStatusUnpaid))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestOnPaymentPending(t *testing.T) {
	change, err := OnPaymentPending(donation(store.ContributionStatusPending, store.PaymentStatusUnpaid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.Status != store.ContributionStatusPending || change.PaymentStatus != store.PaymentStatusPending {
		t.Errorf("expected pending/pending, got %s/%s", change.Status, change.PaymentStatus)
	}

	// pending after settlement is stale noise, not an error
	change, err = OnPaymentPending(donation(store.ContributionStatusCompleted, store.PaymentStatusPaid))
	if err != nil || !change.NoChange {
		t.Errorf("expected stale pending to be dropped, got change=%+v err=%v", change, err)
	}
}

func TestOnPaymentFailed(t *testing.T) {
	change, err := OnPaymentFailed(pledge(store.ContributionStatusInProgress, store.PaymentStatusPending))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.Status != store.ContributionStatusFailed {
		t.Errorf("expected failed, got %s", change.Status)
	}
	if change.ActivityType != store.ActivityPledgeFailed {
		t.Errorf("expected pledge.failed activity, got %s", change.ActivityType)
	}

	if _, err := OnPaymentFailed(donation(store.ContributionStatusCompleted, store.PaymentStatusPaid)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for settled contribution, got %v", err)
	}
}

func TestOnPaymentCancelled(t *testing.T) {
	change, err := OnPaymentCancelled(donation(store.ContributionStatusPending, store.PaymentStatusUnpaid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.Status != store.ContributionStatusCancelled {
		t.Errorf("expected cancelled, got %s", change.Status)
	}

	change, err = OnPaymentCancelled(donation(store.ContributionStatusCancelled, store.PaymentStatusUnpaid))
	if err != nil || !change.NoChange {
		t.Errorf("expected duplicate cancel to be dropped, got change=%+v err=%v", change, err)
	}
}

func TestOnSetupSuccess(t *testing.T) {
	change, err := OnSetupSuccess(pledge(store.ContributionStatusPending, store.PaymentStatusUnpaid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.Status != store.ContributionStatusInProgress {
		t.Errorf("expected in-progress, got %s", change.Status)
	}
	if change.ActivityType != store.ActivityPledgeInProgress {
		t.Errorf("expected pledge.in_progress activity, got %s", change.ActivityType)
	}

	if _, err := OnSetupSuccess(donation(store.ContributionStatusPending, store.PaymentStatusUnpaid)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("setup success must be rejected for donations, got %v", err)
	}

	change, err = OnSetupSuccess(pledge(store.ContributionStatusInProgress, store.PaymentStatusUnpaid))
	if err != nil || !change.NoChange {
		t.Errorf("expected duplicate setup to be dropped, got change=%+v err=%v", change, err)
	}
}

func TestOnRefundPartialThenFull(t *testing.T) {
	c := donation(store.ContributionStatusCompleted, store.PaymentStatusPaid)

	change, err := OnRefund(c, 4000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.PaymentStatus != store.PaymentStatusPartiallyRefunded {
		t.Errorf("expected partially-refunded, got %s", change.PaymentStatus)
	}
	if change.RefundedAmount != 4000 {
		t.Errorf("expected refunded amount 4000, got %d", change.RefundedAmount)
	}
	if change.Status != store.ContributionStatusCompleted {
		t.Error("refunds must not change lifecycle status")
	}
	if change.Recount {
		t.Error("a partial refund must not trigger a recount")
	}

	c.RefundedAmount = 4000
	c.PaymentStatus = store.PaymentStatusPartiallyRefunded
	change, err = OnRefund(c, 6000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.PaymentStatus != store.PaymentStatusRefunded {
		t.Errorf("expected refunded, got %s", change.PaymentStatus)
	}
	if change.ActivityType != store.ActivityDonationRefunded {
		t.Errorf("expected donation.refunded activity, got %s", change.ActivityType)
	}
	if !change.Recount {
		t.Error("a full refund leaves the counted set and must trigger a recount")
	}
}

func TestOnRefundTotal(t *testing.T) {
	c := donation(store.ContributionStatusCompleted, store.PaymentStatusPaid)

	change, err := OnRefundTotal(c, 4000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.RefundedAmount != 4000 || change.PaymentStatus != store.PaymentStatusPartiallyRefunded {
		t.Errorf("expected partial refund of 4000, got %+v", change)
	}

	c.RefundedAmount = 4000
	c.PaymentStatus = store.PaymentStatusPartiallyRefunded

	// redelivered notification carries the same total: nothing to apply
	change, err = OnRefundTotal(c, 4000)
	if err != nil || !change.NoChange {
		t.Errorf("expected replayed total to be a no-op, got change=%+v err=%v", change, err)
	}

	// out-of-order delivery of an older, smaller total
	change, err = OnRefundTotal(c, 2500)
	if err != nil || !change.NoChange {
		t.Errorf("expected stale total to be a no-op, got change=%+v err=%v", change, err)
	}

	// a larger total applies only the delta
	change, err = OnRefundTotal(c, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.RefundedAmount != 10000 {
		t.Errorf("expected refunded amount 10000, got %d", change.RefundedAmount)
	}
	if change.PaymentStatus != store.PaymentStatusRefunded {
		t.Errorf("expected refunded, got %s", change.PaymentStatus)
	}
}

func TestOnCancelAfterCapture(t *testing.T) {
	change, err := OnCancelAfterCapture(donation(store.ContributionStatusPending, store.PaymentStatusPending))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.Status != store.ContributionStatusCancelled {
		t.Errorf("expected cancelled, got %s", change.Status)
	}
	if change.PaymentStatus != store.PaymentStatusPaid {
		t.Errorf("captured money must be recorded as paid so a refund can follow, got %s", change.PaymentStatus)
	}

	change, err = OnCancelAfterCapture(donation(store.ContributionStatusCancelled, store.PaymentStatusPaid))
	if err != nil || !change.NoChange {
		t.Errorf("expected duplicate cancel to be dropped, got change=%+v err=%v", change, err)
	}

	if _, err := OnCancelAfterCapture(donation(store.ContributionStatusCompleted, store.PaymentStatusPaid)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for settled contribution, got %v", err)
	}
}

func TestOnRefundExceedsAmount(t *testing.T) {
	c := donation(store.ContributionStatusCompleted, store.PaymentStatusPaid)
	if _, err := OnRefund(c, 10001); !errors.Is(err, ErrRefundExceedsAmount) {
		t.Errorf("expected ErrRefundExceedsAmount, got %v", err)
	}
	if _, err := OnRefund(c, 0); !errors.Is(err, ErrRefundExceedsAmount) {
		t.Errorf("expected ErrRefundExceedsAmount for zero refund, got %v", err)
	}
}

func TestOnRefundRequiresPaid(t *testing.T) {
	c := donation(store.ContributionStatusPending, store.PaymentStatusUnpaid)
	if _, err := OnRefund(c, 1000); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for unpaid contribution, got %v", err)
	}
}

func TestOnMarkDelivered(t *testing.T) {
	change, err := OnMarkDelivered(pledge(store.ContributionStatusBacked, store.PaymentStatusPaid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.Status != store.ContributionStatusCompleted {
		t.Errorf("expected completed, got %s", change.Status)
	}

	if _, err := OnMarkDelivered(pledge(store.ContributionStatusPending, store.PaymentStatusUnpaid)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for unsettled pledge, got %v", err)
	}
	if _, err := OnMarkDelivered(donation(store.ContributionStatusCompleted, store.PaymentStatusPaid)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for donation, got %v", err)
	}
}

func TestOnRetryPayment(t *testing.T) {
	change, err := OnRetryPayment(pledge(store.ContributionStatusFailed, store.PaymentStatusUnpaid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.Status != store.ContributionStatusPending {
		t.Errorf("expected pending, got %s", change.Status)
	}
	if change.ActivityType != store.ActivityPledgePaymentRetried {
		t.Errorf("expected payment retried activity, got %s", change.ActivityType)
	}

	if _, err := OnRetryPayment(pledge(store.ContributionStatusPending, store.PaymentStatusUnpaid)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for non-failed contribution, got %v", err)
	}
}

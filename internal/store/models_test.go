package store

import (
	"testing"
	"time"
)

func TestContributionCounted(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		c    Contribution
		want bool
	}{
		{"completed paid", Contribution{Status: ContributionStatusCompleted, PaymentStatus: PaymentStatusPaid}, true},
		{"backed paid", Contribution{Status: ContributionStatusBacked, PaymentStatus: PaymentStatusPaid}, true},
		{"partially refunded stays counted", Contribution{Status: ContributionStatusCompleted, PaymentStatus: PaymentStatusPartiallyRefunded}, true},
		{"fully refunded leaves the set", Contribution{Status: ContributionStatusCompleted, PaymentStatus: PaymentStatusRefunded}, false},
		{"pending", Contribution{Status: ContributionStatusPending, PaymentStatus: PaymentStatusPending}, false},
		{"cancelled", Contribution{Status: ContributionStatusCancelled, PaymentStatus: PaymentStatusUnpaid}, false},
		{"trashed", Contribution{Status: ContributionStatusCompleted, PaymentStatus: PaymentStatusPaid, DeletedAt: &now}, false},
	}
	for _, tc := range cases {
		if got := tc.c.Counted(); got != tc.want {
			t.Errorf("%s: Counted() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestContributionGrossAmount(t *testing.T) {
	c := Contribution{Amount: 10000, BonusAmount: 500, ShippingAmount: 300, RecoveryFee: 526}
	if got := c.GrossAmount(); got != 11326 {
		t.Errorf("GrossAmount() = %d, want 11326", got)
	}
}

package escrow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"zurbo-service/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFeeAndNet(t *testing.T) {
	fee := Fee(dec("120.00"), dec("10"))
	if !fee.Equal(dec("12.00")) {
		t.Fatalf("fee: %s", fee)
	}
	if net := Net(dec("120.00"), fee); !net.Equal(dec("108.00")) {
		t.Fatalf("net: %s", net)
	}
	// Rounds to cents.
	if fee := Fee(dec("99.99"), dec("12.5")); !fee.Equal(dec("12.50")) {
		t.Fatalf("rounded fee: %s", fee)
	}
}

func TestNetHoldsForEveryStatus(t *testing.T) {
	for _, status := range []string{StatusPending, StatusAuthorized, StatusCaptured, StatusDisputed, StatusFailed} {
		p := model.EscrowPayment{GrossAmount: dec("80.00"), ZurboFee: dec("8.00"), Status: status}
		if net := Net(p.GrossAmount, p.ZurboFee); !net.Equal(dec("72.00")) {
			t.Fatalf("net for %s: %s", status, net)
		}
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{StatusPending, StatusAuthorized, true},
		{StatusPending, StatusDisputed, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCaptured, false},
		{StatusAuthorized, StatusCaptured, true},
		{StatusAuthorized, StatusDisputed, true},
		{StatusCaptured, StatusDisputed, false},
		{StatusFailed, StatusAuthorized, false},
		{StatusDisputed, StatusCaptured, true},
		{StatusDisputed, StatusFailed, true},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.ok {
			t.Fatalf("%s -> %s: got %v", c.from, c.to, got)
		}
	}
}

func TestAuthorizeStampsReleaseDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := model.EscrowPayment{Status: StatusPending, GrossAmount: dec("120.00"), ZurboFee: dec("12.00")}
	if err := Authorize(&p, "pi_123", now, 7); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if p.Status != StatusAuthorized || p.ProviderRef != "pi_123" {
		t.Fatalf("payment after authorize: %+v", p)
	}
	want := now.AddDate(0, 0, 7)
	if p.AutoReleaseAt == nil || !p.AutoReleaseAt.Equal(want) {
		t.Fatalf("auto release at: %v", p.AutoReleaseAt)
	}
	if err := Authorize(&p, "pi_123", now, 7); err != ErrInvalidTransition {
		t.Fatalf("double authorize: got %v", err)
	}
}

func TestReleaseEligible(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	p := model.EscrowPayment{Status: StatusAuthorized, AutoReleaseAt: &past}
	if !ReleaseEligible(&p, now, false) {
		t.Fatal("past release date should be eligible")
	}
	if ReleaseEligible(&p, now, true) {
		t.Fatal("open dispute must block release")
	}
	p.AutoReleaseAt = &future
	if ReleaseEligible(&p, now, false) {
		t.Fatal("future release date should not be eligible")
	}
	p = model.EscrowPayment{Status: StatusPending, AutoReleaseAt: &past}
	if ReleaseEligible(&p, now, false) {
		t.Fatal("pending payment should not be eligible")
	}
}

package lifecycle

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestStatusEnumClosed(t *testing.T) {
	all := []Status{
		StatusAwaitingPrice, StatusPriceSet, StatusAccepted, StatusRejected,
		StatusPaidEscrow, StatusInProgress, StatusCompleted, StatusCancelled,
		StatusBlocked,
	}
	for _, s := range all {
		if !Valid(s) {
			t.Fatalf("status %q should be valid", s)
		}
	}
	if Valid("paid") {
		t.Fatal("unknown status accepted")
	}
	if Valid("") {
		t.Fatal("empty status accepted")
	}
}

func TestBlockedReachableFromEveryNonTerminalState(t *testing.T) {
	nonTerminal := []Status{
		StatusAwaitingPrice, StatusPriceSet, StatusAccepted,
		StatusPaidEscrow, StatusInProgress,
	}
	for _, from := range nonTerminal {
		if err := Guard(from, StatusBlocked, RoleClient); err != nil {
			t.Fatalf("client report from %q: %v", from, err)
		}
		if err := Guard(from, StatusBlocked, RoleProvider); err != nil {
			t.Fatalf("provider report from %q: %v", from, err)
		}
	}
	for _, from := range []Status{StatusRejected, StatusCompleted, StatusCancelled, StatusBlocked} {
		if err := Guard(from, StatusBlocked, RoleClient); err != ErrInvalidTransition {
			t.Fatalf("report from terminal %q: got %v", from, err)
		}
	}
}

func TestPriceSetIsProviderOnly(t *testing.T) {
	if err := Guard(StatusAwaitingPrice, StatusPriceSet, RoleProvider); err != nil {
		t.Fatalf("provider price set: %v", err)
	}
	if err := Guard(StatusAwaitingPrice, StatusPriceSet, RoleClient); err != ErrForbidden {
		t.Fatalf("client price set: got %v, want ErrForbidden", err)
	}
	// Revision from price_set stays provider-only.
	if err := Guard(StatusPriceSet, StatusPriceSet, RoleClient); err != ErrForbidden {
		t.Fatalf("client price revision: got %v, want ErrForbidden", err)
	}
}

func TestAcceptRejectAreClientOnly(t *testing.T) {
	if err := Guard(StatusPriceSet, StatusAccepted, RoleClient); err != nil {
		t.Fatalf("client accept: %v", err)
	}
	if err := Guard(StatusPriceSet, StatusAccepted, RoleProvider); err != ErrForbidden {
		t.Fatalf("provider accept: got %v", err)
	}
	if err := Guard(StatusPriceSet, StatusRejected, RoleClient); err != nil {
		t.Fatalf("client reject: %v", err)
	}
	if err := Guard(StatusPriceSet, StatusRejected, RoleProvider); err != ErrForbidden {
		t.Fatalf("provider reject: got %v", err)
	}
	// Accept before a price exists is not a transition at all.
	if err := Guard(StatusAwaitingPrice, StatusAccepted, RoleClient); err != ErrInvalidTransition {
		t.Fatalf("accept without price: got %v", err)
	}
}

func TestPaymentDrivenTransitions(t *testing.T) {
	if err := Guard(StatusAccepted, StatusPaidEscrow, RoleSystem); err != nil {
		t.Fatalf("system paid_escrow: %v", err)
	}
	if err := Guard(StatusAccepted, StatusPaidEscrow, RoleClient); err != ErrForbidden {
		t.Fatalf("client paid_escrow: got %v", err)
	}
	if err := Guard(StatusInProgress, StatusCompleted, RoleSystem); err != nil {
		t.Fatalf("auto-release completion: %v", err)
	}
	if err := Guard(StatusInProgress, StatusCompleted, RoleProvider); err != ErrForbidden {
		t.Fatalf("provider self-completion: got %v", err)
	}
}

func TestSendPolicy(t *testing.T) {
	if CanSendMessage(StatusBlocked) {
		t.Fatal("blocked conversation must refuse sends")
	}
	for _, s := range []Status{StatusAwaitingPrice, StatusPriceSet, StatusRejected, StatusCompleted} {
		if !CanSendMessage(s) {
			t.Fatalf("sends should be allowed in %q", s)
		}
	}
}

func TestReportReasons(t *testing.T) {
	for _, r := range []string{ReasonSpam, ReasonHarassment, ReasonInappropriate, ReasonFraud, ReasonOther} {
		if !ValidReason(r) {
			t.Fatalf("reason %q should be valid", r)
		}
	}
	if ValidReason("angry") {
		t.Fatal("unknown reason accepted")
	}
}

func TestSystemMessages(t *testing.T) {
	price := decimal.RequireFromString("120")
	if got := PriceSetMessage(price); got != "Preço definido: R$ 120.00" {
		t.Fatalf("price message: %q", got)
	}
	if got := SystemMessage(StatusAccepted); got != "Preço aceito! Aguardando pagamento." {
		t.Fatalf("accepted message: %q", got)
	}
	if got := SystemMessage(StatusAwaitingPrice); got != "" {
		t.Fatalf("awaiting_price should narrate nothing, got %q", got)
	}
	if MsgDisputed != "Pagamento em disputa. Nossa equipe irá analisar." {
		t.Fatalf("disputed message: %q", MsgDisputed)
	}
}

// Package escrow tracks funds held for a conversation: fee math, payment
// status transitions and auto-release eligibility.
package escrow

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"zurbo-service/model"
)

const (
	StatusPending    = "pending"
	StatusAuthorized = "authorized"
	StatusCaptured   = "captured"
	StatusDisputed   = "disputed"
	StatusFailed     = "failed"
)

var ErrInvalidTransition = errors.New("escrow transition not allowed from current status")

// transitions maps from -> allowed next statuses.
var transitions = map[string][]string{
	StatusPending:    {StatusAuthorized, StatusDisputed, StatusFailed},
	StatusAuthorized: {StatusCaptured, StatusDisputed, StatusFailed},
	// Disputed resolves by admin decision only.
	StatusDisputed: {StatusCaptured, StatusFailed},
}

// Fee computes the platform fee for a gross amount at a percent rate,
// rounded to cents. The rate itself is pricing policy, supplied by config.
func Fee(gross decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	return gross.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}

// Net is what the provider receives: gross minus the stored fee. Computed at
// read time everywhere it is shown, never persisted.
func Net(gross, fee decimal.Decimal) decimal.Decimal {
	return gross.Sub(fee)
}

// CanTransition reports whether a payment may move between two statuses.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Authorize marks funds as held and stamps the auto-release date a fixed
// number of days out.
func Authorize(p *model.EscrowPayment, providerRef string, now time.Time, holdDays int) error {
	if !CanTransition(p.Status, StatusAuthorized) {
		return ErrInvalidTransition
	}
	release := now.AddDate(0, 0, holdDays)
	p.Status = StatusAuthorized
	p.ProviderRef = providerRef
	p.AuthorizedAt = &now
	p.AutoReleaseAt = &release
	return nil
}

// Capture releases held funds to the provider.
func Capture(p *model.EscrowPayment, now time.Time) error {
	if !CanTransition(p.Status, StatusCaptured) {
		return ErrInvalidTransition
	}
	p.Status = StatusCaptured
	p.CapturedAt = &now
	return nil
}

// MarkDisputed freezes the payment until an admin resolves it.
func MarkDisputed(p *model.EscrowPayment) error {
	if !CanTransition(p.Status, StatusDisputed) {
		return ErrInvalidTransition
	}
	p.Status = StatusDisputed
	return nil
}

// MarkFailed records a provider-side failure.
func MarkFailed(p *model.EscrowPayment) error {
	if !CanTransition(p.Status, StatusFailed) {
		return ErrInvalidTransition
	}
	p.Status = StatusFailed
	return nil
}

// ReleaseEligible reports whether an authorized payment has passed its
// auto-release date with no open dispute.
func ReleaseEligible(p *model.EscrowPayment, now time.Time, openDispute bool) bool {
	if p.Status != StatusAuthorized || p.AutoReleaseAt == nil || openDispute {
		return false
	}
	return !now.Before(*p.AutoReleaseAt)
}

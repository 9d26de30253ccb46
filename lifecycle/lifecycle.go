// Package lifecycle owns the conversation state machine: which statuses
// exist, who may trigger which transition, what the chat log says about it,
// and when message sending is allowed.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusAwaitingPrice Status = "awaiting_price"
	StatusPriceSet      Status = "price_set"
	StatusAccepted      Status = "accepted"
	StatusRejected      Status = "rejected"
	StatusPaidEscrow    Status = "paid_escrow"
	StatusInProgress    Status = "in_progress"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
	StatusBlocked       Status = "blocked"
)

// Role of the actor triggering a transition, relative to one conversation.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	// RoleSystem covers transitions driven by payment events and the
	// auto-release sweep, never by a request from either party.
	RoleSystem Role = "system"
)

// Report reasons, fixed enumeration.
const (
	ReasonSpam          = "spam"
	ReasonHarassment    = "harassment"
	ReasonInappropriate = "inappropriate"
	ReasonFraud         = "fraud"
	ReasonOther         = "other"
)

var (
	ErrInvalidStatus     = errors.New("unknown conversation status")
	ErrInvalidTransition = errors.New("transition not allowed from current status")
	ErrForbidden         = errors.New("actor role may not trigger this transition")
	ErrInvalidReason     = errors.New("unknown report reason")
)

var statuses = map[Status]bool{
	StatusAwaitingPrice: true,
	StatusPriceSet:      true,
	StatusAccepted:      true,
	StatusRejected:      true,
	StatusPaidEscrow:    true,
	StatusInProgress:    true,
	StatusCompleted:     true,
	StatusCancelled:     true,
	StatusBlocked:       true,
}

var terminal = map[Status]bool{
	StatusRejected:  true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusBlocked:   true,
}

var reasons = map[string]bool{
	ReasonSpam:          true,
	ReasonHarassment:    true,
	ReasonInappropriate: true,
	ReasonFraud:         true,
	ReasonOther:         true,
}

// transitions maps from -> to -> allowed actor roles.
var transitions = map[Status]map[Status][]Role{
	StatusAwaitingPrice: {
		StatusPriceSet:  {RoleProvider},
		StatusCancelled: {RoleClient, RoleProvider},
	},
	StatusPriceSet: {
		StatusPriceSet:  {RoleProvider}, // price revision
		StatusAccepted:  {RoleClient},
		StatusRejected:  {RoleClient},
		StatusCancelled: {RoleClient, RoleProvider},
	},
	StatusAccepted: {
		StatusPaidEscrow: {RoleSystem},
		StatusCancelled:  {RoleClient, RoleProvider},
	},
	StatusPaidEscrow: {
		StatusInProgress: {RoleProvider, RoleSystem},
	},
	StatusInProgress: {
		StatusCompleted: {RoleClient, RoleSystem},
	},
}

func Valid(s Status) bool { return statuses[s] }

func IsTerminal(s Status) bool { return terminal[s] }

func ValidReason(r string) bool { return reasons[r] }

// CanSendMessage reports whether regular messages may be sent in the given
// status. Blocked is the only status that refuses sends, for both parties.
func CanSendMessage(s Status) bool { return s != StatusBlocked }

// Guard checks a transition attempt and returns nil when actor may move the
// conversation from one status to the other. Blocking via report is reachable
// from every non-terminal status by either party.
func Guard(from, to Status, actor Role) error {
	if !Valid(from) || !Valid(to) {
		return ErrInvalidStatus
	}
	if to == StatusBlocked {
		if IsTerminal(from) {
			return ErrInvalidTransition
		}
		if actor != RoleClient && actor != RoleProvider {
			return ErrForbidden
		}
		return nil
	}
	allowed, ok := transitions[from][to]
	if !ok {
		return ErrInvalidTransition
	}
	for _, role := range allowed {
		if role == actor {
			return nil
		}
	}
	return ErrForbidden
}

// System message texts narrating transitions inside the chat log.
const (
	MsgAccepted   = "Preço aceito! Aguardando pagamento."
	MsgRejected   = "Preço recusado."
	MsgPaid       = "Pagamento recebido! O valor está retido em garantia."
	MsgInProgress = "Serviço iniciado."
	MsgCompleted  = "Serviço concluído. Pagamento liberado ao prestador."
	MsgCancelled  = "Conversa cancelada."
	MsgBlocked    = "Conversa bloqueada após denúncia."
	// MsgDisputed narrates a payment dispute; the conversation status itself
	// does not change.
	MsgDisputed = "Pagamento em disputa. Nossa equipe irá analisar."
)

// PriceSetMessage renders the system message for a newly proposed price.
func PriceSetMessage(price decimal.Decimal) string {
	return fmt.Sprintf("Preço definido: R$ %s", price.StringFixed(2))
}

// SystemMessage returns the chat narration for entering a status, empty for
// statuses that narrate nothing (price_set uses PriceSetMessage).
func SystemMessage(to Status) string {
	switch to {
	case StatusAccepted:
		return MsgAccepted
	case StatusRejected:
		return MsgRejected
	case StatusPaidEscrow:
		return MsgPaid
	case StatusInProgress:
		return MsgInProgress
	case StatusCompleted:
		return MsgCompleted
	case StatusCancelled:
		return MsgCancelled
	case StatusBlocked:
		return MsgBlocked
	}
	return ""
}

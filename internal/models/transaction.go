package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction tx_type enums. Closed set: the ledger rejects anything else.
const (
	TxTypePurchase         = "purchase"
	TxTypeReferral         = "referral"
	TxTypeSocialShare      = "social_share"
	TxTypeGenerationRefund = "generation_refund"
	TxTypeAdminAdjustment  = "admin_adjustment"
	TxTypeSpend            = "spend"
)

// Transaction is an append-only ledger record. Amount is signed: earns are
// positive, spends negative. ReferenceID points at a generation or a
// referred user depending on tx_type.
type Transaction struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Amount      int        `json:"amount"`
	TxType      string     `json:"tx_type"`
	Description string     `json:"description"`
	ReferenceID *uuid.UUID `json:"reference_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ValidTxType reports whether t is one of the closed tx_type enums.
func ValidTxType(t string) bool {
	switch t {
	case TxTypePurchase, TxTypeReferral, TxTypeSocialShare,
		TxTypeGenerationRefund, TxTypeAdminAdjustment, TxTypeSpend:
		return true
	}
	return false
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountBalance is the denormalized running balance per user. The
// transactions table is the source of truth; balance is a cache of its sum.
// Only the ledger package may write this row.
type AccountBalance struct {
	UserID      uuid.UUID `json:"user_id"`
	Balance     int       `json:"balance"`
	TotalEarned int       `json:"total_earned"`
	TotalSpent  int       `json:"total_spent"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Referral records one successfully attributed referral. At most one row per
// (referrer, referred) pair, and a user can appear as referred_id at most
// once ever (first attribution wins); both enforced by unique indexes.
type Referral struct {
	ID             uuid.UUID `json:"id"`
	ReferrerID     uuid.UUID `json:"referrer_id"`
	ReferredID     uuid.UUID `json:"referred_id"`
	CreditsAwarded int       `json:"credits_awarded"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReferralStats is the aggregate view returned by GET /referral.
type ReferralStats struct {
	TotalReferrals     int `json:"total_referrals"`
	TotalCreditsEarned int `json:"total_credits_earned"`
}

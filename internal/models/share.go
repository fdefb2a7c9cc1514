package models

import (
	"time"

	"github.com/google/uuid"
)

// Social share platform enums.
const (
	PlatformTwitter   = "twitter"
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformLinkedIn  = "linkedin"
	PlatformPinterest = "pinterest"
)

// SocialShare records one rewarded share. When GenerationID is set, at most
// one rewarded row exists per (user_id, platform, generation_id), enforced by
// a partial unique index.
type SocialShare struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Platform       string     `json:"platform"`
	GenerationID   *uuid.UUID `json:"generation_id,omitempty"`
	CreditsAwarded int        `json:"credits_awarded"`
	ShareURL       string     `json:"share_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ShareStats is the aggregate view returned by GET /social/share.
type ShareStats struct {
	CreditsToday   int            `json:"credits_today"`
	TotalShares    int            `json:"total_shares"`
	TotalCredits   int            `json:"total_credits"`
	ByPlatform     map[string]int `json:"by_platform"`
	DailyLimit     int            `json:"daily_limit"`
	DailyRemaining int            `json:"daily_remaining"`
}

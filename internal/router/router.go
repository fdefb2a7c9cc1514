package router

import (
	"net/http"

	"github.com/meshcraft/backend/internal/auth"
	"github.com/meshcraft/backend/internal/credits"
	"github.com/meshcraft/backend/internal/generation"
	"github.com/meshcraft/backend/internal/middleware"
	"github.com/meshcraft/backend/internal/ratelimit"
	"github.com/meshcraft/backend/internal/reconcile"
	"github.com/meshcraft/backend/internal/referral"
	"github.com/meshcraft/backend/internal/social"
)

// Deps carries everything the router mounts.
type Deps struct {
	Auth       *auth.Handler
	AuthSvc    auth.Service
	Users      middleware.UserLookup
	Credits    *credits.Handler
	Generation *generation.Handler
	Referral   *referral.Handler
	Social     *social.Handler
	Sync       *reconcile.Handler
	Limiter    middleware.RateLimiter
}

// New returns the http.Handler serving the API under /api/v1.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	authed := middleware.RequireAuth(d.AuthSvc, d.Users)
	admin := middleware.RequireAdmin()
	limit := func(class string) func(http.Handler) http.Handler {
		return middleware.RateLimit(d.Limiter, class)
	}

	// Public auth endpoints. Rate limited by client IP.
	mux.Handle("POST "+base+"/auth/register",
		limit(ratelimit.ClassSignup)(http.HandlerFunc(d.Auth.Register)))
	mux.Handle("POST "+base+"/auth/login",
		limit(ratelimit.ClassLogin)(http.HandlerFunc(d.Auth.Login)))

	// Account and ledger.
	mux.Handle("GET "+base+"/account/me",
		authed(http.HandlerFunc(d.Credits.Me)))
	mux.Handle("GET "+base+"/credits",
		authed(http.HandlerFunc(d.Credits.GetCredits)))

	// Generations. Creation is authenticated then rate limited per user.
	mux.Handle("POST "+base+"/generations",
		authed(limit(ratelimit.ClassGeneration)(http.HandlerFunc(d.Generation.Create))))
	mux.Handle("GET "+base+"/generations",
		authed(http.HandlerFunc(d.Generation.List)))
	mux.Handle("GET "+base+"/generations/{id}",
		authed(http.HandlerFunc(d.Generation.Get)))

	// Referrals.
	mux.Handle("POST "+base+"/referral",
		authed(http.HandlerFunc(d.Referral.Apply)))
	mux.Handle("GET "+base+"/referral",
		authed(http.HandlerFunc(d.Referral.Info)))

	// Social shares.
	mux.Handle("POST "+base+"/social/share",
		authed(limit(ratelimit.ClassSocial)(http.HandlerFunc(d.Social.Record))))
	mux.Handle("GET "+base+"/social/share",
		authed(http.HandlerFunc(d.Social.Stats)))

	// Admin.
	mux.Handle("POST "+base+"/admin/generations/sync",
		authed(admin(http.HandlerFunc(d.Sync.Sync))))

	return mux
}

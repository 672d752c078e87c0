package handlers

import (
	"net/http"

	"atamind/internal/metrics"
	"atamind/internal/security"
)

// Routes bundles every handler mounted on the API mux
type Routes struct {
	Middleware *Middleware
	Auth       *AuthHandler
	Children   *ChildHandler
	Stories    *StoryHandler
	Voice      *VoiceHandler
	Analytics  *AnalyticsHandler

	// LoginLimiter and GenerateLimiter are optional per-IP limits
	LoginLimiter    *security.RateLimiter
	GenerateLimiter *security.RateLimiter

	UploadsDir string
}

// Register mounts all routes on mux
func (rt Routes) Register(mux *http.ServeMux) {
	auth := rt.Middleware.RequireAuth

	// Public routes
	mux.HandleFunc("GET /healthz", Health)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("POST /api/auth/register", limit(rt.LoginLimiter, rt.Auth.Register))
	mux.Handle("POST /api/auth/login", limit(rt.LoginLimiter, rt.Auth.Login))
	mux.HandleFunc("POST /api/auth/logout", rt.Auth.Logout)
	mux.HandleFunc("GET /auth/{provider}/start", rt.Auth.StartOAuth)
	mux.HandleFunc("GET /auth/{provider}/callback", rt.Auth.OAuthCallback)
	if rt.UploadsDir != "" {
		mux.Handle("GET /uploads/", UploadsHandler(rt.UploadsDir))
	}

	mux.HandleFunc("GET /api/me", auth(rt.Auth.Me))

	// Children
	mux.HandleFunc("GET /api/children", auth(rt.Children.List))
	mux.HandleFunc("POST /api/children", auth(rt.Children.Create))
	mux.HandleFunc("GET /api/children/{id}", auth(rt.Children.Get))
	mux.HandleFunc("PUT /api/children/{id}", auth(rt.Children.Update))
	mux.HandleFunc("DELETE /api/children/{id}", auth(rt.Children.Delete))

	// Stories
	mux.Handle("POST /api/generate-story", limit(rt.GenerateLimiter, auth(rt.Stories.GenerateStory)))
	mux.HandleFunc("GET /api/children/{id}/stories", auth(rt.Stories.ListByChild))
	mux.HandleFunc("GET /api/stories/{id}", auth(rt.Stories.Get))
	mux.HandleFunc("POST /api/stories/{id}/approve", auth(rt.Stories.Approve))
	mux.HandleFunc("GET /api/child/{id}/stories/deliverable", auth(rt.Stories.Deliverable))
	mux.HandleFunc("POST /api/listening-history", auth(rt.Stories.RecordListening))
	mux.HandleFunc("GET /api/child/{id}/listening-history", auth(rt.Stories.ListeningHistory))

	// Voice
	mux.HandleFunc("POST /api/upload-voice", auth(rt.Voice.Record))
	mux.HandleFunc("POST /voice/record", auth(rt.Voice.Record))
	mux.HandleFunc("POST /voice/analyze", auth(rt.Voice.Analyze))
	mux.HandleFunc("GET /api/voice-recordings", auth(rt.Voice.List))
	mux.HandleFunc("GET /api/voice-recordings/{id}/audio", auth(rt.Voice.Audio))

	// Analytics
	mux.HandleFunc("POST /api/activity-rating", auth(rt.Analytics.RecordRating))
	mux.HandleFunc("POST /api/start-session", auth(rt.Analytics.StartSession))
	mux.HandleFunc("POST /api/end-session", auth(rt.Analytics.EndSession))
	mux.HandleFunc("POST /api/child/{id}/generate-report", auth(rt.Analytics.GenerateReport))
	mux.HandleFunc("GET /api/child/{id}/usage-stats", auth(rt.Analytics.UsageStats))
	mux.HandleFunc("GET /api/child/{id}/reports", auth(rt.Analytics.Reports))
	mux.HandleFunc("GET /api/child/{id}/most-rated", auth(rt.Analytics.MostRated))
	mux.HandleFunc("GET /api/child/{id}/engagement", auth(rt.Analytics.Engagement))
}

func limit(rl *security.RateLimiter, next http.HandlerFunc) http.Handler {
	if rl == nil {
		return next
	}
	return rl.Middleware(next)
}

// Health reports liveness
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

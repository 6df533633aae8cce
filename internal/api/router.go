package api

import (
	"net/http"

	"github.com/adgenie/backend/internal/assets"
	"github.com/adgenie/backend/internal/auth"
	"github.com/adgenie/backend/internal/brands"
	apperrors "github.com/adgenie/backend/internal/errors"
	"github.com/adgenie/backend/internal/generation"
	"github.com/adgenie/backend/internal/health"
	"github.com/adgenie/backend/internal/logger"
	"github.com/adgenie/backend/internal/metrics"
	"github.com/adgenie/backend/internal/middleware"
	"github.com/adgenie/backend/internal/projects"
	"github.com/adgenie/backend/internal/websocket"
)

// Deps collects everything the router wires together.
type Deps struct {
	AuthService   *auth.Service
	Auth          *auth.Handlers
	Brands        *brands.Handlers
	Projects      *projects.Handlers
	Assets        *assets.Handlers
	Generation    *generation.Handlers
	Health        *health.Handler
	WebSocket     *websocket.Handler
	AllowedOrigin string
}

type Router struct {
	mux     *http.ServeMux
	handler http.Handler
	deps    Deps
}

func NewRouter(deps Deps) *Router {
	r := &Router{
		mux:  http.NewServeMux(),
		deps: deps,
	}
	r.setupRoutes()
	r.handler = middleware.Chain(r.mux,
		apperrors.RequestIDMiddleware,
		middleware.SecurityHeaders,
		middleware.CORS([]string{deps.AllowedOrigin}),
		metrics.Middleware,
		logger.LoggingMiddleware,
		logger.RecoveryMiddleware,
		middleware.Gzip,
	)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Health and observability
	r.mux.HandleFunc("GET /health", r.deps.Health.Health)
	r.mux.HandleFunc("GET /health/live", r.deps.Health.Liveness)
	r.mux.HandleFunc("GET /health/ready", r.deps.Health.Readiness)
	r.mux.Handle("GET /metrics", metrics.Handler())

	// Auth routes (no auth required)
	r.handle("POST /api/v1/auth/signup", r.deps.Auth.Signup)
	r.handle("POST /api/v1/auth/login", r.deps.Auth.Login)
	r.handle("POST /api/v1/auth/refresh", r.deps.Auth.Refresh)
	r.handle("POST /api/v1/auth/password-reset/request", r.deps.Auth.RequestReset)
	r.handle("POST /api/v1/auth/password-reset/confirm", r.deps.Auth.ConfirmReset)

	// Auth routes (auth required)
	r.protected("POST /api/v1/auth/logout", r.deps.Auth.Logout)
	r.protected("GET /api/v1/auth/me", r.deps.Auth.Me)

	// Brands
	r.protected("POST /api/v1/brands", r.deps.Brands.Create)
	r.protected("GET /api/v1/brands", r.deps.Brands.List)
	r.protected("GET /api/v1/brands/{id}", r.deps.Brands.Get)
	r.protected("PATCH /api/v1/brands/{id}", r.deps.Brands.Update)
	r.protected("DELETE /api/v1/brands/{id}", r.deps.Brands.Delete)
	r.protected("POST /api/v1/brands/{id}/images", r.deps.Brands.UploadImage)
	r.protected("DELETE /api/v1/brands/{id}/images", r.deps.Brands.DeleteImage)

	// Ad projects and scripts
	r.protected("POST /api/v1/projects", r.deps.Projects.Create)
	r.protected("GET /api/v1/projects", r.deps.Projects.List)
	r.protected("GET /api/v1/projects/{id}", r.deps.Projects.Get)
	r.protected("PATCH /api/v1/projects/{id}/details", r.deps.Projects.UpdateDetails)
	r.protected("DELETE /api/v1/projects/{id}", r.deps.Projects.Delete)
	r.protected("PUT /api/v1/projects/{id}/script", r.deps.Projects.SetScript)
	r.protected("GET /api/v1/projects/{id}/script", r.deps.Projects.GetScript)
	r.protected("POST /api/v1/projects/{id}/script/approve", r.deps.Projects.ApproveScript)
	r.protected("GET /api/v1/projects/{id}/jobs", r.deps.Generation.ListProjectJobs)

	// Assets
	r.protected("POST /api/v1/assets", r.deps.Assets.Upload)
	r.protected("GET /api/v1/assets", r.deps.Assets.List)
	r.protected("GET /api/v1/assets/{id}", r.deps.Assets.Get)
	r.protected("DELETE /api/v1/assets/{id}", r.deps.Assets.Delete)
	r.protected("GET /api/v1/assets/{id}/download-url", r.deps.Assets.DownloadURL)

	// Generation jobs
	r.protected("GET /api/v1/jobs", r.deps.Generation.ListJobs)
	r.protected("GET /api/v1/jobs/{id}", r.deps.Generation.GetJob)

	// Progress WebSocket (authenticates via query token)
	r.mux.HandleFunc("GET /api/v1/ws/progress", r.deps.WebSocket.ServeWS)
}

func (r *Router) handle(pattern string, h apperrors.Handler) {
	r.mux.HandleFunc(pattern, apperrors.HandleFunc(h))
}

func (r *Router) protected(pattern string, h apperrors.Handler) {
	authed := auth.Middleware(r.deps.AuthService)(apperrors.HandleFunc(h))
	r.mux.Handle(pattern, authed)
}

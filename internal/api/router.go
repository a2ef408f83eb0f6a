package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/storygraph/storygraph/internal/access"
	"github.com/storygraph/storygraph/internal/activity"
	"github.com/storygraph/storygraph/internal/api/handlers"
	"github.com/storygraph/storygraph/internal/api/middleware"
	"github.com/storygraph/storygraph/internal/asset"
	"github.com/storygraph/storygraph/internal/auth"
	"github.com/storygraph/storygraph/internal/category"
	"github.com/storygraph/storygraph/internal/config"
	"github.com/storygraph/storygraph/internal/frame"
	"github.com/storygraph/storygraph/internal/organization"
	"github.com/storygraph/storygraph/internal/project"
	"github.com/storygraph/storygraph/internal/ratelimit"
	"github.com/storygraph/storygraph/internal/scene"
	"github.com/storygraph/storygraph/internal/storage"
	"github.com/storygraph/storygraph/internal/store"
	"github.com/storygraph/storygraph/internal/tenant"
	"github.com/storygraph/storygraph/internal/user"
)

// Deps are the long-lived collaborators the API is built from. Only Config
// and Store are required.
type Deps struct {
	Config *config.Config
	Store  store.Store

	// Storage is nil when file storage is not configured.
	Storage  storage.Backend
	URLCache storage.URLCache

	// Limiters default to in-memory buckets.
	RequestLimiter ratelimit.Limiter
	UploadLimiter  ratelimit.Limiter

	// Emails is nil when email delivery is not wired; the email routes are
	// then left out.
	Emails handlers.EmailDispatcher

	// Health lists readiness checks beyond the store.
	Health map[string]handlers.Pinger
}

type Router struct {
	mux  *chi.Mux
	deps Deps
	jwt  *auth.JWTMiddleware
	keys *auth.ServiceKeyMiddleware
}

func NewRouter(d Deps) *Router {
	if d.RequestLimiter == nil {
		d.RequestLimiter = ratelimit.NewMemory(ratelimit.Bucket{
			Burst: d.Config.RateLimit.Burst,
			Rate:  d.Config.RateLimit.RequestsPerSecond,
		})
	}
	if d.UploadLimiter == nil {
		d.UploadLimiter = ratelimit.NewMemory(ratelimit.UploadURLs)
	}
	return &Router{
		mux:  chi.NewRouter(),
		deps: d,
		jwt:  auth.NewJWTMiddleware(d.Config.Auth.JWTSecret, tenant.NewService(d.Store)),
		keys: auth.NewServiceKeyMiddleware(d.Config.Auth.ServiceKey, d.Config.Auth.ServiceKeyHeader),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	d := rt.deps

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(d.Config.Server.CORSOrigins))
	r.Use(middleware.RateLimit(d.RequestLimiter))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// Health endpoints (no auth)
	checks := map[string]handlers.Pinger{"database": d.Store}
	for name, p := range d.Health {
		checks[name] = p
	}
	health := handlers.NewHealthHandler(checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Initialize services
	ac := access.NewResolver(d.Store)
	act := activity.NewService(d.Store, ac)
	urls := storage.NewResolver(d.Storage, d.URLCache)

	orgSvc := organization.NewService(d.Store, ac, act)
	projectSvc := project.NewService(d.Store, ac, urls, act)
	sceneSvc := scene.NewService(d.Store, ac, act)
	frameSvc := frame.NewService(d.Store, ac, urls, act)
	assetSvc := asset.NewService(d.Store, ac, urls, act)
	categorySvc := category.NewService(d.Store, ac, act)
	userSvc := user.NewService(d.Store, urls)
	storageSvc := storage.NewService(d.Storage, urls, d.UploadLimiter)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Service-to-service routes authenticate with a shared key, not a
		// session.
		if d.Emails != nil {
			emailH := handlers.NewEmailHandler(d.Emails)
			r.Route("/emails", func(r chi.Router) {
				r.Use(rt.keys.Require)
				r.Post("/password-reset", emailH.PasswordReset)
				r.Post("/verification", emailH.Verification)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(rt.jwt.Authenticate)

			orgH := handlers.NewOrganizationHandler(orgSvc, act)
			projectH := handlers.NewProjectHandler(projectSvc)
			sceneH := handlers.NewSceneHandler(sceneSvc)
			frameH := handlers.NewFrameHandler(frameSvc)
			assetH := handlers.NewAssetHandler(assetSvc)
			categoryH := handlers.NewCategoryHandler(categorySvc)
			userH := handlers.NewUserHandler(userSvc)
			storageH := handlers.NewStorageHandler(storageSvc)

			// Organization routes
			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", orgH.List)
				r.Post("/", orgH.Create)
				r.Route("/{orgId}", func(r chi.Router) {
					r.Get("/", orgH.Get)
					r.Get("/members", orgH.Members)
					r.Post("/members", orgH.AddMember)
					r.Patch("/members/{userId}", orgH.UpdateMember)
					r.Delete("/members/{userId}", orgH.RemoveMember)
					r.Get("/activity", orgH.Activity)
					r.Get("/projects", projectH.List)
					r.Post("/projects", projectH.Create)
					r.Get("/categories", categoryH.List)
					r.Post("/categories", categoryH.Create)
				})
			})

			// Project routes
			r.Route("/projects", func(r chi.Router) {
				r.Get("/recent", projectH.Recent)
				r.Route("/{projectId}", func(r chi.Router) {
					r.Get("/", projectH.Get)
					r.Patch("/", projectH.Update)
					r.Delete("/", projectH.Delete)
					r.Get("/scenes", sceneH.List)
					r.Post("/scenes", sceneH.Create)
					r.Get("/assets", assetH.List)
					r.Post("/assets", assetH.Create)
				})
			})

			// Scene routes
			r.Route("/scenes/{sceneId}", func(r chi.Router) {
				r.Get("/", sceneH.Get)
				r.Patch("/", sceneH.Update)
				r.Delete("/", sceneH.Delete)
				r.Get("/frames", frameH.List)
				r.Post("/frames", frameH.Create)
			})

			// Frame routes
			r.Route("/frames/{frameId}", func(r chi.Router) {
				r.Get("/", frameH.Get)
				r.Patch("/", frameH.Update)
				r.Delete("/", frameH.Delete)
				r.Get("/generations", frameH.Generations)
			})

			// Asset routes
			r.Route("/assets/{assetId}", func(r chi.Router) {
				r.Get("/", assetH.Get)
				r.Patch("/", assetH.Update)
				r.Delete("/", assetH.Delete)
			})

			// Category routes
			r.Route("/categories/{categoryId}", func(r chi.Router) {
				r.Get("/", categoryH.Get)
				r.Patch("/", categoryH.Update)
				r.Delete("/", categoryH.Delete)
			})

			// User routes
			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", userH.Me)
				r.Patch("/", userH.Update)
				r.Patch("/preferences", userH.UpdatePreferences)
			})

			// Storage routes
			r.Route("/storage", func(r chi.Router) {
				r.Post("/upload-url", storageH.UploadURL)
				r.Get("/url", storageH.GetURL)
				r.Post("/url", storageH.ResolveURL)
				r.Post("/urls", storageH.GetURLs)
				r.Delete("/files/*", storageH.DeleteFile)
			})
		})
	})

	return r
}

package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-contacts-api/internal/auth"
	"go-contacts-api/internal/config"
	"go-contacts-api/internal/event"
	"go-contacts-api/internal/handler"
	"go-contacts-api/internal/metrics"
	"go-contacts-api/internal/middleware"
	"go-contacts-api/internal/model"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Contact *handler.ContactHandler
	Audit   *handler.AuditHandler
	Health  *handler.HealthHandler
	// Static serves locally stored avatars. Nil when avatars live elsewhere.
	Static http.Handler
}

func New(cfg *config.Config, resolver *auth.SessionResolver, bus event.Bus, m *metrics.Metrics, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.ClientIP)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}
	r.Get("/", handler.Root)
	if h.Static != nil {
		r.Handle(cfg.AvatarPublicPath+"/*", h.Static)
	}

	requireAuth := middleware.RequireAuth(resolver)
	adminOnly := middleware.RequireRoles(auth.NewRoleGate(model.RoleAdmin), bus)
	staffOnly := middleware.RequireRoles(auth.NewRoleGate(model.RoleAdmin, model.RoleModerator), bus)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(a chi.Router) {
			a.Post("/signup", h.Auth.Signup)
			a.Post("/login", h.Auth.Login)
			a.Get("/refresh_token", h.Auth.Refresh)
			a.With(requireAuth).Post("/logout", h.Auth.Logout)
			a.Get("/confirmed_email/{token}", h.Auth.ConfirmEmail)
			a.Get("/opened/{username}", h.Auth.EmailOpened)
		})

		api.Route("/users", func(u chi.Router) {
			u.Use(requireAuth)
			u.Get("/me", h.User.Me)
			u.Patch("/avatar", h.User.UpdateAvatar)
			u.With(adminOnly).Patch("/{id}/role", h.User.UpdateRole)
		})

		api.Route("/contacts", func(c chi.Router) {
			c.Use(requireAuth)
			c.Get("/", h.Contact.List)
			c.With(staffOnly).Get("/all", h.Contact.ListAll)
			c.Get("/{id}", h.Contact.Get)
			c.Post("/", h.Contact.Create)
			c.Put("/{id}", h.Contact.Update)
			c.Delete("/{id}", h.Contact.Delete)
		})

		api.With(requireAuth, adminOnly).Get("/audit", h.Audit.List)
	})

	return r
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vtype/vtype/internal/chat/blob"
	"github.com/vtype/vtype/internal/chat/metrics"
	"github.com/vtype/vtype/internal/chat/service"
	"github.com/vtype/vtype/internal/chat/store"
	"github.com/vtype/vtype/internal/chat/ws"
	"github.com/vtype/vtype/pkg/httpx"
	"github.com/vtype/vtype/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	clientOrigin string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	kv    store.KV
	hub   *ws.Hub

	TokenService   *service.TokenService
	UserService    *service.UserService
	MessageService *service.MessageService
	CleanupService *service.CleanupService
	BlobStorage    blob.Storage
}

func NewRouter(
	buildVersion, clientOrigin string,
	st store.Store,
	kv store.KV,
	hub *ws.Hub,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		clientOrigin: clientOrigin,
		startTime:    time.Now(),
		store:        st,
		kv:           kv,
		hub:          hub,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerChat()
	r.registerUsers()
	r.registerAdmin()
	r.registerSystem()
	r.registerWebsocket()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /register and /login - strict rate limit by IP (credential attempts)
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(&RegisterHandler{UserService: r.UserService, TokenService: r.TokenService},
			metrics.HTTPMiddleware,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(&LoginHandler{UserService: r.UserService, TokenService: r.TokenService},
			metrics.HTTPMiddleware,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /refresh - moderate rate limit, no authn (the refresh token is
	// the credential)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(&RefreshHandler{TokenService: r.TokenService},
			metrics.HTTPMiddleware,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(&LogoutHandler{TokenService: r.TokenService},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// Refresh records are keyed by user, so logging out of "all devices"
	// revokes the same single record as a plain logout.
	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(&LogoutHandler{TokenService: r.TokenService, AllDevices: true},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(&MeHandler{UserService: r.UserService},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerChat() {
	r.Mux.Handle("GET /v1/chat/history/{userID}",
		httpx.Chain(&HistoryHandler{MessageService: r.MessageService},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /v1/chat/contacts",
		httpx.Chain(&ContactsHandler{MessageService: r.MessageService},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /v1/chat/online",
		httpx.Chain(&OnlineUsersHandler{Hub: r.hub},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerUsers() {
	r.Mux.Handle("GET /v1/users/search",
		httpx.Chain(&SearchUsersHandler{UserService: r.UserService},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/users/{userID}",
		httpx.Chain(&PublicProfileHandler{UserService: r.UserService},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("PUT /v1/users/profile",
		httpx.Chain(&UpdateProfileHandler{UserService: r.UserService},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("PUT /v1/users/profile-picture",
		httpx.Chain(&ProfilePictureHandler{UserService: r.UserService, Storage: r.BlobStorage},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/users/{userID}/profile-picture",
		httpx.Chain(&AvatarURLHandler{UserService: r.UserService, Storage: r.BlobStorage},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("PUT /v1/users/change-password",
		httpx.Chain(&ChangePasswordHandler{UserService: r.UserService, TokenService: r.TokenService},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("PUT /v1/users/deactivate",
		httpx.Chain(&DeactivateAccountHandler{UserService: r.UserService, TokenService: r.TokenService},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	// Reactivation is the one operation a deactivated account's token may
	// still perform.
	r.Mux.Handle("PUT /v1/users/reactivate",
		httpx.Chain(&ReactivateAccountHandler{UserService: r.UserService},
			metrics.HTTPMiddleware,
			AuthnAllowDeactivated(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	r.Mux.Handle("POST /v1/admin/cleanup",
		httpx.Chain(&CleanupHandler{CleanupService: r.CleanupService},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			RequireRole("admin"),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/admin/stats",
		httpx.Chain(&StoreStatsHandler{CleanupService: r.CleanupService},
			metrics.HTTPMiddleware,
			Authn(r.TokenService),
			RequireRole("admin"),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.kv),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /metrics", metrics.Handler())
}

func (r *Router) registerWebsocket() {
	// No metrics or rate-limit wrappers here: the upgrade needs the raw
	// hijackable ResponseWriter and connections are long-lived.
	r.Mux.Handle("GET /ws", ws.Handler(r.hub, r.TokenService, r.MessageService, r.clientOrigin))
}

package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/payrelay/payrelay-backend/api/controllers"
	"github.com/payrelay/payrelay-backend/api/middleware"
	"github.com/payrelay/payrelay-backend/internal/auth"
	"github.com/payrelay/payrelay-backend/internal/devices"
	"github.com/payrelay/payrelay-backend/internal/notifications"
	"github.com/payrelay/payrelay-backend/internal/preferences"
	"github.com/payrelay/payrelay-backend/internal/transactions"
	"github.com/payrelay/payrelay-backend/pkg/auth/session"
	"github.com/payrelay/payrelay-backend/pkg/config"
	"github.com/payrelay/payrelay-backend/pkg/logger"
	"github.com/payrelay/payrelay-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Deps carries everything the router needs wired in.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	Redis          *redis.Client
	ReadinessDeps  map[string]controllers.Pinger
	SessionManager sessionManager
	AuthService    auth.Service
	Register       auth.RegisterService
	Transactions   transactions.Service
	Notifications  notifications.Service
	Devices        devices.Service
	Preferences    preferences.Service
}

// NewRouter assembles the full HTTP surface.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.ReadinessDeps))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		r.With(middleware.Idempotency(deps.Redis, logg)).
			Post("/register", controllers.AuthRegister(deps.Register, logg))
		r.Post("/logout", controllers.AuthLogout(deps.SessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.SessionManager, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionManager, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", controllers.CreateTransaction(deps.Transactions, logg))
			r.Get("/", controllers.ListTransactions(deps.Transactions, logg))
			r.Get("/{transactionId}", controllers.TransactionDetail(deps.Transactions, logg))
			r.Post("/{transactionId}/cancel", controllers.CancelTransaction(deps.Transactions, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})

		r.Route("/devices", func(r chi.Router) {
			r.Post("/", controllers.RegisterDevice(deps.Devices, logg))
			r.Get("/", controllers.ListDevices(deps.Devices, logg))
			r.Delete("/{deviceId}", controllers.DeactivateDevice(deps.Devices, logg))
		})

		r.Route("/preferences", func(r chi.Router) {
			r.Get("/", controllers.GetPreferences(deps.Preferences, logg))
			r.Put("/", controllers.UpdatePreferences(deps.Preferences, logg))
		})

		r.Route("/admin/transactions", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))
			r.Get("/", controllers.AdminListTransactions(deps.Transactions, logg))
			r.Get("/{transactionId}", controllers.AdminTransactionDetail(deps.Transactions, logg))
			r.Post("/{transactionId}/complete", controllers.AdminCompleteTransaction(deps.Transactions, logg))
			r.Post("/{transactionId}/fail", controllers.AdminFailTransaction(deps.Transactions, logg))
		})
	})

	return r
}

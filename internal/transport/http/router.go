package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/taskboard-api/internal/application/board"
	"github.com/taskboard-api/internal/application/bot"
	"github.com/taskboard-api/internal/application/confirmation"
	"github.com/taskboard-api/internal/application/session"
	"github.com/taskboard-api/internal/application/user"
	"github.com/taskboard-api/internal/config"
	"github.com/taskboard-api/internal/transport/http/handler"
	appmiddleware "github.com/taskboard-api/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router. Background work of the
// router (rate limiter cleanup) stops when ctx is done.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.Limiter.RPS), cfg.Limiter.Burst, cfg.Limiter.TTL)

	confirmSvc := confirmation.NewService(confirmation.ServiceDeps{
		TempData:        deps.TempData,
		Codes:           deps.Codes,
		Users:           deps.UserRepo,
		Sessions:        deps.SessionRepo,
		Sender:          deps.CodeSender,
		DeliveryTimeout: cfg.Confirmation.DeliveryTimeout,
		Logger:          deps.Logger,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		UserRepo:        deps.UserRepo,
		SessionRepo:     deps.SessionRepo,
		JWTProvider:     deps.JWTProvider,
		RefreshTokenDur: cfg.JWT.RefreshTokenTTL,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:     deps.UserRepo,
		Confirmation: confirmSvc,
		Sessions:     sessionSvc,
		BcryptCost:   cfg.BcryptCost,
	})
	boardSvc := board.NewService(board.ServiceDeps{BoardRepo: deps.BoardRepo})
	botSvc := bot.NewService(bot.ServiceDeps{
		UserRepo:  deps.UserRepo,
		Messenger: deps.Telegram,
		Logger:    deps.Logger,
	})

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(sessionSvc, deps.Google)
	userH := handler.NewUserHandler(userSvc, cfg.Cookie)
	googleH := handler.NewGoogleHandler(userSvc, deps.Google)
	confirmH := handler.NewConfirmationHandler(userSvc)
	boardH := handler.NewBoardHandler(boardSvc)
	telegramH := handler.NewTelegramHandler(botSvc, cfg.Telegram.WebhookSecret)

	r.Route("/api", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/users/confirm-registration", userH.StartRegistration)
		r.With(sensitiveRL.Limit).Post("/users/confirm-registration/resend", userH.ResendRegistration)
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/auth/google/login", sessionH.GoogleLogin)
		r.Post("/telegram/webhook", telegramH.Webhook)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/users/me", userH.Me)
			r.Get("/boards", boardH.List)
			r.Patch("/boards/{boardUuid}", boardH.Update)
			r.Delete("/confirmations/{action}", confirmH.Cancel)

			// Endpoints that issue or check confirmation codes.
			r.Group(func(r chi.Router) {
				r.Use(sensitiveRL.Limit)

				r.Post("/users/email-change", userH.StartEmailChange)
				r.Patch("/users", userH.ConfirmEmailChange)
				r.Post("/users/delete/request", userH.RequestDeletion)
				r.Post("/users/delete", userH.ConfirmDeletion)
				r.Post("/auth/google/connect", googleH.Connect)
				r.Post("/auth/google/connect/confirm", googleH.ConfirmConnect)
				r.Post("/auth/google/disable/request", googleH.RequestDisable)
				r.Post("/auth/google/disable", googleH.Disable)
				r.Post("/confirmations/{action}/resend", confirmH.Resend)
			})
		})
	})

	return r
}

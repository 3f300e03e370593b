package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/reservation-app/api/internal/application/account"
	"github.com/reservation-app/api/internal/application/emailverify"
	"github.com/reservation-app/api/internal/application/phonecode"
	"github.com/reservation-app/api/internal/application/session"
	"github.com/reservation-app/api/internal/config"
	"github.com/reservation-app/api/internal/domain"
	"github.com/reservation-app/api/internal/pkg/phone"
	"github.com/reservation-app/api/internal/transport/http/handler"
	appmiddleware "github.com/reservation-app/api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	checker := phone.StaticChecker{}

	sessionSvc := session.NewService(session.ServiceDeps{
		SessionRepo:     deps.SessionRepo,
		AccountRepo:     deps.AccountRepo,
		JWTProvider:     deps.JWTProvider,
		RefreshTokenDur: cfg.RefreshTokenDur,
	})
	phoneCodeSvc := phonecode.NewService(phonecode.ServiceDeps{
		Codes:       deps.PhoneCodeRepo,
		Checker:     checker,
		Notifier:    deps.Notifier,
		CodeLength:  cfg.SMSCodeLength,
		MaxAttempts: cfg.SMSCodeMaxAttempts,
		TTL:         cfg.SMSCodeTTL,
	})
	emailVerifySvc := emailverify.NewService(emailverify.ServiceDeps{
		Tokens:   deps.EmailVerificationRepo,
		Accounts: deps.AccountRepo,
		Notifier: deps.Notifier,
		TTL:      cfg.EmailTokenTTL,
	})
	accountSvc := account.NewService(account.ServiceDeps{
		AccountRepo:     deps.AccountRepo,
		SessionRepo:     deps.SessionRepo,
		PhoneCodes:      phoneCodeSvc,
		EmailTokens:     emailVerifySvc,
		Issuer:          sessionSvc,
		Checker:         checker,
		SendEmailVerify: cfg.SendEmailVerify,
	})

	healthH := handler.NewHealthHandler()
	accountH := handler.NewAccountHandler(accountSvc)
	sessionH := handler.NewSessionHandler(sessionSvc, accountSvc)
	phoneH := handler.NewPhoneVerificationHandler(phoneCodeSvc, accountSvc)
	emailH := handler.NewEmailConfirmHandler(emailVerifySvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/accounts/email", accountH.RegisterEmail)
		r.With(sensitiveRL.Limit).Post("/accounts/phone", accountH.RegisterPhone)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/phone-verification/{action}", phoneH.Action)
		r.With(sensitiveRL.Limit).Get("/accounts/email-exists", accountH.EmailExists)
		r.With(sensitiveRL.Limit).Post("/accounts/phone-exists", accountH.PhoneExists)
		r.With(sensitiveRL.Limit).Get("/confirm-email/verify", emailH.Verify)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)
			r.Post("/confirm-email/request", emailH.Request)

			r.Get("/accounts/{id}", accountH.Get)
			r.Put("/accounts/{id}", accountH.Update)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/accounts", accountH.List)
				r.Delete("/accounts/{id}", accountH.Delete)
			})
		})
	})

	return r
}

package routes

import (
	"database/sql"
	"time"

	"github.com/go-chi/chi/v5"

	"accounts/internal/auth"
	"accounts/internal/config"
	"accounts/internal/handlers"
	"accounts/internal/middleware"
	"accounts/internal/repository"
	"accounts/internal/services"
)

func RegisterAuthRoutes(router chi.Router, db *sql.DB, cfg *config.Config) {
	mailer := &services.SMTPSender{
		Host:   cfg.SMTPHost,
		Port:   cfg.SMTPPort,
		User:   cfg.SMTPUser,
		Pass:   cfg.SMTPPassword,
		From:   cfg.SMTPFrom,
		UseTLS: cfg.SMTPUseTLS,
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.JWTExpiresInSeconds)*time.Second)
	flow := auth.NewService(
		repository.NewUserRepository(db),
		repository.NewPasswordResetRepository(db),
		tokens,
		mailer,
	)
	authHandler := handlers.NewAuthHandler(flow, cfg)

	router.Post("/register", authHandler.Register)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/request-password-reset", authHandler.RequestPasswordReset)
		r.Post("/verify-reset-code", authHandler.VerifyResetCode)
		r.Post("/reset-password", authHandler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(tokens))
			r.Post("/logout", authHandler.Logout)
		})
	})
}

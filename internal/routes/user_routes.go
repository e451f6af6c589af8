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

func RegisterUserRoutes(router chi.Router, db *sql.DB, cfg *config.Config, s3Config *config.S3Config) {
	userRepo := repository.NewUserRepository(db)
	photos := services.NewS3PhotoStore(s3Config)
	userHandler := handlers.NewUserHandler(userRepo, photos)
	photoHandler := handlers.NewPhotoHandler(userRepo, photos, cfg.UploadMaxBytes)

	tokens := auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.JWTExpiresInSeconds)*time.Second)

	router.Get("/photos/{filename}", photoHandler.ServePhoto)

	router.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(tokens))

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", userHandler.GetUser)
			r.Patch("/", userHandler.UpdateProfile)
			r.Put("/password", userHandler.ChangePassword)
			r.Post("/photo", photoHandler.UploadPhoto)
		})
	})
}

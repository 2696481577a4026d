package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(apiHandler.RequestLogger)
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: apiHandler.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/", apiHandler.RootHandler)
	r.Handle("/metrics", apiHandler.metrics.Handler())
	if apiHandler.uploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(apiHandler.uploadDir))))
	}

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)
		r.Get("/personas", apiHandler.PersonasHandler)
		r.Get("/lecturers/types", apiHandler.LecturerTypesHandler)
		r.Get("/placeholder-image/{key}", apiHandler.PlaceholderImageHandler)
		r.Get("/placeholder-audio/{concept}", apiHandler.PlaceholderAudioHandler)
		r.Post("/auth", apiHandler.LoginHandler)
		r.Post("/auth/google", apiHandler.LoginHandler)

		// Session-aware routes; the token is optional
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.SessionMiddleware)

			r.Post("/chat", apiHandler.ChatHandler)
			r.Post("/chat/lecturer", apiHandler.ChatHandler)
			r.Get("/chat/{chatId}/history", apiHandler.HistoryHandler)

			r.Post("/story", apiHandler.StoryHandler)
			r.Post("/storytelling/enhanced", apiHandler.StoryHandler)

			r.Get("/users/search", apiHandler.SearchUsersHandler)

			r.Post("/groups", apiHandler.CreateGroupHandler)
			r.Post("/groups/invite", apiHandler.InviteHandler)
			r.Post("/groups/accept-invite", apiHandler.AcceptInviteHandler)
			r.Get("/groups/{groupId}", apiHandler.GetGroupHandler)

			r.Get("/notifications/{userId}", apiHandler.NotificationsHandler)
			r.Post("/notifications/{notificationId}/read", apiHandler.MarkReadHandler)

			r.Get("/settings/{userId}", apiHandler.GetSettingsHandler)
			r.Post("/settings/{userId}", apiHandler.UpdateSettingsHandler)

			r.Post("/upload", apiHandler.UploadHandler)
		})
	})

	return r
}

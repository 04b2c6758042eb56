package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskflow-api/internal/api"
	apiMiddleware "github.com/phrazzld/taskflow-api/internal/api/middleware"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	authHandler := api.NewAuthHandler(app.userService, app.jwtService, &app.config.Auth, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	categoryHandler := api.NewCategoryHandler(app.categoryService, app.logger)
	userHandler := api.NewUserHandler(app.userService, app.dispatcher, app.logger)
	chatHandler := api.NewChatHandler(app.userService, app.taskService, app.config.Server.FrontendURL, app.logger)
	adminHandler := api.NewAdminHandler(app.scheduler, app.logger)

	cacheList, invalidateLists := app.listCacheMiddleware()

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
			r.Post("/password/forgot", authHandler.ForgotPassword)
			r.Post("/password/reset", authHandler.ResetPassword)
			r.With(authMiddleware.Authenticate).Post("/password/change", authHandler.ChangePassword)
		})

		// Chat platform callbacks authenticate by request signature.
		r.Route("/integrations/chat", func(r chi.Router) {
			r.Use(apiMiddleware.VerifyChatSignature(app.verifier))
			r.Use(invalidateLists)
			r.Post("/events", chatHandler.Events)
			r.Post("/commands", chatHandler.Commands)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Route("/tasks", func(r chi.Router) {
				r.Use(invalidateLists)
				r.With(cacheList).Get("/", taskHandler.ListTasks)
				r.Post("/", taskHandler.CreateTask)
				r.Get("/stats", taskHandler.GetStats)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", taskHandler.GetTask)
					r.Put("/", taskHandler.UpdateTask)
					r.Delete("/", taskHandler.DeleteTask)
					r.Post("/complete", taskHandler.CompleteTask)
					r.Get("/history", taskHandler.GetHistory)
					r.Get("/comments", taskHandler.ListComments)
					r.Post("/comments", taskHandler.AddComment)
				})
			})
			r.Put("/comments/{id}", taskHandler.EditComment)

			r.Route("/categories", func(r chi.Router) {
				r.Use(invalidateLists)
				r.Get("/", categoryHandler.ListCategories)
				r.Post("/", categoryHandler.CreateCategory)
				r.Put("/{id}", categoryHandler.UpdateCategory)
				r.Delete("/{id}", categoryHandler.DeleteCategory)
			})

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", userHandler.GetMe)
				r.Put("/chat", userHandler.UpdateChatSettings)
				r.Post("/chat/test", userHandler.SendTestMessage)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(apiMiddleware.RequireRole(domain.RoleAdmin))
				r.Get("/sweeps", adminHandler.ListSweeps)
				r.Post("/sweeps/{kind}", adminHandler.TriggerSweep)
			})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}

// listCacheMiddleware returns the list caching and invalidation middleware,
// or pass-through handlers when the cache is disabled.
func (app *application) listCacheMiddleware() (cacheList, invalidate func(http.Handler) http.Handler) {
	if app.listCache == nil {
		passthrough := func(next http.Handler) http.Handler { return next }
		return passthrough, passthrough
	}
	return apiMiddleware.CacheTaskList(app.listCache, app.config.Cache.TTL),
		apiMiddleware.InvalidateTaskLists(app.listCache)
}

package main

import (
	"net/http"
)

func composeRoutes(app *application) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", app.healthCheckHandler)

	mux.HandleFunc("POST /api/auth/register", app.registerUserHandler)
	mux.HandleFunc("POST /api/auth/login", app.loginHandler)

	mux.HandleFunc("GET /api/users/profile", app.requireAuth(app.getProfileHandler))
	mux.HandleFunc("PUT /api/users/profile", app.requireAuth(app.updateProfileHandler))

	mux.HandleFunc("POST /api/todos", app.requireAuth(app.createTodoHandler))
	mux.HandleFunc("GET /api/todos", app.requireAuth(app.getTodosHandler))
	mux.HandleFunc("GET /api/todos/{id}", app.requireAuth(app.getTodoHandler))
	mux.HandleFunc("PUT /api/todos/{id}", app.requireAuth(app.updateTodoHandler))
	mux.HandleFunc("DELETE /api/todos/{id}", app.requireAuth(app.deleteTodoHandler))

	var handler http.Handler = mux
	if len(app.config.cors.trustedOrigins) != 0 {
		handler = app.enableCORS(handler)
	}
	if app.config.limiter.enabled {
		handler = app.rateLimit(handler)
	}
	return handler
}

/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Identity:   Resolves X-User-Id / X-User-Role into an actor

ROUTE GROUPS:
  /api/users/*            Profiles and balances
  /api/items/*            Catalog and stock views
  /api/orders/*           Checkout and order lifecycle
  /api/token-requests/*   Extra-token workflow
  /api/notifications/*    Per-user feed
  /api/admin/*            Staff operations

IDENTITY NOTE:
  Authentication happens upstream. The gateway validates the session and
  forwards X-User-Id and X-User-Role; requests without them get 401.
  Health check is exempt.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bulldogs/market-core/market"
)

type contextKey string

const actorKey contextKey = "actor"

// actorFrom returns the actor resolved by the identity middleware.
func actorFrom(r *http.Request) market.Actor {
	actor, _ := r.Context().Value(actorKey).(market.Actor)
	return actor
}

// identity resolves the forwarded user headers into an actor.
func identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-User-Id")
		role := market.Role(r.Header.Get("X-User-Role"))
		if id == "" || !role.Valid() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Unauthorized","message":"missing or invalid identity headers"}`))
			return
		}

		actor := market.Actor{ID: market.UserID(id), Role: role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id", "X-User-Role"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(identity)

		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/", h.ListStudents)
			r.Get("/{id}/balance", h.GetBalance)
		})

		// Item routes
		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Post("/", h.CreateItem)
			r.Get("/low-stock", h.LowStockItems)
			r.Get("/out-of-stock", h.OutOfStockItems)
			r.Get("/{id}", h.GetItem)
			r.Put("/{id}", h.UpdateItem)
			r.Delete("/{id}", h.DeleteItem)
		})

		// Order routes
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)
			r.Post("/{id}/status", h.UpdateOrderStatus)
			r.Post("/{id}/cancel", h.CancelOrder)
		})

		// Token request routes
		r.Route("/token-requests", func(r chi.Router) {
			r.Get("/", h.ListTokenRequests)
			r.Post("/", h.SubmitTokenRequest)
			r.Post("/{id}/approve", h.ApproveTokenRequest)
			r.Post("/{id}/reject", h.RejectTokenRequest)
		})

		// Notification routes
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/read-all", h.MarkAllNotificationsRead)
			r.Post("/{id}/read", h.MarkNotificationRead)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reset-tokens", h.ResetTokens)
		})
	})

	return r
}

package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"topup-service/internal/handler"
)

func SetupRoutes(
	r chi.Router,
	h *handler.TopupHandler,
	rdb *redis.Client,
) chi.Router {
	// ---- Global Middleware ----
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(rateLimit(rdb, 100, time.Minute))

	// ============================================================
	// Public Endpoints
	// ============================================================
	r.Group(func(pub chi.Router) {
		pub.Get("/topup/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		pub.Get("/topup/operators", h.Operators)
	})

	// ============================================================
	// Authenticated Endpoints (identity injected upstream)
	// ============================================================
	r.Route("/topup/svc", func(pr chi.Router) {
		pr.Post("/sessions", h.CreateSession)
		pr.Get("/sessions/{sessionID}", h.GetSession)
		pr.Delete("/sessions/{sessionID}", h.CloseSession)

		pr.Post("/sessions/{sessionID}/method", h.SelectMethod)
		pr.Post("/sessions/{sessionID}/operator", h.SelectOperator)
		pr.Post("/sessions/{sessionID}/recipient", h.EnterRecipient)
		pr.Post("/sessions/{sessionID}/amount", h.EnterAmount)
		pr.Post("/sessions/{sessionID}/back", h.Back)
		pr.Post("/sessions/{sessionID}/submit", h.Submit)
		pr.Post("/sessions/{sessionID}/cancel", h.CancelRun)

		pr.Get("/deposits", h.History)
		pr.Get("/deposits/{attemptRef}", h.GetAttempt)
	})

	return r
}

// rateLimit is a fixed-window per-client limiter on redis. Fails open
// when redis is unreachable.
func rateLimit(rdb *redis.Client, limit int64, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := r.Header.Get("X-User-ID")
			if client == "" {
				client = r.RemoteAddr
			}
			key := fmt.Sprintf("topup:rl:%s:%d", client, time.Now().Unix()/int64(window.Seconds()))

			count, err := rdb.Incr(r.Context(), key).Result()
			if err == nil {
				if count == 1 {
					rdb.Expire(r.Context(), key, window)
				}
				if count > limit {
					w.WriteHeader(http.StatusTooManyRequests)
					w.Write([]byte("rate limit exceeded"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

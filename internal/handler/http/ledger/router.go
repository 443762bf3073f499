package ledger_http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ledger/internal/app/ledger"
)

const requestIDHeader = "X-Request-ID"

func NewRouter(s ledger.LedgerService, l *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(l))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	RegisterRoutes(r, s, l)
	return r
}

func RegisterRoutes(r chi.Router, s ledger.LedgerService, l *zap.Logger) {
	handler := NewLedgerHandler(s, l.With(zap.String("component", "LedgerHTTPHandler")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ledger service is healthy!"))
	})

	r.Post("/transfers", handler.TransferHandler)

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", handler.CreateAccountHandler)
		r.Route("/{number}", func(r chi.Router) {
			r.Post("/deposits", handler.DepositHandler)
			r.Post("/withdrawals", handler.WithdrawHandler)
			r.Get("/balance", handler.GetBalanceHandler)
			r.Get("/transactions", handler.GetHistoryHandler)
		})
	})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func requestLogger(l *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			l.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", w.Header().Get(requestIDHeader)))
		})
	}
}

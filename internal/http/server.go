package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gofinances/internal/ledger"
	"gofinances/internal/log"
	"gofinances/internal/middleware/ratelimit"
	"gofinances/internal/middleware/trace"
	"gofinances/internal/services"
)

// Options configures the optional parts of the server.
type Options struct {
	// Ready reports store readiness on /readyz. Nil always reports ready.
	Ready ledger.Pinger

	// RateLimit caps write requests per client per minute. Zero disables it.
	RateLimit int

	// MaxUploadBytes bounds import uploads. Zero means 10 MiB.
	MaxUploadBytes int64

	Logger *log.Logger
}

type Server struct {
	http.Server
	transactions *services.TransactionService
	imports      *services.ImportService
	ready        ledger.Pinger
	logger       *log.Logger

	rateLimiter    *ratelimit.Limiter
	tracer         *trace.Middleware
	maxUploadBytes int64

	shutdownOnce sync.Once
}

func NewServer(addr string, transactions *services.TransactionService, imports *services.ImportService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	s := &Server{
		transactions:   transactions,
		imports:        imports,
		ready:          opts.Ready,
		logger:         logger,
		tracer:         trace.NewMiddleware(logger, extractClientIP),
		maxUploadBytes: maxUpload,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /transactions/import", s.handleImportTransactions)

	var handler http.Handler = mux
	if opts.RateLimit > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimit})
		handler = s.rateLimiter.Middleware(extractClientIP, s.onRateLimit, http.MethodPost, http.MethodDelete)(handler)
	}
	handler = withSecurityHeaders(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, extractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		metrics := s.tracer.GetMetrics()
		s.logger.InfoContext(ctx, "HTTP server shutting down",
			log.FieldOperation, log.OpShutdown,
			"total_requests", metrics.TotalRequests,
			"failed_requests", metrics.FailedRequests)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

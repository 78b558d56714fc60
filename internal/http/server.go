// Package http serves the JSON API used by the mobile client.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"spendwise/internal/aggregator"
	"spendwise/internal/auth"
	"spendwise/internal/core"
	applog "spendwise/internal/log"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/middleware/security"
	"spendwise/internal/middleware/trace"
	"spendwise/internal/receipt"
)

type (
	// ExpenseCommands mutates a user's records.
	ExpenseCommands interface {
		AddExpense(ctx context.Context, userID, amount, title, categoryID string) (core.ExpenseRecord, error)
		UpdateExpense(ctx context.Context, userID, id, amount, title, categoryID string) (core.ExpenseRecord, error)
		DeleteExpense(ctx context.Context, userID, id string) error
	}

	// Sessions hands out the signed-in user's aggregator.
	Sessions interface {
		Open(ctx context.Context, userID string) (*aggregator.Aggregator, error)
		SignOut(ctx context.Context, userID string) bool
	}

	ReceiptAnalyzer interface {
		Analyze(ctx context.Context, image []byte, mimeType string) receipt.Result
	}
)

// Deps are the collaborators the server routes to. Ready may be nil.
type Deps struct {
	Expenses  ExpenseCommands
	Sessions  Sessions
	Receipts  ReceiptAnalyzer
	Verifier  *auth.Verifier
	Logger    *applog.Logger
	RateLimit ratelimit.Config
	Ready     func(ctx context.Context) error
}

type Server struct {
	http.Server
	expenses ExpenseCommands
	sessions Sessions
	receipts ReceiptAnalyzer
	verifier *auth.Verifier
	ready    func(ctx context.Context) error

	logger      *applog.Logger
	reqLog      *applog.StructuredLogger
	rateLimiter *ratelimit.Limiter
	headers     *security.HeadersMiddleware
	detector    *security.Detector
	requests    trace.Counter

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		expenses:    deps.Expenses,
		sessions:    deps.Sessions,
		receipts:    deps.Receipts,
		verifier:    deps.Verifier,
		ready:       deps.Ready,
		logger:      logger.WithComponent(applog.ComponentHTTP),
		rateLimiter: ratelimit.NewLimiter(deps.RateLimit),
		headers:     security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		detector:    security.NewDetector(),
	}
	s.reqLog = applog.NewStructuredLogger(s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/transactions", s.api(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.api(s.handleCreateTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.api(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.api(s.handleDeleteTransaction))
	mux.HandleFunc("GET /api/transactions/export.xlsx", s.api(s.handleExportTransactions))
	mux.HandleFunc("GET /api/chart", s.api(s.handleChart))
	mux.HandleFunc("GET /api/window", s.api(s.handleGetWindow))
	mux.HandleFunc("PUT /api/window", s.api(s.handleSetWindow))
	mux.HandleFunc("GET /api/categories", s.api(s.handleCategories))
	mux.HandleFunc("POST /api/receipts/analyze", s.api(s.handleAnalyzeReceipt))
	mux.HandleFunc("POST /api/session/signout", s.api(s.handleSignOut))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.withRequestLogging(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Stats reports request and security counters.
func (s *Server) Stats() (trace.Metrics, security.DetectionMetrics, ratelimit.Metrics) {
	return s.requests.GetMetrics(), s.detector.GetMetrics(), s.rateLimiter.GetMetrics()
}

// Shutdown stops the rate limiter and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withRequestLogging assigns a request id, applies security headers and
// rate limits writes, and logs each request start and finish.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		done := s.requests.Begin()
		defer done()

		clientIP := s.detector.ExtractClientIP(r)
		requestID := trace.RequestID(r)

		logger := s.logger.With(applog.FieldRequestID, requestID)
		ctx := applog.NewContext(trace.WithRequestID(r.Context(), requestID), logger)
		r = r.WithContext(ctx)

		w.Header().Set(trace.Header, requestID)
		s.headers.Apply(w, r)
		s.reqLog.LogHTTPStart(ctx, r, clientIP)
		if s.detector.DetectSuspiciousRequest(r) {
			logger.WarnContext(ctx, "Suspicious request",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.UserAgent())
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if isWrite(r.Method) && !s.rateLimiter.Allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			writeError(rw, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		} else {
			next.ServeHTTP(rw, r)
		}

		s.reqLog.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// authedHandler receives the authenticated user id.
type authedHandler func(w http.ResponseWriter, r *http.Request, userID string)

// api rejects requests without a valid token.
func (s *Server) api(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.verifier.Authenticate(r)
		if err != nil {
			applog.FromContext(r.Context()).DebugContext(r.Context(), "Unauthenticated request",
				applog.FieldPath, r.URL.Path, applog.FieldError, err)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r.WithContext(auth.WithUserID(r.Context(), userID)), userID)
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

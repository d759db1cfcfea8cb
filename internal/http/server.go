package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"dindion/internal/auth"
	"dindion/internal/core"
	"dindion/internal/log"
	"dindion/internal/middleware/ratelimit"
	"dindion/internal/middleware/security"
	"dindion/internal/middleware/trace"
	"dindion/internal/realtime"
	"dindion/internal/services"
)

// Options configure a Server.
type Options struct {
	Addr               string
	Location           *time.Location
	FormMonths         []core.YearMonth
	RateLimitPerMinute int
	SessionTTL         time.Duration
	// TrustedProxies are extra CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string
	// HeartbeatInterval spaces keep-alive comments on idle event streams.
	HeartbeatInterval time.Duration
	// Ready reports whether the data store can serve requests.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server

	auth   *auth.Service
	tree   realtime.Tree
	txs    *services.TransactionService
	cards  *services.CardService
	opts   Options
	logger *log.Logger
	events *log.StructuredLogger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	startTime         time.Time
	transactionsAdded atomic.Int64
	openStreams       atomic.Int64

	closing      chan struct{} // closed on Shutdown to end event streams
	shutdownOnce sync.Once
}

// NewServer wires the routes and middleware into a ready-to-run http.Server.
func NewServer(opts Options, authSvc *auth.Service, tree realtime.Tree, logger *log.Logger) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 25 * time.Second
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		auth:      authSvc,
		tree:      tree,
		txs:       services.NewTransactionService(tree, opts.Location, logger.Logger),
		cards:     services.NewCardService(tree, logger.Logger),
		opts:      opts,
		logger:    logger,
		events:    log.NewStructuredLogger(logger),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:  security.NewDetector(logger.Logger),
		startTime: time.Now(),
		closing:   make(chan struct{}),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger.Logger)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: event streams stay open for the whole session.
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError().Write(w)
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	// Routes sit on the root router so a wrong method on any known path,
	// health endpoints included, answers 405 instead of falling through.
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})
	public := func(h http.HandlerFunc) http.Handler { return limit(h) }
	private := func(h http.HandlerFunc) http.Handler { return limit(s.requireAuth(h)) }

	r.Handle("/auth/register", public(s.handleRegister)).Methods(http.MethodPost)
	r.Handle("/auth/login", public(s.handleLogin)).Methods(http.MethodPost)
	r.Handle("/auth/logout", private(s.handleLogout)).Methods(http.MethodPost)
	r.Handle("/auth/me", private(s.handleMe)).Methods(http.MethodGet)
	r.Handle("/transactions", private(s.handleListTransactions)).Methods(http.MethodGet)
	r.Handle("/transactions", private(s.handleAddTransaction)).Methods(http.MethodPost)
	r.Handle("/transactions/latest", private(s.handleLatest)).Methods(http.MethodGet)
	r.Handle("/transactions/{id}", private(s.handleDeleteTransaction)).Methods(http.MethodDelete)
	r.Handle("/cards", private(s.handleListCards)).Methods(http.MethodGet)
	r.Handle("/cards", private(s.handleAddCard)).Methods(http.MethodPost)
	r.Handle("/cards/{id}", private(s.handleRemoveCard)).Methods(http.MethodDelete)
	r.Handle("/cards/{id}/expenses", private(s.handleCardExpenses)).Methods(http.MethodGet)
	r.Handle("/months/options", private(s.handleMonthOptions)).Methods(http.MethodGet)
	r.Handle("/events", private(s.handleEvents)).Methods(http.MethodGet)

	// Outermost first: every request gets an id before anything logs.
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var h http.Handler = r
	h = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = log.Middleware(s.logger)(h)
	h = s.detector.Middleware(h)
	h = headers.Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

type ctxKey int

const identityKey ctxKey = iota

// requireAuth rejects requests without a valid session and stores the identity.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := SessionToken(r)
		if token == "" {
			UnauthorizedError("authentication required").Write(w)
			return
		}
		id, err := s.auth.Verify(token)
		if err != nil {
			UnauthorizedError(auth.ErrInvalidToken.Error()).Write(w)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) auth.Identity {
	id, _ := ctx.Value(identityKey).(auth.Identity)
	return id
}

// fail maps err to a response. Known client errors carry their own message;
// anything else is logged and answered with msg.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, op, msg string) {
	var partial *services.PartialWriteError
	switch {
	case errors.As(err, &partial):
		s.events.LogError(r.Context(), "Write interrupted", err, log.ComponentLedger, op,
			log.NewFields().WithUser(identityFrom(r.Context()).UID))
		PartialWriteError(msg, len(partial.Written), partial.Total).Write(w)
	case errors.Is(err, errBadRequest):
		BadRequestError(err.Error()).Write(w)
	case services.IsValidation(err):
		UnprocessableEntityError(validationMessage(err)).Write(w)
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		UnauthorizedError(err.Error()).Write(w)
	case errors.Is(err, auth.ErrEmailTaken):
		ConflictError(err.Error()).Write(w)
	case errors.Is(err, realtime.ErrNotFound):
		NotFoundError("not found").Write(w)
	default:
		s.events.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithRequestID(trace.GetRequestID(r.Context())))
		InternalServerError(msg).Write(w)
	}
}

// validationMessage drops the "validation failed: " prefix of wrapped core errors.
func validationMessage(err error) string {
	msg, _ := strings.CutPrefix(err.Error(), core.ErrValidation.Error()+": ")
	return msg
}

// Shutdown stops the background goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.closing)
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
